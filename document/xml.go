package document

import (
	"fmt"
	"io"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"

	"tbc/dom"
)

// ParseXML builds document tree from XML input. Encoding comes from XML
// declaration, parsing is permissive so that undeclared entities and
// unbalanced markup of real world documents are tolerated.
func ParseXML(r io.Reader) (*dom.Node, error) {
	src := etree.NewDocument()
	src.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Entity:        xmlEntities,
		Permissive:    true,
		PreserveCData: true,
	}
	if _, err := src.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("unable to parse XML: %w", err)
	}
	return fromXML(src), nil
}

// xmlEntities are HTML entities commonly found in XHTML documents without
// DTD.
var xmlEntities = map[string]string{
	"nbsp":   "\u00a0",
	"shy":    "\u00ad",
	"copy":   "\u00a9",
	"reg":    "\u00ae",
	"trade":  "\u2122",
	"laquo":  "\u00ab",
	"raquo":  "\u00bb",
	"ndash":  "\u2013",
	"mdash":  "\u2014",
	"lsquo":  "\u2018",
	"rsquo":  "\u2019",
	"ldquo":  "\u201c",
	"rdquo":  "\u201d",
	"hellip": "\u2026",
}

func fromXML(src *etree.Document) *dom.Node {
	type pair struct {
		src etree.Token
		dst *dom.Node
	}

	doc := dom.NewDocument()
	pending := []pair{}
	for i := len(src.Child) - 1; i >= 0; i-- {
		pending = append(pending, pair{src.Child[i], doc})
	}
	for len(pending) > 0 {
		p := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		var n *dom.Node
		switch t := p.src.(type) {
		case *etree.Element:
			n = dom.NewElement(t.FullTag())
			for _, a := range t.Attr {
				n.SetAttr(a.FullKey(), a.Value)
			}
			for i := len(t.Child) - 1; i >= 0; i-- {
				pending = append(pending, pair{t.Child[i], n})
			}
		case *etree.CharData:
			if t.IsCData() {
				n = dom.NewNode(dom.CDataNode, "", t.Data)
			} else {
				n = dom.NewText(t.Data)
			}
		case *etree.Comment:
			n = dom.NewNode(dom.CommentNode, "", t.Data)
		case *etree.ProcInst:
			n = dom.NewNode(dom.ProcInstNode, t.Target, t.Inst)
		case *etree.Directive:
			n = dom.NewNode(dom.NotationNode, "", t.Data)
		default:
			continue
		}
		p.dst.AppendChild(n)
	}
	return doc
}
