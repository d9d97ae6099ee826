package document

import (
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"tbc/dom"
)

// ParseHTML builds document tree from HTML5 input. When label is empty input
// encoding is detected from BOM and meta elements.
func ParseHTML(r io.Reader, label string) (*dom.Node, error) {
	var (
		in  io.Reader
		err error
	)
	if label != "" {
		in, err = charset.NewReaderLabel(label, r)
	} else {
		in, err = charset.NewReader(r, "text/html")
	}
	if err != nil {
		return nil, fmt.Errorf("unable to decode HTML: %w", err)
	}
	src, err := html.Parse(in)
	if err != nil {
		return nil, fmt.Errorf("unable to parse HTML: %w", err)
	}
	return fromHTML(src), nil
}

// fromHTML converts parsed HTML tree without recursion.
func fromHTML(src *html.Node) *dom.Node {
	type pair struct {
		src *html.Node
		dst *dom.Node
	}

	doc := dom.NewDocument()
	pending := []pair{}
	for c := src.LastChild; c != nil; c = c.PrevSibling {
		pending = append(pending, pair{c, doc})
	}
	for len(pending) > 0 {
		p := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		n := convertHTML(p.src)
		if n == nil {
			continue
		}
		p.dst.AppendChild(n)
		if n.Kind != dom.ElementNode {
			continue
		}
		for c := p.src.LastChild; c != nil; c = c.PrevSibling {
			pending = append(pending, pair{c, n})
		}
	}
	return doc
}

func convertHTML(src *html.Node) *dom.Node {
	switch src.Type {
	case html.ElementNode:
		el := dom.NewElement(src.Data)
		for _, a := range src.Attr {
			name := a.Key
			if a.Namespace != "" {
				name = a.Namespace + ":" + a.Key
			}
			el.SetAttr(name, a.Val)
		}
		return el
	case html.TextNode:
		return dom.NewText(src.Data)
	case html.CommentNode:
		return dom.NewNode(dom.CommentNode, "", src.Data)
	case html.DoctypeNode:
		dt := dom.NewNode(dom.DocumentTypeNode, src.Data, "")
		for _, a := range src.Attr {
			dt.SetAttr(a.Key, a.Val)
		}
		return dt
	case html.RawNode:
		return dom.NewText(src.Data)
	}
	return nil
}
