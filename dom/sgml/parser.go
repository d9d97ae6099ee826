package sgml

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"tbc/dom"
	"tbc/dom/scanner"
)

// Parser builds document trees from SGML/HTML markup. It tolerates tag
// soup: unmatched end tags are ignored, void elements are never left open
// and some elements are closed implicitly.
type Parser struct {
	log       *zap.Logger
	stackOpts []dom.Option
	observers []func(*dom.Stack)
}

// Option configures Parser.
type Option func(*Parser)

// WithStackOptions passes options to the stack used for tree building.
func WithStackOptions(opts ...dom.Option) Option {
	return func(p *Parser) {
		p.stackOpts = append(p.stackOpts, opts...)
	}
}

// WithObserver registers function called with the building stack before
// parsing starts, it may add its own contexts. Note that element attributes
// are pushed after the element itself.
func WithObserver(fn func(*dom.Stack)) Option {
	return func(p *Parser) {
		p.observers = append(p.observers, fn)
	}
}

// NewParser creates new SGML parser.
func NewParser(log *zap.Logger, opts ...Option) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Parser{log: log.Named("sgml-parser")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func keepNode(*dom.Stack, *dom.State, *struct{}) dom.Code {
	return dom.CodeKeepNode
}

// voidElements never have content or end tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "basefont": true, "br": true, "col": true,
	"embed": true, "frame": true, "hr": true, "img": true, "input": true,
	"isindex": true, "link": true, "meta": true, "param": true, "source": true,
	"track": true, "wbr": true,
}

// rawElements content is taken verbatim up to the matching end tag.
var rawElements = map[string]bool{
	"script": true, "style": true,
}

var blockClosesP = []string{"p"}

// impliedEnds lists open elements closed by start of the key element.
var impliedEnds = map[string][]string{
	"li":         {"li"},
	"dt":         {"dt", "dd"},
	"dd":         {"dt", "dd"},
	"tr":         {"tr", "td", "th"},
	"td":         {"td", "th"},
	"th":         {"td", "th"},
	"option":     {"option"},
	"p":          blockClosesP,
	"div":        blockClosesP,
	"ul":         blockClosesP,
	"ol":         blockClosesP,
	"dl":         blockClosesP,
	"table":      blockClosesP,
	"pre":        blockClosesP,
	"blockquote": blockClosesP,
	"form":       blockClosesP,
	"hr":         blockClosesP,
	"h1":         blockClosesP,
	"h2":         blockClosesP,
	"h3":         blockClosesP,
	"h4":         blockClosesP,
	"h5":         blockClosesP,
	"h6":         blockClosesP,
}

// IsVoid reports whether element name never has content.
func IsVoid(name string) bool {
	return voidElements[strings.ToLower(name)]
}

// builder holds state of a single parse.
type builder struct {
	log   *zap.Logger
	sc    *scanner.Scanner
	stack *dom.Stack
	doc   *dom.Node
}

// Parse builds document tree from input. Tree building stops with error
// when stack depth limit is exceeded or scanner gives up on malformed
// markup.
func (p *Parser) Parse(input string) (*dom.Node, error) {
	b := &builder{
		log:   p.log,
		sc:    NewScanner(input),
		stack: dom.NewStack(p.stackOpts...),
		doc:   dom.NewDocument(),
	}
	defer b.stack.Done()

	// built nodes stay in the tree unless an observer frees them explicitly
	keep := &dom.ContextInfo[struct{}]{}
	for k := range dom.NodeKindCount {
		keep.Push[k] = keepNode
	}
	dom.AddContext(b.stack, keep)
	for _, fn := range p.observers {
		fn(b.stack)
	}
	if err := b.stack.Push(b.doc); err != nil {
		return nil, err
	}
	b.stack.Top().Immutable = true

	if err := b.run(); err != nil {
		return nil, err
	}
	for b.stack.Depth() > 1 {
		b.stack.Pop()
	}
	if err := b.sc.Err(); err != nil {
		return nil, fmt.Errorf("unable to parse markup: %w", err)
	}
	return b.doc, nil
}

func (b *builder) run() error {
	tok := b.sc.Current()
	for tok != nil {
		t := *tok

		switch {
		case t.Type == Element || t.Type == ElementBegin:
			el, err := b.open(t.Text)
			if err != nil {
				return err
			}
			empty := false
			if t.Type == ElementBegin {
				if empty, err = b.attributes(el); err != nil {
					return err
				}
			}
			name := strings.ToLower(el.Name)
			switch {
			case empty || voidElements[name]:
				b.stack.Pop()
			case rawElements[name]:
				if err := b.rawText(el); err != nil {
					return err
				}
				tok = b.sc.Current()
				continue
			}

		case t.Type == ElementEnd:
			if t.Text == "" {
				if b.stack.Depth() > 1 {
					b.stack.Pop()
				}
			} else if !b.stack.PopNode(dom.ElementNode, t.Text) {
				b.log.Debug("Ignoring unmatched end tag", zap.String("tag", t.Text), zap.Int("offset", t.Offset))
			}

		case t.Type == NotationDoctype:
			if err := b.doctype(); err != nil {
				return err
			}

		case IsNotation(t.Type):
			if err := b.declaration(t); err != nil {
				return err
			}

		case t.Type == NotationComment:
			if err := b.leaf(dom.CommentNode, "", t.Text); err != nil {
				return err
			}

		case t.Type == CDataSection:
			if err := b.leaf(dom.CDataNode, "", t.Text); err != nil {
				return err
			}

		case t.Type == Process || t.Type == ProcessXML:
			data := ""
			if next := b.sc.Peek(); next != nil && next.Type == ProcessData {
				data = next.Text
				b.sc.Next()
			}
			if err := b.leaf(dom.ProcInstNode, t.Text, data); err != nil {
				return err
			}

		case t.Type == Entity:
			if err := b.leaf(dom.EntityRefNode, t.Text, ""); err != nil {
				return err
			}

		case t.Type == Text || t.Type == Space:
			if err := b.leaf(dom.TextNode, "", t.Text); err != nil {
				return err
			}

		default:
			b.log.Debug("Skipping stray token", zap.String("type", TypeName(t.Type)), zap.Int("offset", t.Offset))
		}
		tok = b.sc.Next()
	}
	return nil
}

// current returns node new children are appended to.
func (b *builder) current() *dom.Node {
	return b.stack.Top().Node
}

// open closes implied elements, then creates element and pushes it.
func (b *builder) open(name string) (*dom.Node, error) {
	if ends, ok := impliedEnds[strings.ToLower(name)]; ok {
		for top := b.current(); top.Kind == dom.ElementNode && contains(ends, top.Name); top = b.current() {
			b.stack.Pop()
		}
	}
	el := b.current().AppendChild(dom.NewElement(name))
	if err := b.stack.Push(el); err != nil {
		return nil, err
	}
	return el, nil
}

// leaf appends node to the current element pushing and popping it so
// observers see it.
func (b *builder) leaf(kind dom.NodeKind, name, value string) error {
	n := b.current().AppendChild(dom.NewNode(kind, name, value))
	if err := b.stack.Push(n); err != nil {
		return err
	}
	b.stack.Pop()
	return nil
}

// attributes consumes attribute tokens up to the end of the tag. It reports
// whether tag was self closing.
func (b *builder) attributes(el *dom.Node) (bool, error) {
	var (
		name          string
		pending, want bool
	)
	set := func(value string) error {
		pending, want = false, false
		attr := el.SetAttr(name, html.UnescapeString(value))
		if err := b.stack.Push(attr); err != nil {
			return err
		}
		b.stack.Pop()
		return nil
	}

	for tok := b.sc.Next(); tok != nil; tok = b.sc.Next() {
		switch tok.Type {
		case Attribute, String:
			switch {
			case want:
				if err := set(tok.Text); err != nil {
					return false, err
				}
			case tok.Type == Attribute:
				if pending {
					if err := set(""); err != nil {
						return false, err
					}
				}
				name, pending = tok.Text, true
			}
		case '=':
			want = pending
		case TagEnd, TagEmptyEnd:
			if pending {
				if err := set(""); err != nil {
					return false, err
				}
			}
			return tok.Type == TagEmptyEnd, nil
		}
	}
	if pending {
		return false, set("")
	}
	return false, nil
}

// rawText takes content of script-like element verbatim. On return scanner
// is positioned after the element end tag.
func (b *builder) rawText(el *dom.Node) error {
	in := b.sc.Input()
	start := len(in)
	if tok := b.sc.Current(); tok != nil {
		start = tok.End
	}
	end := indexEndTag(in[start:], el.Name)
	if end < 0 {
		end = len(in)
	} else {
		end += start
	}
	if end > start {
		if err := b.leaf(dom.TextNode, "", in[start:end]); err != nil {
			return err
		}
	}
	b.stack.PopState(b.stack.Top())

	next := len(in)
	if gt := strings.IndexByte(in[end:], '>'); gt >= 0 {
		next = end + gt + 1
	}
	b.sc.Reset(next, StateText)
	return nil
}

// indexEndTag returns offset of "</name" in s ignoring case or -1.
func indexEndTag(s, name string) int {
	for i := 0; ; {
		k := strings.Index(s[i:], "</")
		if k < 0 {
			return -1
		}
		i += k
		if strings.EqualFold(s[i+2:min(len(s), i+2+len(name))], name) {
			return i
		}
		i += 2
	}
}

// doctype builds document type node from tokens following "<!DOCTYPE".
func (b *builder) doctype() error {
	dt := dom.NewNode(dom.DocumentTypeNode, "", "")
	var pending string
	for tok := b.sc.Next(); tok != nil && tok.Type != TagEnd && tok.Type != TagEmptyEnd; tok = b.sc.Next() {
		switch {
		case tok.Type == Attribute && dt.Name == "":
			dt.Name = tok.Text
		case tok.Type == Attribute:
			pending = strings.ToLower(tok.Text)
		case tok.Type == String && pending == "public":
			dt.SetAttr("public", tok.Text)
			pending = "system"
		case tok.Type == String:
			dt.SetAttr("system", tok.Text)
			pending = ""
		}
	}
	b.doc.AppendChild(dt)
	if err := b.stack.Push(dt); err != nil {
		return err
	}
	b.stack.Pop()
	return nil
}

// declaration builds entity or notation node from markup declaration.
func (b *builder) declaration(t scanner.Token) error {
	var words []string
	for tok := b.sc.Next(); tok != nil && tok.Type != TagEnd && tok.Type != TagEmptyEnd; tok = b.sc.Next() {
		if tok.Type == Attribute || tok.Type == String {
			words = append(words, tok.Text)
		}
	}
	if t.Type == NotationEntity && len(words) > 0 {
		return b.leaf(dom.EntityNode, words[0], strings.Join(words[1:], " "))
	}
	return b.leaf(dom.NotationNode, t.Text, strings.Join(words, " "))
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
