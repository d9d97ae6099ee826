package selector

import (
	"errors"
	"strings"

	"tbc/dom"
	"tbc/dom/css"
	"tbc/dom/scanner"
)

// Parse parses single selector. Parsing is all or nothing: on error no
// selector is returned.
func Parse(text string) (*Selector, error) {
	p := newParser(text)
	sel, err := p.selector()
	if err != nil {
		return nil, err
	}
	if tok := p.sc.Current(); tok != nil {
		return nil, p.fail(tok.Offset, "unexpected selector list separator", ErrSyntax)
	}
	return sel, nil
}

// ParseList parses comma separated selector group.
func ParseList(text string) ([]*Selector, error) {
	p := newParser(text)
	var list []*Selector
	for {
		sel, err := p.selector()
		if err != nil {
			return nil, err
		}
		list = append(list, sel)
		if p.sc.Current() == nil {
			return list, nil
		}
		p.sc.Next()
		p.listed = true
	}
}

// MustParse is like Parse but panics on error. It is intended for static
// selectors.
func MustParse(text string) *Selector {
	sel, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return sel
}

type parser struct {
	text string
	sc   *scanner.Scanner

	sel  *Selector
	cur  *Node
	last *Node
	// pending relation of the next group, explicit when set by combinator
	rel      Relation
	explicit bool
	prevEnd  int
	// listed is set once selector list separator was seen
	listed bool
}

func newParser(text string) *parser {
	return &parser{text: text, sc: css.NewScanner(text)}
}

func (p *parser) fail(offset int, msg string, err error) error {
	return &SyntaxError{Offset: offset, Msg: msg, Err: err}
}

// selector parses tokens up to the end of input or selector list separator,
// scanner is left at the separator.
func (p *parser) selector() (*Selector, error) {
	p.sel = &Selector{}
	p.cur, p.last = nil, nil
	p.rel, p.explicit = RelationNone, false

	start := len(p.text)
	if tok := p.sc.Current(); tok != nil {
		start = tok.Offset
		p.prevEnd = tok.Offset
	}

	for tok := p.sc.Current(); tok != nil && !tok.IsChar(','); tok = p.sc.Next() {
		if p.cur != nil && tok.Offset > p.prevEnd && hasSpace(p.text[p.prevEnd:tok.Offset]) {
			p.close()
			p.rel = Descendant
		}
		if err := p.token(tok); err != nil {
			return nil, err
		}
		p.prevEnd = p.sc.Current().End
	}

	if p.cur != nil {
		p.close()
	}
	if p.sel.Root == nil {
		if p.sc.Current() != nil || p.listed {
			return nil, p.fail(start, "empty selector in list", ErrSyntax)
		}
		return nil, p.fail(start, "empty selector", ErrInvalidState)
	}
	if p.explicit {
		return nil, p.fail(p.prevEnd, "combinator without following selector", ErrSyntax)
	}
	return p.sel, nil
}

func hasSpace(s string) bool {
	return strings.ContainsAny(s, " \t\n\r\f\v")
}

// group returns group in progress starting new one if necessary.
func (p *parser) group() *Node {
	if p.cur == nil {
		p.cur = newGroup()
		if p.last != nil {
			p.cur.Relation = p.rel
		}
		p.rel, p.explicit = RelationNone, false
	}
	return p.cur
}

// close completes group in progress linking it into the chain.
func (p *parser) close() {
	if p.sel.Root == nil {
		p.sel.Root = p.cur
	} else {
		p.last.Children = append(p.last.Children, p.cur)
	}
	p.last, p.cur = p.cur, nil
}

func (p *parser) combinator(tok *scanner.Token, rel Relation) error {
	if p.cur != nil {
		p.close()
	}
	if p.last == nil {
		return p.fail(tok.Offset, "combinator without preceding selector", ErrSyntax)
	}
	if p.explicit {
		return p.fail(tok.Offset, "relation is already set", ErrSyntax)
	}
	p.rel, p.explicit = rel, true
	return nil
}

func (p *parser) token(tok *scanner.Token) error {
	switch {
	case tok.IsChar('>'):
		return p.combinator(tok, DirectChild)
	case tok.IsChar('+'):
		return p.combinator(tok, DirectAdjacent)
	case tok.IsChar('~'):
		return p.combinator(tok, IndirectAdjacent)

	case tok.Type == css.Ident:
		g := p.group()
		if g.Name != "" || g.Element&MatchUniversal != 0 {
			return p.fail(tok.Offset, "duplicate type selector", ErrSyntax)
		}
		g.Name = tok.Text

	case tok.IsChar('*'):
		g := p.group()
		if g.Name != "" || g.Element&MatchUniversal != 0 {
			return p.fail(tok.Offset, "duplicate type selector", ErrSyntax)
		}
		g.Element |= MatchUniversal

	case tok.Type == css.Hash || tok.Type == css.HexColor:
		p.attribute(p.group(), "id", tok.Text[1:], AttrID)

	case tok.IsChar('.'):
		// tok is invalidated by Next
		end := tok.End
		next := p.sc.Next()
		if next == nil || next.Type != css.Ident || next.Offset != end {
			return p.fail(end, "class name expected", ErrSyntax)
		}
		p.attribute(p.group(), "class", next.Text, AttrSpaceList)

	case tok.IsChar('['):
		return p.bracket(tok)

	case tok.IsChar(':'):
		return p.pseudo(tok)

	default:
		return p.fail(tok.Offset, "unexpected "+css.TypeName(tok.Type), ErrSyntax)
	}
	return nil
}

func (p *parser) attribute(g *Node, name, value string, match AttributeMatch) {
	g.Children = append(g.Children, &Node{
		Kind:      dom.AttributeNode,
		Name:      name,
		Value:     value,
		Attribute: match,
	})
}

var bracketOps = map[scanner.TokenType]AttributeMatch{
	'=':                  AttrExact,
	css.SelectBegin:      AttrBegin,
	css.SelectEnd:        AttrEnd,
	css.SelectSpaceList:  AttrSpaceList,
	css.SelectHyphenList: AttrHyphenList,
	css.SelectContains:   AttrContains,
}

// bracket parses [name], [name op value]. Scanner is left at ']'.
func (p *parser) bracket(open *scanner.Token) error {
	g := p.group()
	start := open.Offset
	unterminated := func() error {
		return p.fail(start, "unterminated attribute selector", ErrSyntax)
	}

	tok := p.sc.Next()
	if tok == nil {
		return unterminated()
	}
	if tok.Type != css.Ident {
		return p.fail(tok.Offset, "attribute name expected", ErrSyntax)
	}
	name := tok.Text

	tok = p.sc.Next()
	if tok == nil {
		return unterminated()
	}
	if tok.IsChar(']') {
		p.attribute(g, name, "", AttrAny)
		return nil
	}
	match, ok := bracketOps[tok.Type]
	if !ok {
		return p.fail(tok.Offset, "attribute operator expected", ErrSyntax)
	}

	tok = p.sc.Next()
	if tok == nil {
		return unterminated()
	}
	switch tok.Type {
	case css.Ident, css.String, css.Number:
	default:
		return p.fail(tok.Offset, "attribute value expected", ErrSyntax)
	}
	value := tok.Text

	tok = p.sc.Next()
	if tok == nil {
		return unterminated()
	}
	if !tok.IsChar(']') {
		return p.fail(tok.Offset, "']' expected", ErrSyntax)
	}
	p.attribute(g, name, value, match)
	return nil
}

// pseudo parses pseudo class or element introduced by one or two colons.
// Scanner is left at the last token of the construct.
func (p *parser) pseudo(colon *scanner.Token) error {
	g := p.group()
	end := colon.End

	tok := p.sc.Next()
	if tok != nil && tok.IsChar(':') && tok.Offset == end {
		end = tok.End
		tok = p.sc.Next()
	}
	if tok == nil || tok.Offset != end || (tok.Type != css.Ident && !css.IsFunction(tok.Type)) {
		return p.fail(end, "pseudo class name expected", ErrSyntax)
	}

	info, ok := lookupPseudo(tok.Text)
	if !ok {
		return p.fail(tok.Offset, "pseudo class "+tok.Text, ErrNotFound)
	}
	isFunc := css.IsFunction(tok.Type)
	if isFunc != info.function {
		if info.function {
			return p.fail(tok.End, "arguments expected for "+info.name, ErrSyntax)
		}
		return p.fail(tok.End, "unexpected arguments for "+info.name, ErrSyntax)
	}

	var arg string
	nameOffset, argOffset := tok.Offset, tok.End
	if isFunc {
		rparen := p.sc.Next()
		for rparen != nil && !rparen.IsChar(')') {
			rparen = p.sc.Next()
		}
		if rparen == nil {
			return p.fail(nameOffset, "unterminated arguments", ErrSyntax)
		}
		arg = p.text[argOffset:rparen.Offset]
	}

	switch info.kind {
	case pseudoRoot:
		g.Element |= MatchRoot
	case pseudoEmpty:
		g.Element |= MatchEmpty
	case pseudoFixedChild:
		g.Element |= MatchNthChild
		g.NthChild = append(g.NthChild, Nth{Index: info.index})
	case pseudoFixedType:
		g.Element |= MatchNthType
		g.NthType = append(g.NthType, Nth{Index: info.index})
	case pseudoNthChild, pseudoNthType:
		nth, err := ParseNth(arg)
		if se := (*SyntaxError)(nil); errors.As(err, &se) {
			se.Offset += argOffset
			return se
		}
		if nth.Step == 0 && nth.Index <= 0 {
			return p.fail(argOffset, "position never matches", ErrSyntax)
		}
		nth.FromEnd = info.fromEnd
		if info.kind == pseudoNthChild {
			g.Element |= MatchNthChild
			g.NthChild = append(g.NthChild, nth)
		} else {
			g.Element |= MatchNthType
			g.NthType = append(g.NthType, nth)
		}
	default:
		p.sel.Pseudo |= info.flag
	}
	return nil
}
