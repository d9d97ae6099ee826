// Package selector parses CSS-like selectors into selector trees and matches
// them against document trees while they are walked by dom.Stack.
package selector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tbc/dom"
)

var (
	// ErrSyntax is reported for malformed selectors.
	ErrSyntax = errors.New("selector syntax error")
	// ErrNotFound is reported for unknown pseudo classes and elements.
	ErrNotFound = errors.New("unknown pseudo class")
	// ErrInvalidState is reported for empty selectors.
	ErrInvalidState = errors.New("invalid selector state")
)

// SyntaxError describes where and why parsing failed. It unwraps to one of
// the package sentinel errors.
type SyntaxError struct {
	Offset int
	Msg    string
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v at offset %d: %s", e.Err, e.Offset, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Relation links selector node to the node matched by its predecessor.
type Relation uint8

const (
	RelationNone Relation = iota
	Descendant
	DirectChild
	DirectAdjacent
	IndirectAdjacent
)

var relationText = [...]string{
	RelationNone:     "",
	Descendant:       " ",
	DirectChild:      " > ",
	DirectAdjacent:   " + ",
	IndirectAdjacent: " ~ ",
}

// ElementMatch flags select element predicates of a selector node.
type ElementMatch uint8

const (
	MatchUniversal ElementMatch = 1 << iota
	MatchRoot
	MatchEmpty
	MatchNthChild
	MatchNthType
)

// AttributeMatch flags select how attribute value is compared.
type AttributeMatch uint8

const (
	AttrAny AttributeMatch = 1 << iota
	AttrExact
	AttrBegin
	AttrEnd
	AttrSpaceList
	AttrHyphenList
	AttrContains
	AttrID
)

var attrOps = []struct {
	flag AttributeMatch
	op   string
}{
	{AttrExact, "="},
	{AttrBegin, "^="},
	{AttrEnd, "$="},
	{AttrSpaceList, "~="},
	{AttrHyphenList, "|="},
	{AttrContains, "*="},
}

// Node is a simple selector group (element kind) or one of its attribute
// predicates (attribute kind). Children of element kind node hold its
// attribute predicates and at most one element kind node: the next group in
// the chain, linked by its Relation.
type Node struct {
	Kind      dom.NodeKind
	Name      string
	Value     string
	Relation  Relation
	Element   ElementMatch
	Attribute AttributeMatch
	NthChild  []Nth
	NthType   []Nth
	Children  []*Node

	// stub represents the node on the candidate stack
	stub dom.Node
}

func newGroup() *Node {
	n := &Node{Kind: dom.ElementNode}
	n.stub.Kind = dom.ElementNode
	return n
}

// Next returns the following group of the chain or nil.
func (n *Node) Next() *Node {
	for _, c := range n.Children {
		if c.Kind == dom.ElementNode {
			return c
		}
	}
	return nil
}

// Selector is parsed selector, it is read only once returned by Parse and
// may be matched against any number of documents.
type Selector struct {
	Root *Node
	// Pseudo holds recognised pseudo classes and elements which do not
	// affect matching.
	Pseudo Pseudo
}

// Specificity is (ids, classes, types) triple.
type Specificity [3]int

// Less reports whether s has lower specificity than o.
func (s Specificity) Less(o Specificity) bool {
	for i := range s {
		if s[i] != o[i] {
			return s[i] < o[i]
		}
	}
	return false
}

// Specificity computes selector specificity.
func (sel *Selector) Specificity() Specificity {
	var sp Specificity
	for n := sel.Root; n != nil; n = n.Next() {
		if n.Name != "" {
			sp[2]++
		}
		if n.Element&MatchRoot != 0 {
			sp[1]++
		}
		if n.Element&MatchEmpty != 0 {
			sp[1]++
		}
		sp[1] += len(n.NthChild) + len(n.NthType)
		for _, c := range n.Children {
			switch {
			case c.Kind != dom.AttributeNode:
			case c.Attribute&AttrID != 0:
				sp[0]++
			default:
				sp[1]++
			}
		}
	}
	for _, p := range pseudoNames {
		if sel.Pseudo&p.flag == 0 {
			continue
		}
		if p.flag&pseudoElements != 0 {
			sp[2]++
		} else {
			sp[1]++
		}
	}
	return sp
}

// String returns canonical selector text.
func (sel *Selector) String() string {
	var b strings.Builder
	for n := sel.Root; n != nil; n = n.Next() {
		b.WriteString(relationText[n.Relation])
		n.write(&b)
	}
	for _, p := range pseudoNames {
		if sel.Pseudo&p.flag != 0 {
			b.WriteString(":" + p.name)
		}
	}
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	start := b.Len()
	switch {
	case n.Name != "":
		b.WriteString(n.Name)
	case n.Element&MatchUniversal != 0:
		b.WriteByte('*')
	}
	for _, c := range n.Children {
		if c.Kind != dom.AttributeNode {
			continue
		}
		switch {
		case c.Attribute&AttrID != 0:
			b.WriteString("#" + c.Value)
		case c.Attribute&AttrSpaceList != 0 && c.Name == "class":
			b.WriteString("." + c.Value)
		case c.Attribute&AttrAny != 0:
			b.WriteString("[" + c.Name + "]")
		default:
			for _, op := range attrOps {
				if c.Attribute&op.flag != 0 {
					b.WriteString("[" + c.Name + op.op + strconv.Quote(c.Value) + "]")
					break
				}
			}
		}
	}
	if n.Element&MatchRoot != 0 {
		b.WriteString(":root")
	}
	if n.Element&MatchEmpty != 0 {
		b.WriteString(":empty")
	}
	for _, nth := range n.NthChild {
		b.WriteString(":" + nth.pseudo("child"))
	}
	for _, nth := range n.NthType {
		b.WriteString(":" + nth.pseudo("of-type"))
	}
	if b.Len() == start {
		b.WriteByte('*')
	}
}
