// Package dom implements document tree and the depth indexed stack machine
// used to build and walk it.
//
// Stack is generic: any number of observers (contexts) may register per node
// kind push and pop callbacks together with private per depth scratch
// storage. The same mechanism is used to build trees (SGML parser),
// serialize them (SGML dumper) and match selectors against them.
package dom

import (
	"slices"
	"strings"
)

// NodeKind is closed set of node kinds. Ordinals follow W3C DOM nodeType
// values and are used as dispatch keys for context callbacks.
type NodeKind uint8

const (
	ElementNode NodeKind = iota + 1
	AttributeNode
	TextNode
	CDataNode
	EntityRefNode
	EntityNode
	ProcInstNode
	CommentNode
	DocumentNode
	DocumentTypeNode
	FragmentNode
	NotationNode
)

// NodeKindCount is the size of callback tables indexed by NodeKind.
const NodeKindCount = int(NotationNode) + 1

var kindNames = [NodeKindCount]string{
	ElementNode:      "element",
	AttributeNode:    "attribute",
	TextNode:         "text",
	CDataNode:        "cdata",
	EntityRefNode:    "entity-reference",
	EntityNode:       "entity",
	ProcInstNode:     "processing-instruction",
	CommentNode:      "comment",
	DocumentNode:     "document",
	DocumentTypeNode: "document-type",
	FragmentNode:     "document-fragment",
	NotationNode:     "notation",
}

func (k NodeKind) String() string {
	if int(k) < NodeKindCount && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Node is a document tree node. Attribute nodes live in Attrs of their
// element (or document type), everything else in Children.
type Node struct {
	Kind     NodeKind
	Name     string
	Value    string
	Parent   *Node
	Attrs    []*Node
	Children []*Node
}

// NewNode returns detached node.
func NewNode(kind NodeKind, name, value string) *Node {
	return &Node{Kind: kind, Name: name, Value: value}
}

// NewDocument returns empty document node.
func NewDocument() *Node {
	return &Node{Kind: DocumentNode}
}

// NewElement returns detached element.
func NewElement(name string) *Node {
	return &Node{Kind: ElementNode, Name: name}
}

// NewText returns detached text node.
func NewText(value string) *Node {
	return &Node{Kind: TextNode, Value: value}
}

// AppendChild adds child as the last child of n and returns it. Attribute
// nodes are added to Attrs.
func (n *Node) AppendChild(child *Node) *Node {
	child.Detach()
	child.Parent = n
	if child.Kind == AttributeNode {
		n.Attrs = append(n.Attrs, child)
	} else {
		n.Children = append(n.Children, child)
	}
	return child
}

// SetAttr sets value of attribute name (compared case-insensitively)
// creating attribute node if necessary and returns it.
func (n *Node) SetAttr(name, value string) *Node {
	if a := n.attr(name); a != nil {
		a.Value = value
		return a
	}
	return n.AppendChild(NewNode(AttributeNode, name, value))
}

// Attr returns value of attribute name.
func (n *Node) Attr(name string) (string, bool) {
	if a := n.attr(name); a != nil {
		return a.Value, true
	}
	return "", false
}

func (n *Node) attr(name string) *Node {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

// Detach removes node from its parent. Detaching is how stack frees nodes:
// node is dropped from the tree and left to the garbage collector.
func (n *Node) Detach() {
	p := n.Parent
	if p == nil {
		return
	}
	n.Parent = nil
	list := &p.Children
	if n.Kind == AttributeNode {
		list = &p.Attrs
	}
	if i := slices.Index(*list, n); i >= 0 {
		*list = slices.Delete(*list, i, i+1)
	}
}

// Group returns i-th child group of the node in walking order: attributes
// before children for elements and document types, children only for
// documents and fragments. Other kinds are leaves.
func (n *Node) Group(i int) ([]*Node, bool) {
	switch n.Kind {
	case ElementNode, DocumentTypeNode:
		switch i {
		case 0:
			return n.Attrs, true
		case 1:
			return n.Children, true
		}
	case DocumentNode, FragmentNode:
		if i == 0 {
			return n.Children, true
		}
	}
	return nil, false
}

// IsElement reports whether node is element named name (case-insensitively),
// any element when name is empty.
func (n *Node) IsElement(name string) bool {
	return n != nil && n.Kind == ElementNode && (name == "" || strings.EqualFold(n.Name, name))
}

// Elements returns element children of n.
func (n *Node) Elements() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == ElementNode {
			out = append(out, c)
		}
	}
	return out
}
