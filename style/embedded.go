package style

import (
	"strings"

	"tbc/dom"
)

// Embedded returns contents of <style> elements under root in document
// order. Style elements with type other than text/css are ignored.
func Embedded(root *dom.Node) []string {
	var out []string
	visit(root, func(n *dom.Node) {
		if !n.IsElement("style") {
			return
		}
		if t, ok := n.Attr("type"); ok && t != "" && !strings.EqualFold(t, "text/css") {
			return
		}
		var sb strings.Builder
		for _, c := range n.Children {
			if c.Kind == dom.TextNode || c.Kind == dom.CDataNode {
				sb.WriteString(c.Value)
			}
		}
		out = append(out, sb.String())
	})
	return out
}

// Linked returns href values of <link rel="stylesheet"> elements under root
// in document order.
func Linked(root *dom.Node) []string {
	var out []string
	visit(root, func(n *dom.Node) {
		if !n.IsElement("link") {
			return
		}
		rel, _ := n.Attr("rel")
		href, ok := n.Attr("href")
		if !ok || href == "" || !hasWord(rel, "stylesheet") {
			return
		}
		out = append(out, href)
	})
	return out
}

func hasWord(list, word string) bool {
	for _, w := range strings.Fields(list) {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

// visit calls fn for every node under root in document order.
func visit(root *dom.Node, fn func(*dom.Node)) {
	if root == nil {
		return
	}
	pending := []*dom.Node{root}
	for len(pending) > 0 {
		n := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		fn(n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			pending = append(pending, n.Children[i])
		}
	}
}
