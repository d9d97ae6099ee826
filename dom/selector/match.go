package selector

import (
	"slices"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tbc/dom"
)

// candidate is selector group waiting for an element to match. Anchor is
// the element matched by the preceding group, nil for the chain root. Scope
// is the anchor's parent at the time it matched.
type candidate struct {
	sel    *Node
	anchor *dom.Node
	scope  *dom.Node
}

// owner is per document state scratch. Owned is number of candidates to
// drop from the candidate stack when the state is popped. Element children
// pushed so far are recorded so sibling predicates hold even when freed
// siblings are already gone from the tree.
type owner struct {
	owned int
	// matches count when the state was pushed
	mark int
	// names of element children pushed so far and the last of them
	names []string
	last  *dom.Node
}

// Matcher matches selector against document elements as they are pushed on
// the document stack it is attached to. Live candidates are kept on a
// separate candidate stack in lock step with the document stack.
type Matcher struct {
	sel *Selector
	log *zap.Logger

	cands    *dom.Stack
	candData *dom.Context[candidate]
	pending  candidate

	docs    *dom.Context[owner]
	matches []*dom.Node
	err     error
	// depth of the outermost matched element on the document stack, its
	// subtree is protected from the free policy
	keepFrom int
}

// NewMatcher returns matcher for sel.
func NewMatcher(sel *Selector, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Matcher{sel: sel, log: log.Named("selector")}
	m.reset()
	return m
}

// Attach registers matcher with document stack. Matcher may be attached to
// a single stack only. Under dom.WithFreeNodes matched elements, their
// subtrees and ancestors are kept, attributes are never freed.
func (m *Matcher) Attach(s *dom.Stack) {
	info := &dom.ContextInfo[owner]{}
	for k := range dom.NodeKindCount {
		info.Push[k] = m.pushOther
	}
	info.Push[dom.ElementNode] = m.pushElement
	info.Push[dom.AttributeNode] = keepNode
	info.Pop[dom.ElementNode] = m.popElement
	info.Pop[dom.DocumentNode] = m.popOwner
	info.Pop[dom.FragmentNode] = m.popOwner
	m.docs = dom.AddContext(s, info)
}

// Matches returns matched elements in document order.
func (m *Matcher) Matches() []*dom.Node {
	return m.matches
}

// Err returns errors encountered while matching, candidate stack overflow
// being the only possible one.
func (m *Matcher) Err() error {
	return m.err
}

// Reset drops matches and live candidates so matcher can be used for
// another walk.
func (m *Matcher) Reset() {
	m.cands.Done()
	m.reset()
}

func (m *Matcher) reset() {
	m.matches, m.err, m.keepFrom = nil, nil, -1
	m.cands = dom.NewStack()

	info := &dom.ContextInfo[candidate]{}
	info.Push[dom.ElementNode] = func(_ *dom.Stack, _ *dom.State, data *candidate) dom.Code {
		*data = m.pending
		return dom.CodeOK
	}
	m.candData = dom.AddContext(m.cands, info)

	// chain root is always live
	m.pending = candidate{sel: m.sel.Root}
	if err := m.cands.Push(&m.sel.Root.stub); err != nil {
		m.err = err
		return
	}
	m.cands.Top().Immutable = true
}

// depth returns number of live candidates.
func (m *Matcher) depth() int {
	return m.cands.Depth()
}

func (m *Matcher) pushElement(s *dom.Stack, st *dom.State, data *owner) dom.Code {
	e := st.Node
	data.mark = len(m.matches)

	var scope *owner
	if parent := s.Parent(st); parent != nil && parent.Node == e.Parent {
		scope = m.docs.Data(parent)
	} else {
		scope = treeScope(e)
	}

	// candidates anchored at siblings live in parent scope, they go first
	// so each scope's candidates stay contiguous on the candidate stack
	var siblings, children []candidate
	matched := false
	for d := range m.cands.Depth() {
		c := m.candData.Data(m.cands.State(d))
		if !related(c, scope.last, e) || !c.sel.matchElement(e, scope.names) {
			continue
		}
		next := c.sel.Next()
		if next == nil {
			matched = true
			continue
		}
		nc := candidate{sel: next, anchor: e, scope: e.Parent}
		switch next.Relation {
		case DirectAdjacent, IndirectAdjacent:
			if !slices.Contains(siblings, nc) {
				siblings = append(siblings, nc)
			}
		default:
			if !slices.Contains(children, nc) {
				children = append(children, nc)
			}
		}
	}

	scope.names = append(scope.names, e.Name)
	scope.last = e

	if matched {
		m.log.Debug("Element matched", zap.Stringer("selector", m.sel), zap.String("element", e.Name))
		m.matches = append(m.matches, e)
		if m.keepFrom < 0 {
			m.keepFrom = st.Depth
		}
	}
	if parent := s.Parent(st); parent != nil {
		m.pushCandidates(siblings, m.docs.Data(parent))
	}
	m.pushCandidates(children, data)
	return m.keep(st)
}

// treeScope describes preceding siblings of element which parent is not on
// the stack (walk started below it).
func treeScope(e *dom.Node) *owner {
	o := &owner{}
	if e.Parent == nil {
		return o
	}
	for _, c := range e.Parent.Children {
		if c == e {
			break
		}
		if c.Kind == dom.ElementNode {
			o.names = append(o.names, c.Name)
			o.last = c
		}
	}
	return o
}

func keepNode(*dom.Stack, *dom.State, *owner) dom.Code {
	return dom.CodeKeepNode
}

func (m *Matcher) keep(st *dom.State) dom.Code {
	if m.keepFrom >= 0 && st.Depth >= m.keepFrom {
		return dom.CodeKeepNode
	}
	return dom.CodeOK
}

func (m *Matcher) pushOther(_ *dom.Stack, st *dom.State, _ *owner) dom.Code {
	return m.keep(st)
}

// popElement keeps elements which hold matches in their subtree.
func (m *Matcher) popElement(s *dom.Stack, st *dom.State, data *owner) dom.Code {
	code := dom.CodeOK
	if len(m.matches) > data.mark {
		code = dom.CodeKeepNode
	}
	if st.Depth == m.keepFrom {
		m.keepFrom = -1
	}
	m.popOwner(s, st, data)
	return code
}

func (m *Matcher) pushCandidates(list []candidate, o *owner) {
	for _, c := range list {
		m.pending = c
		if err := m.cands.Push(&c.sel.stub); err != nil {
			m.err = multierr.Append(m.err, err)
			return
		}
		o.owned++
	}
}

func (m *Matcher) popOwner(_ *dom.Stack, _ *dom.State, data *owner) dom.Code {
	for range data.owned {
		m.cands.Pop()
	}
	data.owned = 0
	return dom.CodeOK
}

// Select walks tree rooted at root and returns elements matching sel in
// document order.
func Select(sel *Selector, root *dom.Node) ([]*dom.Node, error) {
	s := dom.NewStack()
	defer s.Done()

	m := NewMatcher(sel, nil)
	defer m.cands.Done()
	m.Attach(s)

	if err := s.Walk(root); err != nil {
		return nil, err
	}
	return m.Matches(), m.Err()
}

// related checks relation of element e to candidate anchor. Prev is the
// element sibling pushed right before e. Sibling candidates are created
// when their anchor is pushed, so the anchor always precedes e.
func related(c *candidate, prev, e *dom.Node) bool {
	switch c.sel.Relation {
	case RelationNone:
		return true
	case Descendant:
		for p := e.Parent; p != nil; p = p.Parent {
			if p == c.anchor {
				return true
			}
		}
		return false
	case DirectChild:
		return e.Parent == c.anchor
	case DirectAdjacent:
		return e.Parent != nil && e.Parent == c.scope && prev == c.anchor
	case IndirectAdjacent:
		return e.Parent != nil && e.Parent == c.scope
	}
	return false
}

// matchElement tests element predicates and attribute predicates of group.
// Before holds names of element siblings preceding e.
func (n *Node) matchElement(e *dom.Node, before []string) bool {
	if e.Kind != dom.ElementNode {
		return false
	}
	if n.Name != "" && !strings.EqualFold(n.Name, e.Name) {
		return false
	}
	if n.Element&MatchRoot != 0 && e.Parent != nil && e.Parent.Kind != dom.DocumentNode {
		return false
	}
	if n.Element&MatchEmpty != 0 && !isEmpty(e) {
		return false
	}
	if n.Element&MatchNthChild != 0 {
		pos, count := position(e, before, false)
		for _, nth := range n.NthChild {
			if !nth.Matches(pos, count) {
				return false
			}
		}
	}
	if n.Element&MatchNthType != 0 {
		pos, count := position(e, before, true)
		for _, nth := range n.NthType {
			if !nth.Matches(pos, count) {
				return false
			}
		}
	}
	for _, c := range n.Children {
		if c.Kind == dom.AttributeNode && !c.matchAttribute(e) {
			return false
		}
	}
	return true
}

func isEmpty(e *dom.Node) bool {
	for _, c := range e.Children {
		switch c.Kind {
		case dom.ElementNode, dom.TextNode, dom.CDataNode, dom.EntityRefNode:
			return false
		}
	}
	return true
}

// position returns 1-based position of e among element siblings (of the
// same name when ofType is set) and their count. Preceding siblings come
// from before, following ones from the tree as they were not visited yet.
func position(e *dom.Node, before []string, ofType bool) (int, int) {
	pos := 1
	for _, name := range before {
		if !ofType || strings.EqualFold(name, e.Name) {
			pos++
		}
	}
	if e.Parent == nil {
		return pos, pos
	}
	count := pos
	following := e.Parent.Children
	if i := slices.Index(following, e); i >= 0 {
		following = following[i+1:]
	}
	for _, c := range following {
		if c.Kind == dom.ElementNode && (!ofType || strings.EqualFold(c.Name, e.Name)) {
			count++
		}
	}
	return pos, count
}

func (n *Node) matchAttribute(e *dom.Node) bool {
	v, ok := e.Attr(n.Name)
	if !ok {
		return false
	}
	switch {
	case n.Attribute&AttrAny != 0:
		return true
	case n.Attribute&(AttrExact|AttrID) != 0:
		return strings.EqualFold(v, n.Value)
	case n.Attribute&AttrBegin != 0:
		return n.Value != "" && strings.HasPrefix(v, n.Value)
	case n.Attribute&AttrEnd != 0:
		return n.Value != "" && strings.HasSuffix(v, n.Value)
	case n.Attribute&AttrContains != 0:
		return n.Value != "" && strings.Contains(v, n.Value)
	case n.Attribute&AttrSpaceList != 0:
		return slices.Contains(strings.Fields(v), n.Value)
	case n.Attribute&AttrHyphenList != 0:
		return v == n.Value || strings.HasPrefix(v, n.Value+"-")
	}
	return false
}
