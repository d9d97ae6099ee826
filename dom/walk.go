package dom

import "fmt"

// cursor tracks walking progress through child groups of a state node.
type cursor struct {
	group int
	index int
}

// Walk traverses subtree rooted at root depth first, pushing every node
// (attributes included) and popping it once all its groups are exhausted.
// Traversal is iterative: depth is limited only by the stack depth limit. On
// error all states pushed by the walk are popped.
func (s *Stack) Walk(root *Node) error {
	if root == nil {
		return fmt.Errorf("walk nil node: %w", ErrInvalidState)
	}
	if s.walker == nil {
		s.walker = AddContext(s, &ContextInfo[cursor]{})
	}

	base := s.depth
	if err := s.Push(root); err != nil {
		return err
	}

	for s.depth > base {
		st := s.Top()
		next := s.advance(st)
		if next != nil {
			if err := s.Push(next); err != nil {
				s.unwind(base)
				return err
			}
			continue
		}
		if st.Immutable {
			s.unwind(base)
			return fmt.Errorf("walk blocked by immutable %s: %w", st.Node.Kind, ErrInvalidState)
		}
		node := st.Node
		s.Pop()
		if s.depth > base {
			s.rewind(s.Top(), node)
		}
	}
	return nil
}

// rewind steps parent cursor back when popped node was freed and its
// following siblings moved one slot back.
func (s *Stack) rewind(parent *State, node *Node) {
	cur := s.walker.Data(parent)
	if cur.index == 0 {
		return
	}
	group, _ := parent.Node.Group(cur.group)
	if cur.index > len(group) || group[cur.index-1] != node {
		cur.index--
	}
}

// advance returns next unvisited node of state's groups.
func (s *Stack) advance(st *State) *Node {
	cur := s.walker.Data(st)
	for {
		group, ok := st.Node.Group(cur.group)
		if !ok {
			return nil
		}
		if cur.index < len(group) {
			cur.index++
			return group[cur.index-1]
		}
		cur.group++
		cur.index = 0
	}
}

func (s *Stack) unwind(base int) {
	for s.depth > base && !s.Top().Immutable {
		s.Pop()
	}
}
