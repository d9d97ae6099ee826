package dom

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMaxDepth is returned when push would exceed stack depth limit.
	ErrMaxDepth = errors.New("maximum stack depth exceeded")
	// ErrInvalidState is returned for operations that cannot be performed in
	// current stack state.
	ErrInvalidState = errors.New("invalid stack state")
)

// MaxDepth is the hard limit of stack depth.
const MaxDepth = 4096

// Code is returned by context callbacks.
type Code int

const (
	CodeOK Code = iota
	// CodeFreeNode requests node to be freed when popped.
	CodeFreeNode
	// CodeKeepNode protects node from being freed by WithFreeNodes policy.
	CodeKeepNode
)

// State is a single stack frame.
type State struct {
	Node  *Node
	Depth int
	// Immutable state can never be popped.
	Immutable bool

	free bool
	keep bool
}

// observer is implemented by Context for all scratch types.
type observer interface {
	reserve(depth int)
	push(s *Stack, st *State) Code
	pop(s *Stack, st *State) Code
	clear(depth int)
	release()
}

// Stack is depth indexed tree walking machine. It is not safe for concurrent
// use.
type Stack struct {
	states    []*State
	depth     int
	contexts  []observer
	maxDepth  int
	freeNodes bool
	walker    *Context[cursor]
}

// Option configures Stack.
type Option func(*Stack)

// WithFreeNodes makes stack free (detach) every popped node unless context
// asked to keep it.
func WithFreeNodes() Option {
	return func(s *Stack) {
		s.freeNodes = true
	}
}

// WithMaxDepth lowers depth limit, values outside of 1..MaxDepth are
// ignored.
func WithMaxDepth(depth int) Option {
	return func(s *Stack) {
		if depth > 0 && depth <= MaxDepth {
			s.maxDepth = depth
		}
	}
}

// NewStack returns empty stack.
func NewStack(opts ...Option) *Stack {
	s := &Stack{maxDepth: MaxDepth}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Depth returns number of states on the stack.
func (s *Stack) Depth() int {
	return s.depth
}

// Top returns top state or nil when stack is empty.
func (s *Stack) Top() *State {
	if s.depth == 0 {
		return nil
	}
	return s.states[s.depth-1]
}

// State returns state at depth (0 is the bottom) or nil.
func (s *Stack) State(depth int) *State {
	if depth < 0 || depth >= s.depth {
		return nil
	}
	return s.states[depth]
}

// Parent returns state directly below st or nil.
func (s *Stack) Parent(st *State) *State {
	return s.State(st.Depth - 1)
}

// Push consumes node: on success it becomes the top of the stack and all
// contexts push callbacks for its kind are invoked, on failure node is freed
// before returning error.
func (s *Stack) Push(node *Node) error {
	if node == nil {
		return fmt.Errorf("push nil node: %w", ErrInvalidState)
	}
	if s.depth >= s.maxDepth {
		node.Detach()
		return fmt.Errorf("push %s %q at depth %d: %w", node.Kind, node.Name, s.depth, ErrMaxDepth)
	}
	if s.depth == len(s.states) {
		s.states = append(s.states, &State{})
	}
	st := s.states[s.depth]
	*st = State{Node: node, Depth: s.depth}
	for _, c := range s.contexts {
		c.reserve(st.Depth)
	}
	s.depth++

	for _, c := range s.contexts {
		st.apply(c.push(s, st))
	}
	return nil
}

// Pop removes top state. It does nothing when stack is empty or top state is
// immutable.
func (s *Stack) Pop() {
	st := s.Top()
	if st == nil || st.Immutable {
		return
	}
	for _, c := range s.contexts {
		st.apply(c.pop(s, st))
	}
	if st.free || (s.freeNodes && !st.keep) {
		st.Node.Detach()
	}
	for _, c := range s.contexts {
		c.clear(st.Depth)
	}
	s.depth--
	*st = State{}
}

// PopState pops states until target has been popped or immutable state is
// reached.
func (s *Stack) PopState(target *State) {
	for s.depth > 0 {
		st := s.Top()
		if st.Immutable {
			return
		}
		s.Pop()
		if st == target {
			return
		}
	}
}

// PopNode pops everything up to and including the nearest state holding
// node of kind named name (case-insensitively). It reports whether such
// state was found below the first immutable state.
func (s *Stack) PopNode(kind NodeKind, name string) bool {
	for d := s.depth - 1; d >= 0; d-- {
		st := s.states[d]
		if st.Immutable {
			return false
		}
		if st.Node.Kind == kind && strings.EqualFold(st.Node.Name, name) {
			s.PopState(st)
			return true
		}
	}
	return false
}

// Done pops all states and releases contexts scratch storage. States marked
// immutable are dropped without invoking pop callbacks.
func (s *Stack) Done() {
	for s.depth > 0 && !s.Top().Immutable {
		s.Pop()
	}
	for _, c := range s.contexts {
		c.release()
	}
	s.contexts = nil
	s.walker = nil
	s.states = nil
	s.depth = 0
}

func (st *State) apply(code Code) {
	switch code {
	case CodeFreeNode:
		st.free = true
	case CodeKeepNode:
		st.keep = true
	}
}
