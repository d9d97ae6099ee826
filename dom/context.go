package dom

// Callback is invoked when node of matching kind is pushed or popped. Data
// points to context scratch for the state depth, it is zeroed before push
// and after pop. The pointer must not be retained past the call.
type Callback[T any] func(s *Stack, st *State, data *T) Code

// ContextInfo holds per kind callbacks of a context. Nil entries are
// skipped.
type ContextInfo[T any] struct {
	Push [NodeKindCount]Callback[T]
	Pop  [NodeKindCount]Callback[T]
}

// Context is an observer registered with a stack.
type Context[T any] struct {
	info *ContextInfo[T]
	data []T
}

// AddContext registers new observer with the stack. It may be called while
// stack is in use, states already on the stack get zeroed scratch but their
// push callbacks are not replayed.
func AddContext[T any](s *Stack, info *ContextInfo[T]) *Context[T] {
	c := &Context[T]{info: info, data: make([]T, s.depth)}
	s.contexts = append(s.contexts, c)
	return c
}

// Data returns context scratch for state.
func (c *Context[T]) Data(st *State) *T {
	return &c.data[st.Depth]
}

func (c *Context[T]) reserve(depth int) {
	var zero T
	for len(c.data) <= depth {
		c.data = append(c.data, zero)
	}
	c.data[depth] = zero
}

func (c *Context[T]) push(s *Stack, st *State) Code {
	if cb := c.info.Push[st.Node.Kind]; cb != nil {
		return cb(s, st, &c.data[st.Depth])
	}
	return CodeOK
}

func (c *Context[T]) pop(s *Stack, st *State) Code {
	if cb := c.info.Pop[st.Node.Kind]; cb != nil {
		return cb(s, st, &c.data[st.Depth])
	}
	return CodeOK
}

func (c *Context[T]) clear(depth int) {
	var zero T
	c.data[depth] = zero
}

func (c *Context[T]) release() {
	c.data = nil
}
