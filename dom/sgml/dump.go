package sgml

import (
	"bufio"
	"io"
	"strings"

	"go.uber.org/multierr"

	"tbc/dom"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;")
)

// dumpState is per depth scratch of the dumper context.
type dumpState struct {
	// open is set while start tag of element is not closed yet.
	open bool
}

// Dumper serializes nodes as they pass through the stack it is attached to.
type Dumper struct {
	w   *bufio.Writer
	err error
	ctx *dom.Context[dumpState]
}

// NewDumper returns dumper writing to w.
func NewDumper(w io.Writer) *Dumper {
	return &Dumper{w: bufio.NewWriter(w)}
}

// Attach registers dumper with the stack.
func (d *Dumper) Attach(s *dom.Stack) {
	info := &dom.ContextInfo[dumpState]{}
	info.Push[dom.ElementNode] = d.pushElement
	info.Pop[dom.ElementNode] = d.popElement
	info.Push[dom.AttributeNode] = d.pushAttribute
	info.Push[dom.TextNode] = d.pushText
	info.Push[dom.CDataNode] = d.pushCData
	info.Push[dom.CommentNode] = d.pushComment
	info.Push[dom.EntityRefNode] = d.pushEntityRef
	info.Push[dom.ProcInstNode] = d.pushProcInst
	info.Push[dom.DocumentTypeNode] = d.pushDoctype
	d.ctx = dom.AddContext(s, info)
}

// Flush writes buffered output and returns first error encountered.
func (d *Dumper) Flush() error {
	return multierr.Append(d.err, d.w.Flush())
}

// Dump serializes subtree rooted at root to w.
func Dump(w io.Writer, root *dom.Node) error {
	s := dom.NewStack()
	defer s.Done()

	d := NewDumper(w)
	d.Attach(s)
	err := s.Walk(root)
	return multierr.Append(err, d.Flush())
}

func (d *Dumper) write(parts ...string) {
	if d.err != nil {
		return
	}
	for _, p := range parts {
		if _, err := d.w.WriteString(p); err != nil {
			d.err = err
			return
		}
	}
}

// closeStart finishes start tag of the parent element when content follows.
func (d *Dumper) closeStart(s *dom.Stack, st *dom.State) {
	parent := s.Parent(st)
	if parent == nil || parent.Node.Kind != dom.ElementNode {
		return
	}
	if data := d.ctx.Data(parent); data.open {
		data.open = false
		d.write(">")
	}
}

func (d *Dumper) pushElement(s *dom.Stack, st *dom.State, data *dumpState) dom.Code {
	d.closeStart(s, st)
	d.write("<", st.Node.Name)
	data.open = true
	return dom.CodeOK
}

func (d *Dumper) popElement(_ *dom.Stack, st *dom.State, data *dumpState) dom.Code {
	if data.open {
		data.open = false
		d.write(">")
	}
	if !IsVoid(st.Node.Name) {
		d.write("</", st.Node.Name, ">")
	}
	return dom.CodeOK
}

func (d *Dumper) pushAttribute(s *dom.Stack, st *dom.State, _ *dumpState) dom.Code {
	parent := s.Parent(st)
	if parent == nil || parent.Node.Kind != dom.ElementNode || !d.ctx.Data(parent).open {
		return dom.CodeOK
	}
	if st.Node.Value == "" {
		d.write(" ", st.Node.Name)
		return dom.CodeOK
	}
	d.write(" ", st.Node.Name, "=\"", attrEscaper.Replace(st.Node.Value), "\"")
	return dom.CodeOK
}

func (d *Dumper) pushText(s *dom.Stack, st *dom.State, _ *dumpState) dom.Code {
	d.closeStart(s, st)
	if parent := s.Parent(st); parent != nil && parent.Node.Kind == dom.ElementNode && rawElements[strings.ToLower(parent.Node.Name)] {
		d.write(st.Node.Value)
		return dom.CodeOK
	}
	d.write(textEscaper.Replace(st.Node.Value))
	return dom.CodeOK
}

func (d *Dumper) pushCData(s *dom.Stack, st *dom.State, _ *dumpState) dom.Code {
	d.closeStart(s, st)
	d.write("<![CDATA[", st.Node.Value, "]]>")
	return dom.CodeOK
}

func (d *Dumper) pushComment(s *dom.Stack, st *dom.State, _ *dumpState) dom.Code {
	d.closeStart(s, st)
	d.write("<!--", st.Node.Value, "-->")
	return dom.CodeOK
}

func (d *Dumper) pushEntityRef(s *dom.Stack, st *dom.State, _ *dumpState) dom.Code {
	d.closeStart(s, st)
	d.write("&", st.Node.Name, ";")
	return dom.CodeOK
}

func (d *Dumper) pushProcInst(s *dom.Stack, st *dom.State, _ *dumpState) dom.Code {
	d.closeStart(s, st)
	if st.Node.Value == "" {
		d.write("<?", st.Node.Name, "?>")
		return dom.CodeOK
	}
	d.write("<?", st.Node.Name, " ", st.Node.Value, "?>")
	return dom.CodeOK
}

func (d *Dumper) pushDoctype(_ *dom.Stack, st *dom.State, _ *dumpState) dom.Code {
	d.write("<!DOCTYPE ", st.Node.Name)
	pub, hasPub := st.Node.Attr("public")
	sys, hasSys := st.Node.Attr("system")
	switch {
	case hasPub:
		d.write(" PUBLIC \"", pub, "\"")
		if hasSys {
			d.write(" \"", sys, "\"")
		}
	case hasSys:
		d.write(" SYSTEM \"", sys, "\"")
	}
	d.write(">")
	return dom.CodeOK
}
