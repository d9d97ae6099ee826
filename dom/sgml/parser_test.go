package sgml_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"tbc/dom"
	"tbc/dom/scanner"
	"tbc/dom/sgml"
)

func parse(t *testing.T, input string, opts ...sgml.Option) *dom.Node {
	t.Helper()
	doc, err := sgml.NewParser(zaptest.NewLogger(t), opts...).Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", input, err)
	}
	return doc
}

func dump(t *testing.T, root *dom.Node) string {
	t.Helper()
	var buf bytes.Buffer
	if err := sgml.Dump(&buf, root); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	return buf.String()
}

func TestParser_Tree(t *testing.T) {
	doc := parse(t, `<ul class="menu"><li>A</li><li>B</li></ul>`)
	if doc.Kind != dom.DocumentNode || len(doc.Children) != 1 {
		t.Fatalf("expected document with single child, got %+v", doc)
	}
	ul := doc.Children[0]
	if !ul.IsElement("ul") || ul.Parent != doc {
		t.Fatalf("expected ul element, got %+v", ul)
	}
	if v, ok := ul.Attr("class"); !ok || v != "menu" {
		t.Errorf("expected class=menu, got %q %v", v, ok)
	}
	items := ul.Elements()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for i, want := range []string{"A", "B"} {
		li := items[i]
		if !li.IsElement("li") || len(li.Children) != 1 || li.Children[0].Value != want {
			t.Errorf("item %d: unexpected %+v", i, li)
		}
	}
}

func TestParser_ImpliedEnds(t *testing.T) {
	doc := parse(t, `<ul><li>one<li>two</ul><p>a<p>b<div>c</div>`)
	want := `<ul><li>one</li><li>two</li></ul><p>a</p><p>b</p><div>c</div>`
	if got := dump(t, doc); got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestParser_VoidAndEmpty(t *testing.T) {
	doc := parse(t, `<p>a<br>b<img src="x.png"/><span/>c</p>`)
	p := doc.Children[0]
	var names []string
	for _, c := range p.Children {
		if c.Kind == dom.ElementNode {
			names = append(names, c.Name)
			if len(c.Children) != 0 {
				t.Errorf("%s must be empty, got %d children", c.Name, len(c.Children))
			}
		}
	}
	if strings.Join(names, ",") != "br,img,span" {
		t.Errorf("unexpected element children %v", names)
	}
}

func TestParser_UnmatchedEndTag(t *testing.T) {
	doc := parse(t, `<div>a</span>b</div>c`)
	want := `<div>ab</div>c`
	if got := dump(t, doc); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestParser_RawText(t *testing.T) {
	doc := parse(t, `<script>if (a < b && c) {}</script><p>x</p>`)
	script := doc.Children[0]
	if !script.IsElement("script") || len(script.Children) != 1 {
		t.Fatalf("unexpected script %+v", script)
	}
	if got := script.Children[0].Value; got != "if (a < b && c) {}" {
		t.Errorf("unexpected script text %q", got)
	}
	if p := doc.Children[1]; !p.IsElement("p") {
		t.Errorf("expected p after script, got %+v", p)
	}

	// markup errors inside raw text do not abort parsing
	doc = parse(t, `<script>x </ y</script>z`)
	if got := doc.Children[0].Children[0].Value; got != "x </ y" || doc.Children[1].Value != "z" {
		t.Errorf("unexpected raw text %q", got)
	}

	doc = parse(t, `<style type="text/css">p > a {}</STYLE>`)
	style := doc.Children[0]
	if v, _ := style.Attr("type"); v != "text/css" || style.Children[0].Value != "p > a {}" {
		t.Errorf("unexpected style %+v", style)
	}
}

func TestParser_Attributes(t *testing.T) {
	doc := parse(t, `<input type=checkbox checked value="a&amp;b" TYPE="radio">`)
	in := doc.Children[0]
	if v, _ := in.Attr("type"); v != "radio" {
		t.Errorf("expected later attribute to win, got %q", v)
	}
	if v, ok := in.Attr("checked"); !ok || v != "" {
		t.Errorf("expected bare attribute, got %q %v", v, ok)
	}
	if v, _ := in.Attr("value"); v != "a&b" {
		t.Errorf("expected entity to be decoded, got %q", v)
	}
	if len(in.Attrs) != 3 {
		t.Errorf("expected 3 attributes, got %d", len(in.Attrs))
	}
}

func TestParser_Nodes(t *testing.T) {
	input := `<?xml version="1.0"?><!DOCTYPE html PUBLIC "-//W3C//DTD HTML 4.01//EN" "http://www.w3.org/TR/html4/strict.dtd"><!-- note --><p>&nbsp;<![CDATA[x]]></p>`
	doc := parse(t, input)

	kinds := make([]dom.NodeKind, len(doc.Children))
	for i, c := range doc.Children {
		kinds[i] = c.Kind
	}
	want := []dom.NodeKind{dom.ProcInstNode, dom.DocumentTypeNode, dom.CommentNode, dom.ElementNode}
	if len(kinds) != len(want) {
		t.Fatalf("expected kinds %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("child %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}

	pi := doc.Children[0]
	if pi.Name != "xml" || pi.Value != `version="1.0"` {
		t.Errorf("unexpected processing instruction %+v", pi)
	}
	dt := doc.Children[1]
	if pub, _ := dt.Attr("public"); dt.Name != "html" || pub != "-//W3C//DTD HTML 4.01//EN" {
		t.Errorf("unexpected doctype %+v", dt)
	}
	p := doc.Children[3]
	if len(p.Children) != 2 || p.Children[0].Kind != dom.EntityRefNode || p.Children[0].Name != "nbsp" || p.Children[1].Kind != dom.CDataNode {
		t.Errorf("unexpected paragraph content %+v", p.Children)
	}

	if got := dump(t, doc); got != input {
		t.Errorf("round trip mismatch\nwant %s\ngot  %s", input, got)
	}
}

func TestParser_MalformedEndTag(t *testing.T) {
	doc, err := sgml.NewParser(nil).Parse(`<p>x</ 1>`)
	if doc != nil || !errors.Is(err, scanner.ErrAborted) {
		t.Fatalf("expected aborted parse, got %v %v", doc, err)
	}
}

func TestParser_MaxDepth(t *testing.T) {
	input := strings.Repeat("<div>", 10)
	_, err := sgml.NewParser(nil, sgml.WithStackOptions(dom.WithMaxDepth(5))).Parse(input)
	if !errors.Is(err, dom.ErrMaxDepth) {
		t.Fatalf("expected ErrMaxDepth, got %v", err)
	}
}

func TestParser_Observer(t *testing.T) {
	var order []string
	observe := func(s *dom.Stack) {
		info := &dom.ContextInfo[struct{}]{}
		info.Push[dom.ElementNode] = func(_ *dom.Stack, st *dom.State, _ *struct{}) dom.Code {
			order = append(order, "+"+st.Node.Name)
			return dom.CodeOK
		}
		info.Pop[dom.ElementNode] = func(_ *dom.Stack, st *dom.State, _ *struct{}) dom.Code {
			order = append(order, "-"+st.Node.Name)
			return dom.CodeOK
		}
		dom.AddContext(s, info)
	}
	parse(t, `<a><b></b><c></a>`, sgml.WithObserver(observe))
	if got := strings.Join(order, " "); got != "+a +b -b +c -c -a" {
		t.Errorf("unexpected event order %s", got)
	}
}

func TestDumper_Escaping(t *testing.T) {
	doc := dom.NewDocument()
	p := doc.AppendChild(dom.NewElement("p"))
	p.SetAttr("title", `say "hi" & <go>`)
	p.AppendChild(dom.NewText("a < b & c"))
	p.AppendChild(dom.NewElement("br"))

	want := `<p title="say &quot;hi&quot; &amp; &lt;go&gt;">a &lt; b &amp; c<br></p>`
	if got := dump(t, doc); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestDumper_SharedWalk(t *testing.T) {
	doc := parse(t, `<p>a<b>b</b></p>`)

	var buf bytes.Buffer
	s := dom.NewStack()
	defer s.Done()
	d := sgml.NewDumper(&buf)
	d.Attach(s)

	elements := 0
	info := &dom.ContextInfo[struct{}]{}
	info.Push[dom.ElementNode] = func(*dom.Stack, *dom.State, *struct{}) dom.Code {
		elements++
		return dom.CodeOK
	}
	dom.AddContext(s, info)

	if err := s.Walk(doc); err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if buf.String() != `<p>a<b>b</b></p>` || elements != 2 {
		t.Errorf("unexpected output %q, elements %d", buf.String(), elements)
	}
}

func TestParser_FreeNodesPolicy(t *testing.T) {
	doc := parse(t, "<ul><li>A</li></ul>", sgml.WithStackOptions(dom.WithFreeNodes()))
	if got := dump(t, doc); got != "<ul><li>A</li></ul>" {
		t.Errorf("tree must survive building, got %q", got)
	}

	// explicit requests are still honored
	drop := func(s *dom.Stack) {
		info := &dom.ContextInfo[struct{}]{}
		info.Pop[dom.ElementNode] = func(_ *dom.Stack, st *dom.State, _ *struct{}) dom.Code {
			if st.Node.Name == "li" {
				return dom.CodeFreeNode
			}
			return dom.CodeOK
		}
		dom.AddContext(s, info)
	}
	doc = parse(t, "<ul><li>A</li><li>B</li></ul>", sgml.WithStackOptions(dom.WithFreeNodes()), sgml.WithObserver(drop))
	if got := dump(t, doc); got != "<ul></ul>" {
		t.Errorf("freed elements must be detached, got %q", got)
	}
}
