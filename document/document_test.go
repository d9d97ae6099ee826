package document_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"tbc/archive"
	"tbc/document"
	"tbc/dom"
)

func find(root *dom.Node, name string) *dom.Node {
	pending := []*dom.Node{root}
	for len(pending) > 0 {
		n := pending[0]
		pending = pending[1:]
		if n.IsElement(name) {
			return n
		}
		pending = append(pending, n.Children...)
	}
	return nil
}

func TestParseFormat(t *testing.T) {
	for _, tt := range []struct {
		name string
		want document.Format
	}{
		{"auto", document.FormatAuto},
		{"HTML", document.FormatHTML},
		{"xml", document.FormatXML},
		{"Sgml", document.FormatSGML},
	} {
		got, err := document.ParseFormat(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", tt.name, got, err, tt.want)
		}
		if !strings.EqualFold(got.String(), tt.name) {
			t.Errorf("String() = %q, want %q", got.String(), tt.name)
		}
	}
	if _, err := document.ParseFormat("pdf"); err == nil {
		t.Error("expected error for unknown format")
	}

	var f document.Format
	if err := f.UnmarshalText([]byte("xml")); err != nil || f != document.FormatXML {
		t.Errorf("UnmarshalText failed: %v %v", f, err)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		head string
		want document.Format
	}{
		{"a.HTM", "", document.FormatHTML},
		{"book.fb2", "", document.FormatXML},
		{"doc.sgm", "", document.FormatSGML},
		{"page", "\xef\xbb\xbf  <?xml version='1.0'?><a/>", document.FormatXML},
		{"page", "<!DOCTYPE html><html>", document.FormatHTML},
		{"page", "\n<HTML><body>", document.FormatHTML},
		{"page", "<!DOCTYPE linuxdoc SYSTEM>", document.FormatSGML},
		{"page", "<p>x", document.FormatSGML},
	}
	for _, tt := range tests {
		if got := document.Detect(tt.name, []byte(tt.head)); got != tt.want {
			t.Errorf("Detect(%q, %q) = %v, want %v", tt.name, tt.head, got, tt.want)
		}
	}
}

func TestParseHTML(t *testing.T) {
	input := `<!DOCTYPE html><title>T</title><!-- c --><p class="a" id=x>one<br>two<b>three</b></ul>`
	doc, err := document.ParseHTML(strings.NewReader(input), "")
	if err != nil {
		t.Fatalf("ParseHTML failed: %v", err)
	}
	if doc.Kind != dom.DocumentNode || doc.Children[0].Kind != dom.DocumentTypeNode || doc.Children[0].Name != "html" {
		t.Fatalf("expected doctype first, got %+v", doc.Children)
	}
	html := doc.Children[1]
	if !html.IsElement("html") || html.Parent != doc {
		t.Fatalf("expected html root, got %+v", html)
	}
	if body := find(doc, "body"); body == nil || body.Parent != html {
		t.Fatal("expected implied body")
	}
	p := find(doc, "p")
	if v, _ := p.Attr("class"); v != "a" {
		t.Errorf("expected class a, got %q", v)
	}
	if got := document.TextContent(p); got != "onetwothree" {
		t.Errorf("unexpected text %q", got)
	}
	if got := document.TextContent(find(doc, "title")); got != "T" {
		t.Errorf("unexpected title %q", got)
	}
}

func TestParseHTML_Charset(t *testing.T) {
	// "Привет" in windows-1251
	input := []byte("<p>\xcf\xf0\xe8\xe2\xe5\xf2</p>")
	doc, err := document.ParseHTML(bytes.NewReader(input), "windows-1251")
	if err != nil {
		t.Fatal(err)
	}
	if got := document.TextContent(find(doc, "p")); got != "Привет" {
		t.Errorf("unexpected text %q", got)
	}

	input = []byte(`<meta charset="koi8-r"><p>` + "\xf0\xd2\xc9\xd7\xc5\xd4" + `</p>`)
	doc, err = document.ParseHTML(bytes.NewReader(input), "")
	if err != nil {
		t.Fatal(err)
	}
	if got := document.TextContent(find(doc, "p")); got != "Привет" {
		t.Errorf("meta charset ignored, got %q", got)
	}
}

func TestParseXML(t *testing.T) {
	input := `<?xml version="1.0" encoding="utf-8"?><root xmlns:l="http://www.w3.org/1999/xlink"><!--c--><a l:href="#n1">x&nbsp;y</a><![CDATA[<raw>]]></root>`
	doc, err := document.ParseXML(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseXML failed: %v", err)
	}
	if pi := doc.Children[0]; pi.Kind != dom.ProcInstNode || pi.Name != "xml" {
		t.Fatalf("expected xml declaration, got %+v", pi)
	}
	root := doc.Children[1]
	if !root.IsElement("root") || len(root.Children) != 3 {
		t.Fatalf("unexpected root %+v", root)
	}
	if root.Children[0].Kind != dom.CommentNode || root.Children[0].Value != "c" {
		t.Errorf("expected comment, got %+v", root.Children[0])
	}
	a := root.Children[1]
	if v, ok := a.Attr("l:href"); !ok || v != "#n1" {
		t.Errorf("expected prefixed attribute, got %q %v", v, ok)
	}
	if got := document.TextContent(a); got != "x\u00a0y" {
		t.Errorf("unexpected text %q", got)
	}
	if cd := root.Children[2]; cd.Kind != dom.CDataNode || cd.Value != "<raw>" {
		t.Errorf("expected CDATA, got %+v", cd)
	}
}

func TestParseXML_Broken(t *testing.T) {
	if _, err := document.ParseXML(strings.NewReader(`<a><b></a`)); err == nil {
		t.Error("expected error for truncated XML")
	}
}

func TestParseSGML(t *testing.T) {
	input := []byte("<ul><li>\xcf\xf0\xe8\xe2\xe5\xf2<li>b</ul>")
	doc, err := document.ParseSGML(bytes.NewReader(input), "cp1251", zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	items := find(doc, "ul").Elements()
	if len(items) != 2 || document.TextContent(items[0]) != "Привет" {
		t.Errorf("unexpected items %+v", items)
	}

	if _, err := document.ParseSGML(bytes.NewReader(input), "no-such-charset", nil); err == nil {
		t.Error("expected error for unknown charset")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"page.html": `<p>html</p>`,
		"book.xml":  `<book><p>xml</p></book>`,
		"plain":     `<div><p>sgml</div>`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	log := zaptest.NewLogger(t)
	for name, want := range map[string]string{"page.html": "html", "book.xml": "xml", "plain": "sgml"} {
		doc, err := document.Load(filepath.Join(dir, name), document.FormatAuto, "", log)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", name, err)
		}
		if got := document.TextContent(find(doc, "p")); got != want {
			t.Errorf("Load(%s): expected %q, got %q", name, want, got)
		}
	}

	// explicit format wins over detection
	doc, err := document.Load(filepath.Join(dir, "plain"), document.FormatHTML, "", log)
	if err != nil {
		t.Fatal(err)
	}
	if find(doc, "html") == nil {
		t.Error("expected HTML parser to imply html element")
	}

	if _, err := document.Load(filepath.Join(dir, "missing"), document.FormatAuto, "", log); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_Container(t *testing.T) {
	name := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	fw, err := w.Create("OEBPS/ch1.xhtml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(`<?xml version="1.0"?><html><body><p>inside</p></body></html>`)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	doc, err := document.Load(archive.Join(name, "OEBPS/ch1.xhtml"), document.FormatXML, "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := document.TextContent(find(doc, "p")); got != "inside" {
		t.Errorf("expected %q, got %q", "inside", got)
	}
	if _, err := document.Load(archive.Join(name, "OEBPS/ch2.xhtml"), document.FormatAuto, "", nil); !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTextContent(t *testing.T) {
	el := dom.NewElement("p")
	el.SetAttr("title", "t")
	el.AppendChild(dom.NewText("a"))
	b := el.AppendChild(dom.NewElement("b"))
	b.AppendChild(dom.NewNode(dom.CDataNode, "", "b"))
	b.AppendChild(dom.NewNode(dom.CommentNode, "", "skip"))
	el.AppendChild(dom.NewText("c"))

	if got := document.TextContent(el); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
	if got := document.TextContent(el.Attrs[0]); got != "t" {
		t.Errorf("expected attribute value, got %q", got)
	}
	if document.TextContent(nil) != "" {
		t.Error("expected empty text for nil")
	}
}
