// Package document loads markup from external sources into dom trees.
package document

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"tbc/archive"
	"tbc/dom"
	"tbc/dom/sgml"
)

// Format selects the parser used to build document tree.
type Format int

const (
	FormatAuto Format = iota
	FormatHTML
	FormatXML
	FormatSGML
)

var formatNames = []string{"auto", "html", "xml", "sgml"}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat returns format by its case-insensitive name.
func ParseFormat(name string) (Format, error) {
	for i, n := range formatNames {
		if strings.EqualFold(n, name) {
			return Format(i), nil
		}
	}
	return FormatAuto, fmt.Errorf("%s is not a valid format, try [%s]", name, strings.Join(formatNames, ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Detect guesses document format from file name and first bytes of content.
func Detect(name string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	case ".xml", ".fb2", ".svg", ".opf", ".ncx":
		return FormatXML
	case ".sgml", ".sgm":
		return FormatSGML
	}
	head = bytes.TrimLeft(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")), " \t\r\n")
	switch {
	case bytes.HasPrefix(head, []byte("<?xml")):
		return FormatXML
	case len(head) > 9 && bytes.EqualFold(head[:9], []byte("<!doctype")):
		if bytes.Contains(bytes.ToLower(head[:min(len(head), 256)]), []byte("html")) {
			return FormatHTML
		}
	case len(head) > 5 && bytes.EqualFold(head[:5], []byte("<html")):
		return FormatHTML
	}
	return FormatSGML
}

// Load reads file at path and builds its document tree using requested
// format. Path may address an entry of zip container as "book.epub!/entry".
// Charset is an encoding label, empty means detection. Options are passed
// to the SGML parser.
func Load(path string, format Format, charset string, log *zap.Logger, opts ...sgml.Option) (*dom.Node, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("document")

	data, err := archive.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read document: %w", err)
	}
	if format == FormatAuto {
		format = Detect(path, data[:min(len(data), 512)])
	}
	log.Debug("Loading document", zap.String("path", path), zap.Stringer("format", format), zap.String("charset", charset), zap.Int("size", len(data)))

	var doc *dom.Node
	r := bytes.NewReader(data)
	switch format {
	case FormatHTML:
		doc, err = ParseHTML(r, charset)
	case FormatXML:
		doc, err = ParseXML(r)
	case FormatSGML:
		doc, err = ParseSGML(r, charset, log, opts...)
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// TextContent returns concatenated text of all text and CDATA descendants
// of node.
func TextContent(node *dom.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind == dom.AttributeNode {
		return node.Value
	}
	var sb strings.Builder
	pending := []*dom.Node{node}
	for len(pending) > 0 {
		n := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		switch n.Kind {
		case dom.TextNode, dom.CDataNode:
			sb.WriteString(n.Value)
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			pending = append(pending, n.Children[i])
		}
	}
	return sb.String()
}

// readAll is io.ReadAll with error context.
func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("unable to read input: %w", err)
	}
	return string(data), nil
}
