package document

import (
	"bufio"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"tbc/dom"
	"tbc/dom/sgml"
)

// Decode returns reader producing UTF-8 from r. Label names input encoding
// using WHATWG names, when empty encoding is sniffed from the first bytes.
func Decode(r io.Reader, label string) (io.Reader, error) {
	if label == "" {
		br := bufio.NewReaderSize(r, 1024)
		head, err := br.Peek(1024)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return nil, fmt.Errorf("unable to read input: %w", err)
		}
		enc, name, _ := charset.DetermineEncoding(head, "")
		if name == "utf-8" {
			return br, nil
		}
		return transform.NewReader(br, enc.NewDecoder()), nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", label, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// ParseSGML builds document tree with native SGML parser.
func ParseSGML(r io.Reader, label string, log *zap.Logger, opts ...sgml.Option) (*dom.Node, error) {
	in, err := Decode(r, label)
	if err != nil {
		return nil, err
	}
	text, err := readAll(in)
	if err != nil {
		return nil, err
	}
	return sgml.NewParser(log, opts...).Parse(text)
}
