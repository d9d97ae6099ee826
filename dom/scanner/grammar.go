package scanner

import (
	"strings"
	"sync"
)

// ScanFunc scans a single token starting at the scanner position. It must
// fill in tok type, text and precedence and advance the position. Returning
// false elides the token (whitespace, comments), its slot is reused.
type ScanFunc func(s *Scanner, tok *Token) bool

// Keyword specializes generic token of type Base whose text equals Name
// (case-insensitively) into Type.
type Keyword struct {
	Name string
	Type TokenType
	Base TokenType
}

type keywordKey struct {
	base TokenType
	name string
}

// Grammar describes a token language: character classes, keyword mappings
// and scan step. Grammar tables are built lazily on first use and are
// read-only afterwards, so a Grammar can be shared by any number of
// scanners.
type Grammar struct {
	Name     string
	Classes  []Class
	Keywords []Keyword
	Scan     ScanFunc

	once     sync.Once
	table    Table
	keywords map[keywordKey]TokenType
}

func (g *Grammar) init() {
	g.once.Do(func() {
		g.table = BuildTable(g.Classes)
		g.keywords = make(map[keywordKey]TokenType, len(g.Keywords))
		for _, k := range g.Keywords {
			g.keywords[keywordKey{base: k.Base, name: strings.ToLower(k.Name)}] = k.Type
		}
	})
}

// Table returns grammar classification table building it if necessary.
func (g *Grammar) Table() *Table {
	g.init()
	return &g.table
}

// MapKeyword returns subtype registered for text under base type or base
// itself when there is no such keyword.
func (g *Grammar) MapKeyword(text string, base TokenType) TokenType {
	g.init()
	if typ, ok := g.keywords[keywordKey{base: base, name: lower(text)}]; ok {
		return typ
	}
	return base
}

// lower avoids allocation for already lowercase ASCII strings.
func lower(s string) string {
	for i := 0; i < len(s); i++ {
		if 'A' <= s[i] && s[i] <= 'Z' {
			return strings.ToLower(s)
		}
	}
	return s
}
