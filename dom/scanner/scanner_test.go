package scanner_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"tbc/dom/scanner"
)

const (
	word scanner.TokenType = scanner.NamedBase + 1 + iota
	number
	keywordIf
)

// toy grammar: words, numbers, punctuation; '?' is never consumed and '@'
// aborts scanning
var toy = &scanner.Grammar{
	Name: "toy",
	Classes: []scanner.Class{
		scanner.Range('0', '9', scanner.Digit|scanner.Ident),
		scanner.Range('a', 'z', scanner.IdentStart|scanner.Ident),
		scanner.Range('A', 'Z', scanner.IdentStart|scanner.Ident),
		scanner.Chars(" \t\n", scanner.Whitespace),
		scanner.Chars(";}", scanner.TokenChar),
	},
	Keywords: []scanner.Keyword{
		{Name: "if", Type: keywordIf, Base: word},
	},
	Scan: func(s *scanner.Scanner, tok *scanner.Token) bool {
		in, i := s.Input(), s.Pos()
		switch c := in[i]; {
		case s.Is(i, scanner.Whitespace):
			s.Seek(s.Skip(i, scanner.Whitespace))
			return false
		case s.Is(i, scanner.Digit):
			j := s.Skip(i, scanner.Digit)
			tok.Type, tok.Text = number, in[i:j]
			s.Seek(j)
		case s.Is(i, scanner.IdentStart):
			j := s.Skip(i, scanner.Ident)
			tok.Text = in[i:j]
			tok.Type = s.Grammar().MapKeyword(tok.Text, word)
			s.Seek(j)
		case c == '@':
			s.Abort("at sign")
			return false
		case c == '?':
			// no progress on purpose
		case s.Is(i, scanner.TokenChar):
			tok.Type, tok.Text = scanner.TokenType(c), in[i:i+1]
			if c == ';' {
				tok.Precedence = 10
			} else {
				tok.Precedence = 20
			}
			s.Seek(i + 1)
		default:
			tok.Type, tok.Text = scanner.Garbage, in[i:i+1]
			s.Seek(i + 1)
		}
		return true
	},
}

func collect(s *scanner.Scanner) []scanner.Token {
	var out []scanner.Token
	for tok := s.Current(); tok != nil; tok = s.Next() {
		out = append(out, *tok)
	}
	return out
}

func TestBuildTable(t *testing.T) {
	table := scanner.BuildTable([]scanner.Class{
		scanner.Range('0', '9', scanner.Digit|scanner.HexDigit),
		scanner.Chars("abcdef", scanner.HexDigit),
	})
	for c := byte('0'); c <= '9'; c++ {
		if !table.Is(c, scanner.Digit) || !table.Is(c, scanner.HexDigit) {
			t.Errorf("expected %q to be digit and hex digit", c)
		}
	}
	if table.Is('a', scanner.Digit) || !table.Is('a', scanner.HexDigit) {
		t.Errorf("expected 'a' to be hex digit only, got %b", table['a'])
	}
	if table['g'] != 0 {
		t.Errorf("expected 'g' to have no groups, got %b", table['g'])
	}
}

func TestScanner_Tokens(t *testing.T) {
	s := scanner.New(toy, "if x1 42; }", 0)
	got := collect(s)

	want := []struct {
		typ  scanner.TokenType
		text string
	}{
		{keywordIf, "if"},
		{word, "x1"},
		{number, "42"},
		{';', ";"},
		{'}', "}"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Type != w.typ || got[i].Text != w.text {
			t.Errorf("token %d: expected %d %q, got %d %q", i, w.typ, w.text, got[i].Type, got[i].Text)
		}
	}
	if got[1].Offset != 3 || got[1].End != 5 {
		t.Errorf("expected x1 span 3..5, got %d..%d", got[1].Offset, got[1].End)
	}
	if s.Next() != nil || s.Current() != nil {
		t.Error("expected exhausted scanner to stay exhausted")
	}
}

func TestScanner_Batches(t *testing.T) {
	const n = 3*scanner.BatchSize + 5
	words := make([]string, n)
	for i := range words {
		words[i] = "w"
	}
	s := scanner.New(toy, strings.Join(words, " "), 0)

	count := 0
	for tok := s.Current(); tok != nil; tok = s.Next() {
		if tok.Type != word {
			t.Fatalf("token %d: unexpected type %d", count, tok.Type)
		}
		if tok.Offset != 2*count {
			t.Fatalf("token %d: expected offset %d, got %d", count, 2*count, tok.Offset)
		}
		count++
	}
	if count != n {
		t.Errorf("expected %d tokens, got %d", n, count)
	}
}

func TestScanner_PeekAcrossBatch(t *testing.T) {
	words := make([]string, scanner.BatchSize+1)
	for i := range words {
		words[i] = "w"
	}
	words[scanner.BatchSize] = "7"
	s := scanner.New(toy, strings.Join(words, " "), 0)

	for range scanner.BatchSize - 1 {
		s.Next()
	}
	cur := s.Current()
	if cur == nil || cur.Type != word {
		t.Fatalf("expected last word of the first batch, got %+v", cur)
	}
	peek := s.Peek()
	if peek == nil || peek.Type != number || peek.Text != "7" {
		t.Fatalf("expected peek to return number from the next batch, got %+v", peek)
	}
	if cur := s.Current(); cur.Type != word || cur.Offset != 2*(scanner.BatchSize-1) {
		t.Errorf("peek must not move current token, got %+v", cur)
	}
	if next := s.Next(); next == nil || next.Text != "7" {
		t.Errorf("expected next to return peeked token, got %+v", next)
	}
	if s.Peek() != nil {
		t.Error("expected nil peek at the last token")
	}
}

func TestScanner_SkipTo(t *testing.T) {
	s := scanner.New(toy, "a b ; c } d", 0)
	if !s.SkipTo(';', 0) {
		t.Fatal("expected ';' to be found")
	}
	if tok := s.Current(); tok == nil || tok.Text != "c" {
		t.Fatalf("expected scanner after ';', got %+v", tok)
	}
	if s.SkipTo(';', 10) {
		t.Fatal("expected '}' to stop skipping")
	}
	if tok := s.Current(); tok == nil || !tok.IsChar('}') {
		t.Fatalf("expected scanner at '}', got %+v", tok)
	}
	if !s.SkipTo(word, 20) {
		t.Fatal("expected word after '}'")
	}
	if s.Current() != nil {
		t.Error("expected end of input")
	}
}

func TestScanner_NoProgressBecomesGarbage(t *testing.T) {
	got := collect(scanner.New(toy, "a??b", 0))
	if len(got) != 4 {
		t.Fatalf("expected 4 tokens, got %+v", got)
	}
	for _, i := range []int{1, 2} {
		if got[i].Type != scanner.Garbage || got[i].Text != "?" {
			t.Errorf("token %d: expected garbage '?', got %+v", i, got[i])
		}
	}
}

func TestScanner_Abort(t *testing.T) {
	s := scanner.New(toy, "a b @ c", 0)
	got := collect(s)
	if len(got) != 2 {
		t.Fatalf("expected tokens before abort to be delivered, got %+v", got)
	}
	err := s.Err()
	if !errors.Is(err, scanner.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	var se *scanner.Error
	if !errors.As(err, &se) || se.Offset != 4 {
		t.Errorf("expected abort offset 4, got %v", err)
	}
}

func TestScanner_Reset(t *testing.T) {
	s := scanner.New(toy, "a b c d", 0)
	s.Reset(4, 0)
	got := collect(s)
	if len(got) != 2 || got[0].Text != "c" || got[1].Text != "d" {
		t.Errorf("expected c d after reset, got %+v", got)
	}
}

func TestGrammar_MapKeyword(t *testing.T) {
	tests := []struct {
		text string
		base scanner.TokenType
		want scanner.TokenType
	}{
		{"if", word, keywordIf},
		{"IF", word, keywordIf},
		{"If", word, keywordIf},
		{"iff", word, word},
		{"if", number, number},
	}
	for _, tt := range tests {
		if got := toy.MapKeyword(tt.text, tt.base); got != tt.want {
			t.Errorf("MapKeyword(%q, %d) = %d, want %d", tt.text, tt.base, got, tt.want)
		}
	}
}

func TestGrammar_TableConcurrent(t *testing.T) {
	g := &scanner.Grammar{
		Name:    "concurrent",
		Classes: []scanner.Class{scanner.Range('a', 'z', scanner.Alpha)},
	}
	var wg sync.WaitGroup
	tables := make([]*scanner.Table, 16)
	for i := range tables {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tables[i] = g.Table()
		}()
	}
	wg.Wait()
	for i, tab := range tables {
		if tab != tables[0] || !tab.Is('q', scanner.Alpha) {
			t.Errorf("table %d differs or is not built", i)
		}
	}
}

func TestScanner_Line(t *testing.T) {
	s := scanner.New(toy, "a\nb\n\nc", 0)
	for _, tt := range []struct{ offset, line int }{{0, 1}, {2, 2}, {5, 4}, {100, 4}} {
		if got := s.Line(tt.offset); got != tt.line {
			t.Errorf("Line(%d) = %d, want %d", tt.offset, got, tt.line)
		}
	}
}
