// Package scanner implements generic table driven tokenizer shared by the
// CSS and SGML grammars.
//
// Scanner produces tokens in batches into a fixed ring owned by the scanner,
// tokens are never allocated individually and their text is a substring of
// the input. Grammar specific knowledge (character classes, keywords and the
// scan step itself) is supplied by Grammar.
package scanner

import (
	"errors"
	"fmt"
	"strings"
)

// TokenType identifies token kind. Values below NamedBase are single
// character tokens, the value being the character itself.
type TokenType int

const (
	// NamedBase is the first value available for named token types.
	NamedBase TokenType = 256
	// Garbage is produced for input the grammar could not make sense of.
	Garbage TokenType = NamedBase
)

// BatchSize is the number of tokens scanned at once.
const BatchSize = 32

// ErrAborted is reported when grammar gave up on malformed input.
var ErrAborted = errors.New("scan aborted")

// Error describes position and reason of aborted scan.
type Error struct {
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("scan aborted at offset %d: %s", e.Offset, e.Msg)
}

func (e *Error) Unwrap() error {
	return ErrAborted
}

// Token is a typed span of the input.
type Token struct {
	Type TokenType
	// Text is token value, it may be narrower than the source span (string
	// delimiters, entity markers are stripped by grammars).
	Text string
	// Offset and End delimit the source span the token was scanned from.
	Offset int
	End    int
	// Precedence is used when skipping tokens during error recovery.
	Precedence int
}

// IsChar reports whether token is single character token c.
func (t *Token) IsChar(c byte) bool {
	return t != nil && t.Type == TokenType(c)
}

// Scanner tokenizes input according to grammar. Pointers returned by
// Current, Next and Peek stay valid until the following Next or Peek call.
type Scanner struct {
	// State is free for stateful grammars to use.
	State int

	grammar *Grammar
	table   *Table
	input   string
	pos     int

	tokens  [BatchSize]Token
	current int
	count   int
	err     error
}

// New returns scanner positioned at the beginning of input. Grammar tables
// are built on first use.
func New(g *Grammar, input string, state int) *Scanner {
	s := &Scanner{
		State:   state,
		grammar: g,
		table:   g.Table(),
		input:   input,
	}
	s.scan()
	return s
}

// Current returns current token or nil at the end of input.
func (s *Scanner) Current() *Token {
	if s.current < s.count {
		return &s.tokens[s.current]
	}
	return nil
}

// Next advances to the next token and returns it, nil at the end of input.
func (s *Scanner) Next() *Token {
	if s.current >= s.count {
		return nil
	}
	s.current++
	if s.current >= s.count {
		s.current, s.count = 0, 0
		s.scan()
	}
	return s.Current()
}

// Peek returns token following the current one without advancing.
func (s *Scanner) Peek() *Token {
	if s.current >= s.count {
		return nil
	}
	if s.current+1 >= s.count {
		s.tokens[0] = s.tokens[s.current]
		s.current, s.count = 0, 1
		s.scan()
	}
	if s.current+1 < s.count {
		return &s.tokens[s.current+1]
	}
	return nil
}

// SkipTo advances past tokens with precedence not exceeding ceiling until
// token of type target is found. When found the target is consumed as well
// and true is returned, otherwise scanner stops at the token with higher
// precedence (or at the end of input).
func (s *Scanner) SkipTo(target TokenType, ceiling int) bool {
	for tok := s.Current(); tok != nil; tok = s.Next() {
		if tok.Type == target {
			s.Next()
			return true
		}
		if tok.Precedence > ceiling {
			return false
		}
	}
	return false
}

// scan fills the token ring starting at s.count.
func (s *Scanner) scan() {
	for s.count < BatchSize && s.pos < len(s.input) && s.err == nil {
		tok := &s.tokens[s.count]
		start, state := s.pos, s.State
		*tok = Token{Offset: start}

		keep := s.grammar.Scan(s, tok)
		if s.err != nil {
			break
		}
		if s.pos == start && s.State == state {
			// grammar made no progress, never loop on bad input
			s.pos = start + 1
			*tok = Token{Type: Garbage, Text: s.input[start:s.pos], Offset: start}
			keep = true
		}
		tok.End = s.pos
		if keep {
			s.count++
		}
	}
}

// Reset discards buffered tokens (and abort reason found while scanning
// them) and restarts scanning at pos in state. Callers use it to take over
// raw input (script content and the like) and hand it back to the grammar
// afterwards.
func (s *Scanner) Reset(pos, state int) {
	s.Seek(pos)
	s.State = state
	s.current, s.count = 0, 0
	s.err = nil
	s.scan()
}

// Abort stops scanning at current position, tokens already scanned are
// still delivered.
func (s *Scanner) Abort(msg string) {
	if s.err == nil {
		s.err = &Error{Offset: s.pos, Msg: msg}
	}
}

// Err returns reason scanning was aborted, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Grammar returns grammar scanner was created for.
func (s *Scanner) Grammar() *Grammar {
	return s.grammar
}

// Input returns complete input.
func (s *Scanner) Input() string {
	return s.input
}

// Pos returns offset of the next byte to be scanned.
func (s *Scanner) Pos() int {
	return s.pos
}

// Seek moves scanning position, it is clamped to input bounds.
func (s *Scanner) Seek(pos int) {
	s.pos = max(0, min(pos, len(s.input)))
}

// At returns byte at offset i or 0 when i is out of bounds.
func (s *Scanner) At(i int) byte {
	if i < 0 || i >= len(s.input) {
		return 0
	}
	return s.input[i]
}

// Is reports whether byte at offset i belongs to any of groups.
func (s *Scanner) Is(i int, groups Group) bool {
	if i < 0 || i >= len(s.input) {
		return false
	}
	return s.table[s.input[i]]&groups != 0
}

// Skip returns offset of the first byte at or after i not belonging to
// groups.
func (s *Scanner) Skip(i int, groups Group) int {
	for i < len(s.input) && s.table[s.input[i]]&groups != 0 {
		i++
	}
	return i
}

// HasPrefixFold reports whether input at offset i starts with prefix,
// ignoring ASCII case.
func (s *Scanner) HasPrefixFold(i int, prefix string) bool {
	if i < 0 || i+len(prefix) > len(s.input) {
		return false
	}
	return strings.EqualFold(s.input[i:i+len(prefix)], prefix)
}

// Line returns 1-based line number of offset.
func (s *Scanner) Line(offset int) int {
	offset = max(0, min(offset, len(s.input)))
	return strings.Count(s.input[:offset], "\n") + 1
}
