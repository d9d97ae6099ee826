// Package sgml implements SGML/HTML token grammar, a tolerant tree parser
// built on top of it and a serializer.
package sgml

import (
	"strings"

	"tbc/dom/scanner"
)

// Scanner states.
const (
	StateText = iota
	StateElement
	StateProcInst
)

// Token types produced by the SGML grammar. '=' is produced as single
// character token.
const (
	Element scanner.TokenType = scanner.NamedBase + 1 + iota
	ElementBegin
	ElementEnd
	Attribute
	String
	TagEnd
	TagEmptyEnd
	Notation
	NotationComment
	NotationAttlist
	NotationDoctype
	NotationElement
	NotationEntity
	CDataSection
	Process
	ProcessXML
	ProcessData
	Entity
	Space
	Text
)

var typeNames = map[scanner.TokenType]string{
	scanner.Garbage: "GARBAGE",
	Element:         "ELEMENT",
	ElementBegin:    "ELEMENT_BEGIN",
	ElementEnd:      "ELEMENT_END",
	Attribute:       "ATTRIBUTE",
	String:          "STRING",
	TagEnd:          "TAG_END",
	TagEmptyEnd:     "TAG_EMPTY_END",
	Notation:        "NOTATION",
	NotationComment: "NOTATION_COMMENT",
	NotationAttlist: "NOTATION_ATTLIST",
	NotationDoctype: "NOTATION_DOCTYPE",
	NotationElement: "NOTATION_ELEMENT",
	NotationEntity:  "NOTATION_ENTITY",
	CDataSection:    "CDATA_SECTION",
	Process:         "PROCESS",
	ProcessXML:      "PROCESS_XML",
	ProcessData:     "PROCESS_DATA",
	Entity:          "ENTITY",
	Space:           "SPACE",
	Text:            "TEXT",
}

// TypeName returns printable name of token type.
func TypeName(t scanner.TokenType) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	if t >= 0 && t < scanner.NamedBase {
		return "'" + string(rune(t)) + "'"
	}
	return "UNKNOWN"
}

// IsNotation reports whether t is notation or one of its subtypes (comments
// and CDATA sections excluded).
func IsNotation(t scanner.TokenType) bool {
	return t == Notation || (t >= NotationAttlist && t <= NotationEntity)
}

// Grammar is the SGML token grammar.
var Grammar = &scanner.Grammar{
	Name: "sgml",
	Classes: []scanner.Class{
		scanner.Range('0', '9', scanner.Digit|scanner.HexDigit|scanner.Ident),
		scanner.Range('A', 'F', scanner.HexDigit),
		scanner.Range('a', 'f', scanner.HexDigit),
		scanner.Range('A', 'Z', scanner.Alpha|scanner.IdentStart|scanner.Ident),
		scanner.Range('a', 'z', scanner.Alpha|scanner.IdentStart|scanner.Ident),
		scanner.Range(0x80, 0xff, scanner.NonASCII|scanner.IdentStart|scanner.Ident),
		scanner.Chars("_:", scanner.IdentStart|scanner.Ident),
		scanner.Chars("-.", scanner.Ident),
		scanner.Chars(" \t\n\r\f\v", scanner.Whitespace),
		scanner.Chars("\n\r\f", scanner.Newline),
		scanner.Chars("<&", scanner.TokenStart),
		scanner.Chars(">=\"'", scanner.TokenChar),
	},
	Keywords: []scanner.Keyword{
		{Name: "DOCTYPE", Type: NotationDoctype, Base: Notation},
		{Name: "ATTLIST", Type: NotationAttlist, Base: Notation},
		{Name: "ELEMENT", Type: NotationElement, Base: Notation},
		{Name: "ENTITY", Type: NotationEntity, Base: Notation},
		{Name: "xml", Type: ProcessXML, Base: Process},
	},
	Scan: scanToken,
}

// NewScanner returns scanner positioned at the beginning of input in text
// state.
func NewScanner(input string) *scanner.Scanner {
	return scanner.New(Grammar, input, StateText)
}

func precedence(t scanner.TokenType) int {
	switch t {
	case Element, ElementBegin, ElementEnd, NotationComment, CDataSection, Process, ProcessXML:
		return 1 << 11
	case '=':
		return 1 << 10
	case TagEnd, TagEmptyEnd:
		return 1 << 9
	}
	if IsNotation(t) {
		return 1 << 11
	}
	return 0
}

func scanToken(s *scanner.Scanner, tok *scanner.Token) bool {
	keep := true
	switch s.State {
	case StateProcInst:
		scanProcData(s, tok)
	case StateElement:
		keep = scanElementToken(s, tok)
	default:
		keep = scanTextToken(s, tok)
	}
	tok.Precedence = precedence(tok.Type)
	return keep
}

func scanTextToken(s *scanner.Scanner, tok *scanner.Token) bool {
	in := s.Input()
	i := s.Pos()

	switch in[i] {
	case '<':
		if scanMarkup(s, tok, i) {
			return true
		}
		if s.Err() != nil {
			return false
		}
	case '&':
		j := i + 1
		if s.At(j) == '#' {
			j++
		}
		if k := s.Skip(j, scanner.Ident); k > j && s.At(k) == ';' {
			tok.Type = Entity
			tok.Text = in[i+1 : k]
			s.Seek(k + 1)
			return true
		}
	default:
		if s.Is(i, scanner.Whitespace) {
			j := s.Skip(i, scanner.Whitespace)
			if j == len(in) || in[j] == '<' {
				tok.Type = Space
				tok.Text = in[i:j]
				s.Seek(j)
				return true
			}
		}
	}

	// plain text runs up to the next markup character, the first character
	// is always taken so lone '<' and '&' become text
	j := len(in)
	if k := strings.IndexAny(in[i+1:], "<&"); k >= 0 {
		j = i + 1 + k
	}
	tok.Type = Text
	tok.Text = in[i:j]
	s.Seek(j)
	return true
}

// scanMarkup handles '<' in text state. It returns false when '<' does not
// start any markup.
func scanMarkup(s *scanner.Scanner, tok *scanner.Token, i int) bool {
	in := s.Input()
	j := i + 1

	switch c := s.At(j); {
	case s.Is(j, scanner.IdentStart):
		k := s.Skip(j, scanner.Ident)
		tok.Text = in[j:k]
		if m := s.Skip(k, scanner.Whitespace); s.At(m) == '>' {
			tok.Type = Element
			s.Seek(m + 1)
			return true
		}
		tok.Type = ElementBegin
		s.State = StateElement
		s.Seek(k)
		return true

	case c == '/':
		k := s.Skip(j+1, scanner.Whitespace)
		switch {
		case s.Is(k, scanner.IdentStart):
			end := s.Skip(k, scanner.Ident)
			tok.Type = ElementEnd
			tok.Text = in[k:end]
			if gt := strings.IndexByte(in[end:], '>'); gt >= 0 {
				s.Seek(end + gt + 1)
			} else {
				s.Seek(len(in))
			}
			return true
		case s.At(k) == '>':
			tok.Type = ElementEnd
			tok.Text = ""
			s.Seek(k + 1)
			return true
		}
		s.Seek(j)
		s.Abort("malformed end tag")
		return false

	case c == '!':
		switch {
		case strings.HasPrefix(in[j:], "!--"):
			tok.Type = NotationComment
			tok.Text = scanUntil(s, i+4, "-->")
			return true
		case strings.HasPrefix(in[j:], "![CDATA["):
			tok.Type = CDataSection
			tok.Text = scanUntil(s, i+9, "]]>")
			return true
		case s.Is(j+1, scanner.IdentStart):
			k := s.Skip(j+1, scanner.Ident)
			tok.Text = in[j+1 : k]
			tok.Type = s.Grammar().MapKeyword(tok.Text, Notation)
			s.State = StateElement
			s.Seek(k)
			return true
		}
		// unknown declaration, treat everything up to '>' as comment
		tok.Type = NotationComment
		tok.Text = scanUntil(s, j+1, ">")
		return true

	case c == '?':
		k := s.Skip(j+1, scanner.Ident)
		tok.Text = in[j+1 : k]
		tok.Type = s.Grammar().MapKeyword(tok.Text, Process)
		s.State = StateProcInst
		s.Seek(k)
		return true
	}
	return false
}

// scanUntil returns text from i up to terminator and moves past it.
// Unterminated constructs extend to the end of input.
func scanUntil(s *scanner.Scanner, i int, terminator string) string {
	in := s.Input()
	i = min(i, len(in))
	end := strings.Index(in[i:], terminator)
	if end < 0 {
		s.Seek(len(in))
		return in[i:]
	}
	s.Seek(i + end + len(terminator))
	return in[i : i+end]
}

// scanProcData consumes processing instruction data up to "?>" regardless
// of any markup inside.
func scanProcData(s *scanner.Scanner, tok *scanner.Token) {
	i := s.Skip(s.Pos(), scanner.Whitespace)
	tok.Type = ProcessData
	tok.Text = scanUntil(s, i, "?>")
	s.State = StateText
}

func scanElementToken(s *scanner.Scanner, tok *scanner.Token) bool {
	in := s.Input()
	i := s.Pos()

	switch c := in[i]; {
	case s.Is(i, scanner.Whitespace):
		s.Seek(s.Skip(i, scanner.Whitespace))
		return false

	case c == '>':
		tok.Type = TagEnd
		tok.Text = in[i : i+1]
		s.State = StateText
		s.Seek(i + 1)

	case c == '/' && s.At(i+1) == '>':
		tok.Type = TagEmptyEnd
		tok.Text = in[i : i+2]
		s.State = StateText
		s.Seek(i + 2)

	case c == '<':
		// unterminated tag, insert virtual tag end without consuming input
		tok.Type = TagEnd
		tok.Text = ""
		s.State = StateText

	case c == '=':
		tok.Type = '='
		tok.Text = in[i : i+1]
		s.Seek(i + 1)

	case c == '"' || c == '\'':
		tok.Type = String
		// value never runs past the end of the tag, markup before the
		// closing quote leaves it unterminated
		j := i + 1
		for j < len(in) && in[j] != c && in[j] != '>' && in[j] != '<' {
			j++
		}
		tok.Text = in[i+1 : j]
		if j < len(in) && in[j] == c {
			j++
		}
		s.Seek(j)

	default:
		j := i
		for j < len(in) && !s.Is(j, scanner.Whitespace) {
			if c := in[j]; c == '>' || c == '=' || c == '<' || c == '"' || c == '\'' || (c == '/' && s.At(j+1) == '>') {
				break
			}
			j++
		}
		tok.Type = Attribute
		tok.Text = in[i:j]
		s.Seek(j)
	}
	return true
}
