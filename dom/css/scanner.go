// Package css defines CSS token grammar for the generic scanner.
//
// The grammar is stateless. It is tolerant to leftovers of SGML markup so CSS
// extracted from HTML documents (`<!-- ... -->` wrapped style elements)
// scans cleanly: such markers and C style comments are elided together with
// whitespace.
package css

import (
	"strings"

	"tbc/dom/scanner"
)

// Token types produced by the CSS grammar in addition to single character
// tokens.
const (
	Number scanner.TokenType = scanner.NamedBase + 1 + iota
	Percentage
	Dimension
	Length
	EM
	EX
	Time
	Angle
	Frequency
	Ident
	Function
	RGB
	URL
	Hash
	HexColor
	AtKeyword
	AtCharset
	AtFontFace
	AtImport
	AtMedia
	AtPage
	String
	Important
	SelectSpaceList
	SelectHyphenList
	SelectBegin
	SelectEnd
	SelectContains
)

var typeNames = map[scanner.TokenType]string{
	scanner.Garbage:  "GARBAGE",
	Number:           "NUMBER",
	Percentage:       "PERCENTAGE",
	Dimension:        "DIMENSION",
	Length:           "LENGTH",
	EM:               "EM",
	EX:               "EX",
	Time:             "TIME",
	Angle:            "ANGLE",
	Frequency:        "FREQUENCY",
	Ident:            "IDENT",
	Function:         "FUNCTION",
	RGB:              "RGB",
	URL:              "URL",
	Hash:             "HASH",
	HexColor:         "HEX_COLOR",
	AtKeyword:        "AT_KEYWORD",
	AtCharset:        "AT_CHARSET",
	AtFontFace:       "AT_FONT_FACE",
	AtImport:         "AT_IMPORT",
	AtMedia:          "AT_MEDIA",
	AtPage:           "AT_PAGE",
	String:           "STRING",
	Important:        "IMPORTANT",
	SelectSpaceList:  "SELECT_SPACE_LIST",
	SelectHyphenList: "SELECT_HYPHEN_LIST",
	SelectBegin:      "SELECT_BEGIN",
	SelectEnd:        "SELECT_END",
	SelectContains:   "SELECT_CONTAINS",
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

// IsDimension reports whether t is dimension or one of its subtypes.
func IsDimension(t scanner.TokenType) bool {
	return t >= Dimension && t <= Frequency
}

// IsFunction reports whether t is function or one of its subtypes.
func IsFunction(t scanner.TokenType) bool {
	return t >= Function && t <= URL
}

// IsAtKeyword reports whether t is at-keyword or one of its subtypes.
func IsAtKeyword(t scanner.TokenType) bool {
	return t >= AtKeyword && t <= AtPage
}

// Grammar is the CSS token grammar.
var Grammar = &scanner.Grammar{
	Name: "css",
	Classes: []scanner.Class{
		scanner.Range('0', '9', scanner.Digit|scanner.HexDigit|scanner.Ident),
		scanner.Range('A', 'F', scanner.HexDigit),
		scanner.Range('a', 'f', scanner.HexDigit),
		scanner.Range('A', 'Z', scanner.Alpha|scanner.IdentStart|scanner.Ident),
		scanner.Range('a', 'z', scanner.Alpha|scanner.IdentStart|scanner.Ident),
		scanner.Range(0x80, 0xff, scanner.NonASCII|scanner.IdentStart|scanner.Ident),
		scanner.Chars("_", scanner.IdentStart|scanner.Ident),
		scanner.Chars("-", scanner.Ident),
		scanner.Chars(" \t\n\r\f\v", scanner.Whitespace),
		scanner.Chars("\n\r\f", scanner.Newline),
		scanner.Chars(".#@!\"'<-/|^$*~]", scanner.TokenStart),
		scanner.Chars("{}[]();:,.>+~=*|/!<-%#@^$&?", scanner.TokenChar),
	},
	Keywords: []scanner.Keyword{
		{Name: "em", Type: EM, Base: Dimension},
		{Name: "ex", Type: EX, Base: Dimension},
		{Name: "px", Type: Length, Base: Dimension},
		{Name: "cm", Type: Length, Base: Dimension},
		{Name: "mm", Type: Length, Base: Dimension},
		{Name: "in", Type: Length, Base: Dimension},
		{Name: "pt", Type: Length, Base: Dimension},
		{Name: "pc", Type: Length, Base: Dimension},
		{Name: "deg", Type: Angle, Base: Dimension},
		{Name: "rad", Type: Angle, Base: Dimension},
		{Name: "grad", Type: Angle, Base: Dimension},
		{Name: "ms", Type: Time, Base: Dimension},
		{Name: "s", Type: Time, Base: Dimension},
		{Name: "hz", Type: Frequency, Base: Dimension},
		{Name: "khz", Type: Frequency, Base: Dimension},

		{Name: "rgb", Type: RGB, Base: Function},
		{Name: "url", Type: URL, Base: Function},

		{Name: "charset", Type: AtCharset, Base: AtKeyword},
		{Name: "font-face", Type: AtFontFace, Base: AtKeyword},
		{Name: "import", Type: AtImport, Base: AtKeyword},
		{Name: "media", Type: AtMedia, Base: AtKeyword},
		{Name: "page", Type: AtPage, Base: AtKeyword},
	},
	Scan: scanToken,
}

// NewScanner returns scanner positioned at the beginning of input.
func NewScanner(input string) *scanner.Scanner {
	return scanner.New(Grammar, input, 0)
}

func precedence(t scanner.TokenType) int {
	switch t {
	case '}':
		return 1 << 10
	case '{':
		return 1 << 9
	case ';':
		return 1 << 8
	case ')':
		return 1 << 7
	}
	return 0
}

var selectOps = map[byte]scanner.TokenType{
	'~': SelectSpaceList,
	'|': SelectHyphenList,
	'^': SelectBegin,
	'$': SelectEnd,
	'*': SelectContains,
}

// markup lists SGML leftovers elided from the token stream.
var markup = []string{"<!--", "-->", "<![CDATA[", "]]>"}

func scanToken(s *scanner.Scanner, tok *scanner.Token) bool {
	in := s.Input()
	i := s.Pos()
	c := in[i]

	switch {
	case s.Is(i, scanner.Whitespace):
		s.Seek(s.Skip(i, scanner.Whitespace))
		return false

	case s.Is(i, scanner.Digit) || (c == '.' && s.Is(i+1, scanner.Digit)):
		scanNumber(s, tok, i)

	case s.Is(i, scanner.IdentStart) || (c == '-' && s.Is(i+1, scanner.IdentStart)):
		scanIdent(s, tok, i)

	case s.Is(i, scanner.TokenStart) && scanSpecial(s, tok, i):
		if tok.Type == 0 {
			return false
		}

	case s.Is(i, scanner.TokenChar):
		tok.Type = scanner.TokenType(c)
		tok.Text = in[i : i+1]
		s.Seek(i + 1)

	default:
		tok.Type = scanner.Garbage
		tok.Text = in[i : i+1]
		s.Seek(i + 1)
	}
	tok.Precedence = precedence(tok.Type)
	return true
}

func scanNumber(s *scanner.Scanner, tok *scanner.Token, i int) {
	in := s.Input()
	j := s.Skip(i, scanner.Digit)
	if s.At(j) == '.' && s.Is(j+1, scanner.Digit) {
		j = s.Skip(j+1, scanner.Digit)
	}

	switch {
	case s.At(j) == '%':
		tok.Type = Percentage
		j++
	case s.Is(j, scanner.IdentStart):
		end := s.Skip(j, scanner.Ident)
		tok.Type = s.Grammar().MapKeyword(in[j:end], Dimension)
		j = end
	default:
		tok.Type = Number
	}
	tok.Text = in[i:j]
	s.Seek(j)
}

func scanIdent(s *scanner.Scanner, tok *scanner.Token, i int) {
	in := s.Input()
	j := s.Skip(i, scanner.Ident)
	name := in[i:j]

	if s.At(j) != '(' {
		tok.Type = Ident
		tok.Text = name
		s.Seek(j)
		return
	}

	tok.Type = s.Grammar().MapKeyword(name, Function)
	tok.Text = name
	if tok.Type == URL {
		if path, end, ok := scanURL(s, j+1); ok {
			tok.Text = path
			s.Seek(end)
			return
		}
		// no closing parenthesis, leave it to the caller
		tok.Type = Function
	}
	s.Seek(j + 1)
}

// scanURL extracts path from url(...) arguments starting at i. It returns
// the path with surrounding whitespace and one layer of quoting removed and
// the offset following the closing parenthesis.
func scanURL(s *scanner.Scanner, i int) (string, int, bool) {
	in := s.Input()
	start := s.Skip(i, scanner.Whitespace)
	from := start
	if q := s.At(start); q == '"' || q == '\'' {
		if end := strings.IndexByte(in[start+1:], q); end >= 0 {
			from = start + 1 + end + 1
		}
	}
	end := strings.IndexByte(in[from:], ')')
	if end < 0 {
		return "", 0, false
	}
	end += from

	path := strings.Trim(in[start:end], " \t\n\r\f\v")
	if len(path) >= 2 && (path[0] == '"' || path[0] == '\'') && path[len(path)-1] == path[0] {
		path = path[1 : len(path)-1]
	}
	return path, end + 1, true
}

// scanSpecial handles constructs introduced by token start characters. It
// returns false when character has to be treated as plain char token. Elided
// constructs leave tok.Type zero.
func scanSpecial(s *scanner.Scanner, tok *scanner.Token, i int) bool {
	in := s.Input()
	c := in[i]

	for _, m := range markup {
		if strings.HasPrefix(in[i:], m) {
			s.Seek(i + len(m))
			return true
		}
	}

	if typ, ok := selectOps[c]; ok && s.At(i+1) == '=' {
		tok.Type = typ
		tok.Text = in[i : i+2]
		s.Seek(i + 2)
		return true
	}

	switch c {
	case '/':
		if s.At(i+1) != '*' {
			return false
		}
		end := strings.Index(in[i+2:], "*/")
		if end < 0 {
			s.Seek(len(in))
		} else {
			s.Seek(i + 2 + end + 2)
		}
		return true

	case '"', '\'':
		scanString(s, tok, i)
		return true

	case '#':
		j := s.Skip(i+1, scanner.Ident)
		if j == i+1 {
			return false
		}
		hex := s.Skip(i+1, scanner.HexDigit) - (i + 1)
		if (hex == 3 || hex == 6) && i+1+hex == j {
			tok.Type = HexColor
		} else {
			tok.Type = Hash
		}
		tok.Text = in[i:j]
		s.Seek(j)
		return true

	case '@':
		if !s.Is(i+1, scanner.IdentStart) && !(s.At(i+1) == '-' && s.Is(i+2, scanner.IdentStart)) {
			return false
		}
		j := s.Skip(i+1, scanner.Ident)
		tok.Type = s.Grammar().MapKeyword(in[i+1:j], AtKeyword)
		tok.Text = in[i:j]
		s.Seek(j)
		return true

	case '!':
		j := s.Skip(i+1, scanner.Whitespace)
		if !s.HasPrefixFold(j, "important") || s.Is(j+len("important"), scanner.Ident) {
			return false
		}
		j += len("important")
		tok.Type = Important
		tok.Text = in[i:j]
		s.Seek(j)
		return true
	}
	return false
}

func scanString(s *scanner.Scanner, tok *scanner.Token, i int) {
	in := s.Input()
	quote := in[i]
	j := i + 1
	for j < len(in) {
		switch c := in[j]; {
		case c == quote:
			tok.Type = String
			tok.Text = in[i+1 : j]
			s.Seek(j + 1)
			return
		case c == '\\' && j+1 < len(in):
			j += 2
		case s.Is(j, scanner.Newline):
			tok.Type = scanner.Garbage
			tok.Text = in[i:j]
			s.Seek(j)
			return
		default:
			j++
		}
	}
	tok.Type = scanner.Garbage
	tok.Text = in[i:]
	s.Seek(len(in))
}
