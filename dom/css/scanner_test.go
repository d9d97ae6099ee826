package css_test

import (
	"testing"

	"tbc/dom/css"
	"tbc/dom/scanner"
)

type tokenCase struct {
	typ  scanner.TokenType
	text string
}

func scanAll(input string) []scanner.Token {
	var out []scanner.Token
	s := css.NewScanner(input)
	for tok := s.Current(); tok != nil; tok = s.Next() {
		out = append(out, *tok)
	}
	return out
}

func checkTokens(t *testing.T, input string, want []tokenCase) {
	t.Helper()
	got := scanAll(input)
	if len(got) != len(want) {
		names := make([]string, len(got))
		for i, tok := range got {
			names[i] = css.TypeName(tok.Type) + ":" + tok.Text
		}
		t.Fatalf("%q: expected %d tokens, got %d %v", input, len(want), len(got), names)
	}
	for i, w := range want {
		if got[i].Type != w.typ || got[i].Text != w.text {
			t.Errorf("%q token %d: expected %s %q, got %s %q", input, i,
				css.TypeName(w.typ), w.text, css.TypeName(got[i].Type), got[i].Text)
		}
	}
}

func TestGrammar_Classification(t *testing.T) {
	table := css.Grammar.Table()
	for c := byte('0'); c <= '9'; c++ {
		if !table.Is(c, scanner.Digit) || !table.Is(c, scanner.HexDigit) || !table.Is(c, scanner.Ident) {
			t.Errorf("expected %q to be digit, hex digit and ident", c)
		}
	}
	for _, r := range []string{"AF", "af"} {
		for c := r[0]; c <= r[1]; c++ {
			if !table.Is(c, scanner.HexDigit) {
				t.Errorf("expected %q to be hex digit", c)
			}
		}
	}
	if table.Is('g', scanner.HexDigit) {
		t.Error("'g' must not be hex digit")
	}
}

func TestScanner_Hash(t *testing.T) {
	tests := []struct {
		input string
		want  tokenCase
	}{
		{"#FF0000", tokenCase{css.HexColor, "#FF0000"}},
		{"#abc", tokenCase{css.HexColor, "#abc"}},
		{"#FF0000Q", tokenCase{css.Hash, "#FF0000Q"}},
		{"#header", tokenCase{css.Hash, "#header"}},
		{"#abcd", tokenCase{css.Hash, "#abcd"}},
	}
	for _, tt := range tests {
		checkTokens(t, tt.input, []tokenCase{tt.want})
	}
	if got := scanAll("#FF0000"); len(got[0].Text) != 7 {
		t.Errorf("expected hex color length 7, got %d", len(got[0].Text))
	}
}

func TestScanner_URL(t *testing.T) {
	checkTokens(t, `url(  "foo.png"  )`, []tokenCase{{css.URL, "foo.png"}})
	checkTokens(t, `url(bar.png)`, []tokenCase{{css.URL, "bar.png"}})
	checkTokens(t, `url( 'a b.png' ) x`, []tokenCase{{css.URL, "a b.png"}, {css.Ident, "x"}})
	// unterminated url falls back to function
	checkTokens(t, `url(foo`, []tokenCase{{css.Function, "url"}, {css.Ident, "foo"}})
}

func TestScanner_Numbers(t *testing.T) {
	checkTokens(t, "12 1.5 .5 50% 10px 2em 3ex 90deg 200ms 1khz 4q", []tokenCase{
		{css.Number, "12"},
		{css.Number, "1.5"},
		{css.Number, ".5"},
		{css.Percentage, "50%"},
		{css.Length, "10px"},
		{css.EM, "2em"},
		{css.EX, "3ex"},
		{css.Angle, "90deg"},
		{css.Time, "200ms"},
		{css.Frequency, "1khz"},
		{css.Dimension, "4q"},
	})
	// fraction without integer part is still a number, lone dot is not
	checkTokens(t, ".5% .%", []tokenCase{
		{css.Percentage, ".5%"},
		{'.', "."},
		{'%', "%"},
	})
}

func TestScanner_Rule(t *testing.T) {
	input := `@media print { p.note > a[href^="http"] { color: rgb(1,2,3) !important; } }`
	checkTokens(t, input, []tokenCase{
		{css.AtMedia, "@media"},
		{css.Ident, "print"},
		{'{', "{"},
		{css.Ident, "p"},
		{'.', "."},
		{css.Ident, "note"},
		{'>', ">"},
		{css.Ident, "a"},
		{'[', "["},
		{css.Ident, "href"},
		{css.SelectBegin, "^="},
		{css.String, "http"},
		{']', "]"},
		{'{', "{"},
		{css.Ident, "color"},
		{':', ":"},
		{css.RGB, "rgb"},
		{css.Number, "1"},
		{',', ","},
		{css.Number, "2"},
		{',', ","},
		{css.Number, "3"},
		{')', ")"},
		{css.Important, "!important"},
		{';', ";"},
		{'}', "}"},
		{'}', "}"},
	})
}

func TestScanner_Elided(t *testing.T) {
	checkTokens(t, "<!-- p /* comment */ { } -->", []tokenCase{
		{css.Ident, "p"},
		{'{', "{"},
		{'}', "}"},
	})
	checkTokens(t, "<![CDATA[ a ]]>", []tokenCase{{css.Ident, "a"}})
}

func TestScanner_Important(t *testing.T) {
	checkTokens(t, "! IMPORTANT", []tokenCase{{css.Important, "! IMPORTANT"}})
	checkTokens(t, "!importantly", []tokenCase{{'!', "!"}, {css.Ident, "importantly"}})
}

func TestScanner_SelectOps(t *testing.T) {
	checkTokens(t, "~= |= ^= $= *= ~ *", []tokenCase{
		{css.SelectSpaceList, "~="},
		{css.SelectHyphenList, "|="},
		{css.SelectBegin, "^="},
		{css.SelectEnd, "$="},
		{css.SelectContains, "*="},
		{'~', "~"},
		{'*', "*"},
	})
}

func TestScanner_Strings(t *testing.T) {
	checkTokens(t, `"a\"b" 'c'`, []tokenCase{{css.String, `a\"b`}, {css.String, "c"}})
	got := scanAll("\"open\nx")
	if len(got) == 0 || got[0].Type != scanner.Garbage {
		t.Fatalf("expected unterminated string to be garbage, got %+v", got)
	}
}

func TestScanner_Precedence(t *testing.T) {
	s := css.NewScanner("a b ; c } d")
	if !s.SkipTo(';', 0) {
		t.Fatal("expected ';'")
	}
	if s.SkipTo(';', 1<<9) {
		t.Fatal("'}' must stop skipping below its precedence")
	}
	if tok := s.Current(); tok == nil || !tok.IsChar('}') {
		t.Fatalf("expected '}', got %+v", tok)
	}
}

func TestAtKeywords(t *testing.T) {
	checkTokens(t, "@charset @font-face @import @page @foo", []tokenCase{
		{css.AtCharset, "@charset"},
		{css.AtFontFace, "@font-face"},
		{css.AtImport, "@import"},
		{css.AtPage, "@page"},
		{css.AtKeyword, "@foo"},
	})
	if !css.IsAtKeyword(css.AtPage) || css.IsAtKeyword(css.Ident) {
		t.Error("IsAtKeyword misclassifies")
	}
	if !css.IsDimension(css.EM) || !css.IsFunction(css.URL) {
		t.Error("subtype helpers misclassify")
	}
}
