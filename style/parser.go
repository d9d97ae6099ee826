// Package style parses stylesheets and applies them to document trees.
package style

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tbc/dom/selector"
)

// Parser parses CSS stylesheets into rules with compiled selectors.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new stylesheet parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("style")}
}

// sheetBuilder carries state of a single Parse call.
type sheetBuilder struct {
	log    *zap.Logger
	source string
	cp     *css.Parser
	sheet  *Stylesheet
	errs   error
}

// Parse parses CSS text into a Stylesheet. Source identifies what is being
// parsed in warnings and logs. Rules whose selectors fail to compile are
// dropped, the returned sheet is always usable and error aggregates all
// selector failures.
func (p *Parser) Parse(data []byte, source string) (*Stylesheet, error) {
	p.log.Debug("Parsing stylesheet", zap.String("source", source), zap.Int("bytes", len(data)))

	b := &sheetBuilder{
		log:    p.log,
		source: source,
		cp:     css.NewParser(parse.NewInput(bytes.NewReader(data)), false),
		sheet:  &Stylesheet{},
	}
	b.run()

	if len(b.sheet.Warnings) > 0 {
		p.log.Debug("Stylesheet has problems", zap.String("source", source), zap.Int("warnings", len(b.sheet.Warnings)))
	}
	return b.sheet, b.errs
}

func (b *sheetBuilder) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if b.source != "" {
		msg = b.source + ": " + msg
	}
	b.sheet.Warnings = append(b.sheet.Warnings, msg)
}

// done reports whether error grammar ends the input.
func (b *sheetBuilder) done() bool {
	err := b.cp.Err()
	if err == nil {
		b.warn("skipping malformed input")
		return false
	}
	if !errors.Is(err, io.EOF) {
		b.warn("%v", err)
		b.log.Debug("CSS parse error", zap.Error(err))
	}
	return true
}

func (b *sheetBuilder) run() {
	for {
		gt, _, data := b.cp.Next()
		switch gt {
		case css.ErrorGrammar:
			if b.done() {
				return
			}
		case css.BeginAtRuleGrammar:
			rule := strings.ToLower(string(data))
			if rule != "@media" {
				b.skipAtRuleBlock()
				b.log.Debug("Skipping @-rule", zap.String("rule", rule))
				continue
			}
			media := parseMedia(b.cp.Values())
			if !b.mediaBlock(media) {
				return
			}
		case css.AtRuleGrammar:
			rule := strings.ToLower(string(data))
			if rule != "@import" {
				b.log.Debug("Skipping @-rule", zap.String("rule", rule))
				continue
			}
			if url := extractImportURL(b.cp.Values()); url != "" {
				b.sheet.Imports = append(b.sheet.Imports, url)
				b.log.Debug("Parsed @import", zap.String("url", url))
			}
		case css.BeginRulesetGrammar, css.QualifiedRuleGrammar:
			b.ruleset(data, nil)
		}
	}
}

// mediaBlock parses rules inside @media block. It returns false when input
// ended inside the block.
func (b *sheetBuilder) mediaBlock(media Media) bool {
	for {
		gt, _, data := b.cp.Next()
		switch gt {
		case css.ErrorGrammar:
			if b.done() {
				return false
			}
		case css.EndAtRuleGrammar:
			return true
		case css.BeginAtRuleGrammar:
			b.skipAtRuleBlock()
		case css.BeginRulesetGrammar:
			b.ruleset(data, media)
		}
	}
}

// ruleset compiles selector list and collects declarations up to the end of
// the ruleset.
func (b *sheetBuilder) ruleset(data []byte, media Media) {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range b.cp.Values() {
		sb.Write(v.Data)
	}
	raw := strings.TrimSpace(sb.String())
	props := b.declarations()

	sels, err := selector.ParseList(raw)
	if err != nil {
		b.warn("invalid selector %q: %v", raw, err)
		b.errs = multierr.Append(b.errs, fmt.Errorf("selector %q: %w", raw, err))
		return
	}
	if len(props) == 0 {
		return
	}
	b.sheet.Rules = append(b.sheet.Rules, Rule{Raw: raw, Selectors: sels, Properties: props, Media: media})
}

// declarations parses property declarations until EndRulesetGrammar.
func (b *sheetBuilder) declarations() map[string]Value {
	props := make(map[string]Value)
	for {
		gt, _, data := b.cp.Next()
		switch gt {
		case css.ErrorGrammar:
			if b.cp.Err() != nil {
				return props
			}
		case css.EndRulesetGrammar:
			return props
		case css.DeclarationGrammar:
			name := strings.ToLower(string(data))
			if values := b.cp.Values(); len(values) > 0 {
				props[name] = parsePropertyValue(values)
			}
		case css.CustomPropertyGrammar:
			continue
		}
	}
}

// skipAtRuleBlock skips tokens until the matching end of an @-rule block.
func (b *sheetBuilder) skipAtRuleBlock() {
	depth := 1
	for depth > 0 {
		gt, _, _ := b.cp.Next()
		switch gt {
		case css.ErrorGrammar:
			if b.cp.Err() != nil {
				return
			}
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// important strips trailing "! important" from value tokens.
func important(tokens []css.Token) ([]css.Token, bool) {
	end := len(tokens)
	next := func() int {
		for end > 0 && tokens[end-1].TokenType == css.WhitespaceToken {
			end--
		}
		return end - 1
	}
	i := next()
	if i < 0 || tokens[i].TokenType != css.IdentToken || !strings.EqualFold(string(tokens[i].Data), "important") {
		return tokens, false
	}
	end = i
	i = next()
	if i < 0 || tokens[i].TokenType != css.DelimToken || string(tokens[i].Data) != "!" {
		return tokens, false
	}
	return tokens[:i], true
}

// parsePropertyValue converts CSS tokens to a Value.
func parsePropertyValue(tokens []css.Token) Value {
	tokens, imp := important(tokens)

	var parts []string
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			parts = append(parts, string(t.Data))
		} else if len(parts) > 0 {
			parts = append(parts, " ")
		}
	}
	raw := strings.TrimSpace(strings.Join(parts, ""))
	val := Value{Raw: raw, Important: imp}

	var single []css.Token
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			single = append(single, t)
		}
	}
	if len(single) != 1 {
		val.Keyword = raw
		return val
	}

	t := single[0]
	switch t.TokenType {
	case css.DimensionToken:
		val.Value, val.Unit = parseDimension(string(t.Data))
	case css.PercentageToken:
		val.Value, _ = strconv.ParseFloat(strings.TrimSuffix(string(t.Data), "%"), 64)
		val.Unit = "%"
	case css.NumberToken:
		val.Value, _ = strconv.ParseFloat(string(t.Data), 64)
	case css.IdentToken:
		val.Keyword = strings.ToLower(string(t.Data))
	case css.StringToken:
		val.Keyword = unquote(string(t.Data))
	default:
		val.Keyword = raw
	}
	return val
}

// parseDimension extracts numeric value and unit from dimension token.
func parseDimension(s string) (float64, string) {
	end := 0
	for i, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '-' || r == '+' {
			end = i + 1
		} else {
			break
		}
	}
	if end == 0 {
		return 0, ""
	}
	num, _ := strconv.ParseFloat(s[:end], 64)
	return num, strings.ToLower(s[end:])
}

// parseMedia splits @media prelude into queries.
func parseMedia(tokens []css.Token) Media {
	var (
		media Media
		part  []css.Token
	)
	flush := func() {
		if mq, ok := parseMediaQuery(part); ok {
			media = append(media, mq)
		}
		part = part[:0]
	}
	for _, t := range tokens {
		if t.TokenType == css.CommaToken {
			flush()
			continue
		}
		part = append(part, t)
	}
	flush()
	return media
}

func parseMediaQuery(tokens []css.Token) (MediaQuery, bool) {
	var sb strings.Builder
	for _, t := range tokens {
		sb.Write(t.Data)
	}
	mq := MediaQuery{Raw: strings.Join(strings.Fields(sb.String()), " ")}
	if mq.Raw == "" {
		return mq, false
	}
	for _, t := range tokens {
		switch t.TokenType {
		case css.WhitespaceToken:
			continue
		case css.IdentToken:
		default:
			// feature list without media type
			return mq, true
		}
		switch ident := strings.ToLower(string(t.Data)); ident {
		case "not":
			mq.Negated = true
		case "only":
			mq.Only = true
		default:
			mq.Type = ident
			return mq, true
		}
	}
	return mq, true
}

// extractImportURL extracts the URL from @import tokens.
// Handles: @import "url"; @import url("url"); @import url(url);
func extractImportURL(tokens []css.Token) string {
	for i, t := range tokens {
		switch t.TokenType {
		case css.StringToken:
			return unquote(string(t.Data))
		case css.URLToken:
			s := strings.TrimSuffix(strings.TrimPrefix(string(t.Data), "url("), ")")
			return unquote(strings.TrimSpace(s))
		case css.FunctionToken:
			// url( "quoted" ) arrives as function with string argument
			if strings.EqualFold(string(t.Data), "url(") && i+1 < len(tokens) {
				return extractImportURL(tokens[i+1:])
			}
		}
	}
	return ""
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
