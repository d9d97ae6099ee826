package style

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"

	"tbc/dom/selector"
)

// Medium is media type stylesheets are evaluated for.
const Medium = "tty"

// MediaQuery is a single comma separated part of @media prelude.
type MediaQuery struct {
	Raw     string // original query text
	Type    string // media type, empty when only features are given
	Negated bool   // "not" modifier on type
	Only    bool   // "only" modifier on type
}

// Evaluate reports whether query matches medium. Media features are not
// evaluated.
func (mq MediaQuery) Evaluate(medium string) bool {
	matches := mq.Type == "" || mq.Type == "all" || strings.EqualFold(mq.Type, medium)
	if mq.Negated {
		return !matches
	}
	return matches
}

// Media is @media query list, empty list matches any medium.
type Media []MediaQuery

// Evaluate reports whether any query in the list matches medium.
func (m Media) Evaluate(medium string) bool {
	if len(m) == 0 {
		return true
	}
	return slices.ContainsFunc(m, func(mq MediaQuery) bool { return mq.Evaluate(medium) })
}

func (m Media) String() string {
	parts := make([]string, len(m))
	for i, mq := range m {
		parts[i] = mq.Raw
	}
	return strings.Join(parts, ", ")
}

// Value represents a parsed CSS property value.
type Value struct {
	Raw       string  // original value text without !important
	Value     float64 // numeric value if applicable
	Unit      string  // unit if applicable: "em", "px", "%", "ch"
	Keyword   string  // keyword if applicable: "bold", "none", "#ff0000"
	Important bool
}

// IsNumeric returns true if the value has a numeric component, including
// explicit zero values like "0" or "0px".
func (v Value) IsNumeric() bool {
	if v.Unit != "" {
		return true
	}
	if v.Value != 0 && v.Keyword == "" {
		return true
	}
	if v.Raw != "" && v.Keyword == "" {
		c := rune(v.Raw[0])
		if unicode.IsDigit(c) || c == '.' || c == '-' || c == '+' {
			return true
		}
	}
	return false
}

// IsKeyword returns true if the value is a keyword without numeric component.
func (v Value) IsKeyword() bool {
	return v.Keyword != "" && v.Unit == ""
}

func (v Value) String() string {
	if v.Important {
		return v.Raw + " !important"
	}
	return v.Raw
}

// Rule is a ruleset with compiled selectors.
type Rule struct {
	Raw        string               // selector list as written
	Selectors  []*selector.Selector // compiled selector list
	Properties map[string]Value     // property name -> value
	Media      Media                // enclosing @media queries
}

// Property returns the value for a property.
func (r *Rule) Property(name string) (Value, bool) {
	v, ok := r.Properties[name]
	return v, ok
}

// Stylesheet is a parsed stylesheet, rules are kept in source order.
type Stylesheet struct {
	Rules    []Rule
	Imports  []string
	Warnings []string
}

// RulesBySelector returns rules written with given selector list text.
func (s *Stylesheet) RulesBySelector(raw string) []Rule {
	var out []Rule
	for _, r := range s.Rules {
		if r.Raw == raw {
			out = append(out, r)
		}
	}
	return out
}

// Append adds rules of other after rules of s so that they win source
// order ties.
func (s *Stylesheet) Append(other *Stylesheet) {
	if other == nil {
		return
	}
	s.Rules = append(s.Rules, other.Rules...)
	s.Imports = append(s.Imports, other.Imports...)
	s.Warnings = append(s.Warnings, other.Warnings...)
}

// WriteTo writes stylesheet to w in source order, implementing io.WriterTo.
// Rules use canonical selector text and sorted properties.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, url := range s.Imports {
		n, err := fmt.Fprintf(w, "@import url(%q);\n", url)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	for i := range s.Rules {
		n, err := writeRule(w, &s.Rules[i])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

func writeRule(w io.Writer, r *Rule) (int, error) {
	sels := make([]string, len(r.Selectors))
	for i, sel := range r.Selectors {
		sels[i] = sel.String()
	}
	indent := ""
	var total int
	if len(r.Media) > 0 {
		n, err := fmt.Fprintf(w, "@media %s {\n", r.Media)
		total += n
		if err != nil {
			return total, err
		}
		indent = "  "
	}
	n, err := fmt.Fprintf(w, "%s%s {\n", indent, strings.Join(sels, ", "))
	total += n
	if err != nil {
		return total, err
	}
	n, err = writeProperties(w, r.Properties, indent+"  ")
	total += n
	if err != nil {
		return total, err
	}
	n, err = fmt.Fprintf(w, "%s}\n", indent)
	total += n
	if err != nil || indent == "" {
		return total, err
	}
	n, err = fmt.Fprint(w, "}\n")
	total += n
	return total, err
}

func writeProperties(w io.Writer, props map[string]Value, indent string) (int, error) {
	var total int
	for _, name := range sortedNames(props) {
		n, err := fmt.Fprintf(w, "%s%s: %s;\n", indent, name, props[name])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func sortedNames(props map[string]Value) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
