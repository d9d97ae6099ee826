package selector

import (
	"strconv"
	"strings"
)

// Nth is normalized An+B expression of structural pseudo class. Step zero
// encodes fixed position: positive Index counts from the first sibling,
// negative from the last one and zero means the only sibling. FromEnd
// reverses sibling order (nth-last-child and friends).
type Nth struct {
	Step    int
	Index   int
	FromEnd bool
}

// ParseNth parses An+B expression, "odd" and "even" keywords included.
func ParseNth(text string) (Nth, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	lead := strings.Index(strings.ToLower(text), s)

	switch s {
	case "":
		return Nth{}, &SyntaxError{Offset: 0, Msg: "empty An+B expression", Err: ErrSyntax}
	case "odd":
		return Nth{Step: 2, Index: 1}, nil
	case "even":
		return Nth{Step: 2, Index: 0}, nil
	}

	fail := func(i int, msg string) (Nth, error) {
		return Nth{}, &SyntaxError{Offset: lead + i, Msg: msg, Err: ErrSyntax}
	}

	i := 0
	sign := 1
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		if s[i] == '-' {
			sign = -1
		}
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	coef := 1
	if i > digits {
		v, err := strconv.Atoi(s[digits:i])
		if err != nil {
			return fail(digits, "number out of range")
		}
		coef = v
	}

	if i == len(s) || s[i] != 'n' {
		if i == digits {
			return fail(i, "number expected")
		}
		if i != len(s) {
			return fail(i, "unexpected character")
		}
		return Nth{Index: sign * coef}, nil
	}

	nth := Nth{Step: sign * coef}
	i = skipSpace(s, i+1)
	if i == len(s) {
		return nth, nil
	}
	if s[i] != '+' && s[i] != '-' {
		return fail(i, "sign expected")
	}
	sign = 1
	if s[i] == '-' {
		sign = -1
	}
	i = skipSpace(s, i+1)
	digits = i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digits {
		return fail(i, "number expected")
	}
	if i != len(s) {
		return fail(i, "unexpected character")
	}
	v, err := strconv.Atoi(s[digits:i])
	if err != nil {
		return fail(digits, "number out of range")
	}
	nth.Index = sign * v
	return nth, nil
}

func skipSpace(s string, i int) int {
	for i < len(s) && strings.IndexByte(" \t\n\r\f", s[i]) >= 0 {
		i++
	}
	return i
}

// Matches reports whether 1-based position pos among count siblings
// satisfies the expression.
func (n Nth) Matches(pos, count int) bool {
	last := count - pos + 1
	if n.FromEnd {
		pos, last = last, pos
	}
	switch {
	case n.Step == 0 && n.Index > 0:
		return pos == n.Index
	case n.Step == 0 && n.Index < 0:
		return last == -n.Index
	case n.Step == 0:
		return count == 1
	case n.Step > 0:
		return pos >= n.Index && (pos-n.Index)%n.Step == 0
	default:
		return pos <= n.Index && (n.Index-pos)%(-n.Step) == 0
	}
}

// expr returns An+B text of the expression.
func (n Nth) expr() string {
	if n.Step == 0 {
		return strconv.Itoa(n.Index)
	}
	var b strings.Builder
	switch n.Step {
	case 1:
	case -1:
		b.WriteByte('-')
	default:
		b.WriteString(strconv.Itoa(n.Step))
	}
	b.WriteByte('n')
	switch {
	case n.Index > 0:
		b.WriteString("+" + strconv.Itoa(n.Index))
	case n.Index < 0:
		b.WriteString(strconv.Itoa(n.Index))
	}
	return b.String()
}

// pseudo returns pseudo class text for kind ("child" or "of-type").
func (n Nth) pseudo(kind string) string {
	if n.Step == 0 && !n.FromEnd {
		switch {
		case n.Index == 1:
			return "first-" + kind
		case n.Index == -1:
			return "last-" + kind
		case n.Index == 0:
			return "only-" + kind
		case n.Index < 0:
			return "nth-last-" + kind + "(" + strconv.Itoa(-n.Index) + ")"
		}
	}
	if n.FromEnd {
		return "nth-last-" + kind + "(" + n.expr() + ")"
	}
	return "nth-" + kind + "(" + n.expr() + ")"
}
