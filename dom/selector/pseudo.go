package selector

import "strings"

// Pseudo is a set of pseudo classes and elements which do not take part in
// matching, they are kept for style application.
type Pseudo uint32

const (
	PseudoFirstLine Pseudo = 1 << iota
	PseudoFirstLetter
	PseudoSelection
	PseudoBefore
	PseudoAfter
	PseudoLink
	PseudoVisited
	PseudoActive
	PseudoHover
	PseudoFocus
	PseudoTarget
	PseudoEnabled
	PseudoDisabled
	PseudoChecked
	PseudoIndeterminate
	PseudoContains
)

const pseudoElements = PseudoFirstLine | PseudoFirstLetter | PseudoSelection | PseudoBefore | PseudoAfter

// Elements returns pseudo elements from the set.
func (p Pseudo) Elements() Pseudo {
	return p & pseudoElements
}

// pseudoKind tells how pseudo name is applied.
type pseudoKind uint8

const (
	pseudoFlag pseudoKind = iota
	pseudoRoot
	pseudoEmpty
	pseudoFixedChild
	pseudoFixedType
	pseudoNthChild
	pseudoNthType
)

type pseudoName struct {
	name string
	kind pseudoKind
	flag Pseudo
	// fixed position for first/last/only forms
	index   int
	fromEnd bool
	// function takes arguments
	function bool
}

var pseudoNames = []pseudoName{
	{name: "root", kind: pseudoRoot},
	{name: "empty", kind: pseudoEmpty},
	{name: "first-child", kind: pseudoFixedChild, index: 1},
	{name: "last-child", kind: pseudoFixedChild, index: -1},
	{name: "only-child", kind: pseudoFixedChild, index: 0},
	{name: "first-of-type", kind: pseudoFixedType, index: 1},
	{name: "last-of-type", kind: pseudoFixedType, index: -1},
	{name: "only-of-type", kind: pseudoFixedType, index: 0},
	{name: "nth-child", kind: pseudoNthChild, function: true},
	{name: "nth-last-child", kind: pseudoNthChild, fromEnd: true, function: true},
	{name: "nth-of-type", kind: pseudoNthType, function: true},
	{name: "nth-last-of-type", kind: pseudoNthType, fromEnd: true, function: true},
	{name: "first-line", flag: PseudoFirstLine},
	{name: "first-letter", flag: PseudoFirstLetter},
	{name: "selection", flag: PseudoSelection},
	{name: "before", flag: PseudoBefore},
	{name: "after", flag: PseudoAfter},
	{name: "link", flag: PseudoLink},
	{name: "visited", flag: PseudoVisited},
	{name: "active", flag: PseudoActive},
	{name: "hover", flag: PseudoHover},
	{name: "focus", flag: PseudoFocus},
	{name: "target", flag: PseudoTarget},
	{name: "enabled", flag: PseudoEnabled},
	{name: "disabled", flag: PseudoDisabled},
	{name: "checked", flag: PseudoChecked},
	{name: "indeterminate", flag: PseudoIndeterminate},
	{name: "contains", flag: PseudoContains, function: true},
}

func lookupPseudo(name string) (pseudoName, bool) {
	for _, p := range pseudoNames {
		if strings.EqualFold(p.name, name) {
			return p, true
		}
	}
	return pseudoName{}, false
}
