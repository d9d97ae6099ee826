package scanner

// Group is a set of character group flags attached to a byte value.
type Group uint32

// Generic character groups. Grammars are free to define additional groups
// starting at UserGroup.
const (
	Digit Group = 1 << iota
	HexDigit
	Alpha
	IdentStart
	Ident
	Whitespace
	Newline
	NonASCII
	TokenStart
	TokenChar

	// UserGroup is the first bit available for grammar specific groups.
	UserGroup
)

// Class describes which bytes belong to which groups: either a range
// (From..To inclusive) or, when Chars is not empty, an explicit set of
// characters.
type Class struct {
	From, To byte
	Chars    string
	Groups   Group
}

// Range returns class covering all bytes from..to inclusive.
func Range(from, to byte, groups Group) Class {
	return Class{From: from, To: to, Groups: groups}
}

// Chars returns class covering all bytes of chars.
func Chars(chars string, groups Group) Class {
	return Class{Chars: chars, Groups: groups}
}

// Table maps every byte value to its groups.
type Table [256]Group

// BuildTable constructs classification table from declarative specs.
func BuildTable(classes []Class) Table {
	var t Table
	for _, c := range classes {
		if c.Chars == "" {
			for b := int(c.From); b <= int(c.To); b++ {
				t[b] |= c.Groups
			}
			continue
		}
		for i := 0; i < len(c.Chars); i++ {
			t[c.Chars[i]] |= c.Groups
		}
	}
	return t
}

// Is reports whether byte c belongs to any of groups.
func (t *Table) Is(c byte, groups Group) bool {
	return t[c]&groups != 0
}
