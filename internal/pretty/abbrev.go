// Package pretty has formatting helpers for log output.
package pretty

import "unicode/utf8"

// Abbrev returns a Stringer that shortens s for logging. With no ranges, s is
// cut to 12 runes when longer than 12 runes. A single range sets both limits;
// two ranges set the maximum length and the length to cut to.
func Abbrev(s string, ranges ...int) Abbreviated {
	maxLen, cutTo := 12, 12
	if len(ranges) >= 2 {
		maxLen, cutTo = ranges[0], ranges[1]
	} else if len(ranges) == 1 {
		maxLen, cutTo = ranges[0], ranges[0]
	}
	return Abbreviated{
		Original: s,
		MaxLen:   maxLen,
		CutTo:    cutTo,
	}
}

// Abbreviated is a string that is shortened when formatted.
type Abbreviated struct {
	Original string
	MaxLen   int
	CutTo    int
}

func (s Abbreviated) String() string {
	if utf8.RuneCountInString(s.Original) <= s.MaxLen {
		return s.Original
	}
	n := 0
	for i := range s.Original {
		if n == s.CutTo {
			return s.Original[:i] + "…"
		}
		n++
	}
	return s.Original
}
