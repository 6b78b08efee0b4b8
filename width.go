package kterm

import "github.com/unilibs/uniwidth"

// runeWidth returns the display width: 2 for wide characters (CJK, emoji),
// 1 for normal, 0 for zero-width (combining marks, control chars). BMP
// categorization only, per spec.md §9 "Unicode" non-goal on grapheme
// clustering.
func runeWidth(r rune) int {
	return uniwidth.RuneWidth(r)
}

func isWideRune(r rune) bool {
	return uniwidth.RuneWidth(r) == 2
}

// StringWidth returns the total display width of a string.
func StringWidth(s string) int {
	return uniwidth.StringWidth(s)
}
