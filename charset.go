package kterm

import (
	"golang.org/x/text/encoding/charmap"
)

// Charset identifies which mapping a G0..G3 slot currently holds
// (spec.md §3 "a mapping to one of {ASCII, DEC-Special-Graphics, UK,
// Latin-1, user-defined soft font}").
type Charset int

const (
	CharsetASCII Charset = iota
	CharsetLineDrawing
	CharsetUK
	CharsetLatin1
	CharsetUserDefined
)

// CharsetIndex selects one of the four designator slots.
type CharsetIndex int

const (
	CharsetIndexG0 CharsetIndex = iota
	CharsetIndexG1
	CharsetIndexG2
	CharsetIndexG3
)

// decSpecialGraphics maps ASCII 0x5F..0x7E onto the DEC Special Graphics
// line-drawing glyphs (the classic VT100 character set).
var decSpecialGraphics = map[rune]rune{
	'_': ' ', '`': '◆', 'a': '▒', 'b': '␉',
	'c': '␌', 'd': '␍', 'e': '␊', 'f': '°',
	'g': '±', 'h': '␤', 'i': '␋', 'j': '┘',
	'k': '┐', 'l': '┌', 'm': '└', 'n': '┼',
	'o': '⎺', 'p': '⎻', 'q': '─', 'r': '⎼',
	's': '⎽', 't': '├', 'u': '┤', 'v': '┴',
	'w': '┬', 'x': '│', 'y': '≤', 'z': '≥',
	'{': 'π', '|': '≠', '}': '£', '~': '·',
}

// ukPound is the sole GB (UK) deviation from ASCII: '#' becomes a pound sign.
const ukPound = '£'

// translateCharset applies charset cs's mapping to r as the parser would
// just before enqueueing a PrintChar op (spec.md §4.3 "applied by the
// parser just before enqueueing"). User-defined soft fonts are looked up
// against softFont if provided and otherwise pass through unchanged.
func translateCharset(cs Charset, r rune, softFont map[rune]rune) rune {
	switch cs {
	case CharsetLineDrawing:
		if mapped, ok := decSpecialGraphics[r]; ok {
			return mapped
		}
		return r
	case CharsetUK:
		if r == '#' {
			return ukPound
		}
		return r
	case CharsetLatin1:
		if r <= 0xFF {
			// charmap.ISO8859_1 is effectively the identity for bytes, but we
			// still route through it so callers get the library's NewDecoder
			// behavior (and so a soft-font replacement can override it).
			dec := charmap.ISO8859_1.NewDecoder()
			out, err := dec.Bytes([]byte{byte(r)})
			if err == nil && len(out) > 0 {
				return []rune(string(out))[0]
			}
		}
		return r
	case CharsetUserDefined:
		if softFont != nil {
			if mapped, ok := softFont[r]; ok {
				return mapped
			}
		}
		return r
	default:
		return r
	}
}
