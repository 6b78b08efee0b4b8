// Package codec implements the small, allocation-free decoders the parser
// leans on: a UTF-8 DFA that resynchronizes on malformed input, plus the
// base64/hex helpers used by Gateway payload decoding (spec.md §4.3,
// §4.7); OSC 52 clipboard payloads use encoding/base64 directly.
package codec

// UTF8Decoder is a byte-at-a-time DFA. Malformed sequences decode to
// RuneError and the decoder resynchronizes at the next lead byte, matching
// spec.md §4.3's "emit U+FFFD and resynchronize" rule.
type UTF8Decoder struct {
	need int  // remaining continuation bytes expected
	r    rune // codepoint accumulated so far
	min  rune // lowest legal codepoint for this lead byte (overlong check)
}

// RuneError is emitted for any malformed UTF-8 sequence.
const RuneError = 0xFFFD

func isLead(b byte) (need int, r, min rune, ok bool) {
	switch {
	case b < 0x80:
		return 0, rune(b), 0, true
	case b&0xE0 == 0xC0:
		return 1, rune(b & 0x1F), 0x80, true
	case b&0xF0 == 0xE0:
		return 2, rune(b & 0x0F), 0x800, true
	case b&0xF8 == 0xF0:
		return 3, rune(b & 0x07), 0x10000, true
	default:
		return 0, 0, 0, false
	}
}

// Feed processes one byte. ok is true when r holds a completed, decoded
// codepoint (possibly RuneError for a malformed sequence).
func (d *UTF8Decoder) Feed(b byte) (r rune, ok bool) {
	if d.need == 0 {
		need, r0, min, valid := isLead(b)
		if !valid {
			return RuneError, true
		}
		if need == 0 {
			return r0, true
		}
		d.need, d.r, d.min = need, r0, min
		return 0, false
	}

	if b&0xC0 != 0x80 {
		// expected a continuation byte; resynchronize and retry b as a lead.
		d.need, d.r, d.min = 0, 0, 0
		return d.Feed(b)
	}

	d.r = d.r<<6 | rune(b&0x3F)
	d.need--
	if d.need > 0 {
		return 0, false
	}

	got, min := d.r, d.min
	d.r, d.min = 0, 0
	if got < min || got > 0x10FFFF || (got >= 0xD800 && got <= 0xDFFF) {
		return RuneError, true
	}
	return got, true
}

// Reset clears in-progress decode state, used after a parser-level abort.
func (d *UTF8Decoder) Reset() {
	d.need, d.r, d.min = 0, 0, 0
}

// DecodeString is a convenience used for whole-buffer decodes (e.g. title
// strings) where resynchronization semantics still apply.
func DecodeString(b []byte) string {
	var dec UTF8Decoder
	out := make([]rune, 0, len(b))
	for _, c := range b {
		if r, ok := dec.Feed(c); ok {
			out = append(out, r)
		}
	}
	return string(out)
}
