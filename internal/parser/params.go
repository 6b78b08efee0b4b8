// Package parser implements the byte-to-event state machine spec.md §4.3
// describes: ground/escape/CSI/OSC/DCS/SOS/PM/APC, UTF-8 decoding, and the
// parameter model shared by CSI and DCS introducers.
package parser

// maxParams bounds the fixed-size parameter array spec.md §4.3 calls "a
// small fixed-length array of signed 32-bit integers with a default
// sentinel." A CSI sequence with more fields than this wraps the index
// rather than growing or panicking (spec.md §4.3 Failure: "a CSI parameter
// overflow wraps the parameter index without crashing").
const maxParams = 32

// noParam is an "unset" sentinel value. The accumulator does not store it:
// an empty field (e.g. the row in `CSI ;5H`) is recorded as 0, the same as
// an explicit 0.
const noParam = -1

// Params is the fixed-capacity signed-integer parameter list built while
// parsing a CSI or DCS introducer. Sub-parameters (colon-separated, as in
// SGR's `38:2:r:g:b`) are tracked per top-level slot.
type Params struct {
	values     [maxParams]int32
	subStart   [maxParams]int // index into subs where this param's subparams begin
	subCount   [maxParams]int
	subs       [maxParams]int32
	n          int
	nSubs      int
	cur        int32
	curSet     bool
	negPending bool
	inSub      bool // a ':' has been seen in the current top-level field
	permissive bool // mode flag: when false (strict), signed negatives clamp to 0
}

// Reset clears the accumulated parameters for the next sequence.
func (p *Params) Reset() {
	p.n, p.nSubs, p.cur, p.curSet = 0, 0, 0, false
	p.negPending, p.inSub = false, false
}

// SetPermissive toggles strict/permissive handling of signed parameters
// (spec.md §4.3 "Signed parameters": "In strict mode, signed values in CSI
// are clamped to 0; in permissive mode they pass through").
func (p *Params) SetPermissive(v bool) { p.permissive = v }

// Digit folds a decimal digit into the parameter currently being
// accumulated, saturating rather than overflowing.
func (p *Params) Digit(d byte) {
	if p.negPending {
		v := p.cur*10 - int32(d-'0')
		if v > p.cur { // overflow
			v = -1 << 31
		}
		p.cur = v
		p.curSet = true
		return
	}
	v := p.cur*10 + int32(d-'0')
	if v < p.cur { // overflow
		v = 1<<31 - 1
	}
	p.cur = v
	p.curSet = true
}

// Negate marks the in-progress parameter as negative (a leading `-` before
// its digits, used by ReGIS/Gateway/relative-cursor signed syntax).
func (p *Params) Negate() {
	if p.curSet {
		p.cur = -p.cur
	} else {
		p.cur = 0
		p.curSet = true
		p.negPending = true
	}
}

// Semicolon finalizes the current top-level parameter and starts the next.
func (p *Params) Semicolon() {
	p.pushTop()
}

// Colon finalizes the current value as a sub-parameter of the active
// top-level slot (SGR extended color syntax).
func (p *Params) Colon() {
	p.pushSub()
}

func (p *Params) pushTop() {
	if p.inSub {
		p.pushSub() // the value after the last ':' closes the sub-parameter list
		p.inSub = false
		return
	}
	if p.n >= maxParams {
		p.n = p.n % maxParams // wrap per spec.md §4.3 Failure clause
	}
	p.values[p.n] = p.finalize()
	p.subStart[p.n] = p.nSubs
	p.subCount[p.n] = 0
	p.n++
	p.cur, p.curSet, p.negPending = 0, false, false
}

func (p *Params) pushSub() {
	if !p.inSub {
		// the value before the first ':' is the top-level value itself
		p.pushTop()
		p.inSub = true
		return
	}
	idx := p.n - 1
	if p.nSubs < len(p.subs) {
		p.subs[p.nSubs] = p.finalize()
		p.nSubs++
		p.subCount[idx]++
	}
	p.cur, p.curSet, p.negPending = 0, false, false
}

func (p *Params) finalize() int32 {
	v := p.cur
	if !p.permissive && v < 0 {
		v = 0
	}
	return v
}

// Finish closes out the final (not-yet-semicolon-terminated) parameter;
// call once after the terminating final byte is seen.
func (p *Params) Finish() {
	p.pushTop()
}

// Len reports how many top-level parameters were supplied.
func (p *Params) Len() int { return p.n }

// Get returns the i-th top-level parameter, or def when i is at or past
// Len() (the field was not supplied at all). A field that was present but
// empty (e.g. the row in `CSI ;5H`) reads as 0, not def.
func (p *Params) Get(i int, def int) int {
	if i < 0 || i >= p.n {
		return def
	}
	return int(p.values[i])
}

// GetOrDefaultWhenZero mirrors the common VT convention where omitted AND
// explicit-zero parameters both mean "use the default" (e.g. `CSI H` and
// `CSI 0H` both mean row 1).
func (p *Params) GetOrDefaultWhenZero(i int, def int) int {
	v := p.Get(i, def)
	if v == 0 {
		return def
	}
	return v
}

// SubParams returns the sub-parameters attached to top-level slot i.
func (p *Params) SubParams(i int) []int32 {
	if i < 0 || i >= p.n {
		return nil
	}
	start := p.subStart[i]
	count := p.subCount[i]
	if start+count > len(p.subs) {
		count = len(p.subs) - start
	}
	return p.subs[start : start+count]
}

// All returns every top-level parameter as a plain slice (used by
// sub-parsers like Gateway/Sixel that want the whole param list).
func (p *Params) All() []int {
	out := make([]int, p.n)
	for i := 0; i < p.n; i++ {
		out[i] = int(p.values[i])
	}
	return out
}
