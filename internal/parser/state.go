package parser

import "github.com/kterm/kterm/internal/codec"

type utf8Decoder = codec.UTF8Decoder

// state is the parser's current automaton state (spec.md §4.3 state
// table). Utf8 is folded into the rune decoder rather than being a
// distinct top-level state; continuation bytes are routed there whenever
// the UTF-8 decoder reports it is mid-sequence.
type state uint8

const (
	stateGround state = iota
	stateEscape
	stateCsiEntry
	stateCsiParam
	stateCsiIntermediate
	stateCsiIgnore // CSI sequence malformed; consume to final byte and drop
	stateOscString
	stateDcsEntry
	stateDcsParam
	stateDcsIntermediate
	stateDcsPassthrough
	stateDcsIgnore
	stateSos
	statePm
	stateApc
)

const (
	maxIntermediates = 8
	maxStringLen     = 1 << 20 // hard cap on OSC/DCS/SOS/PM/APC string bodies
)

// Parser is the byte-to-Event state machine described in spec.md §4.3. A
// Parser is not safe for concurrent use; each session owns exactly one,
// matching the "one Update call drives the whole pipeline" cooperative
// scheduling model (spec.md §5).
type Parser struct {
	st state

	params  Params
	inter   []byte
	private byte
	final   byte

	strBuf []byte // OSC/DCS/SOS/PM/APC accumulator
	esc    bool   // ST seen as ESC, waiting for '\'

	utf8 utf8Decoder

	Permissive bool // spec.md §4.3 "Signed parameters" strict/permissive toggle
}

// New returns a Parser ready to consume bytes from Ground state.
func New() *Parser {
	return &Parser{}
}

// Reset returns the parser to Ground, discarding any partially parsed
// sequence (used on session FullReset).
func (p *Parser) Reset() {
	*p = Parser{Permissive: p.Permissive}
}

// Feed consumes data, emitting one Event per call to h.Handle for every
// completed unit (a printable rune, a control byte, or a dispatched
// sequence). Feed may be called repeatedly with arbitrary chunk
// boundaries — a sequence split across two Feed calls parses identically
// to the same bytes delivered in one call (spec.md §8 "byte-stream-split
// equivalence").
func (p *Parser) Feed(data []byte, h Handler) {
	for i := 0; i < len(data); i++ {
		p.step(data[i], h)
	}
}

func (p *Parser) step(b byte, h Handler) {
	// Only Ground routes bytes through the UTF-8 decoder and accepts
	// multi-byte lead bytes as printable text; in every other state
	// (CSI/OSC/etc.) bytes are treated as 7-bit control grammar, matching the teacher's encoding (control sequences are
	// ASCII-only in every VT dialect this targets).
	if p.st == stateGround {
		r, ok := p.utf8.Feed(b)
		if !ok {
			return // mid multi-byte sequence, wait for more continuation bytes
		}
		p.dispatchGroundByte(b, r, h)
		return
	}

	switch p.st {
	case stateEscape:
		p.stepEscape(b, h)
	case stateCsiEntry, stateCsiParam, stateCsiIntermediate:
		p.stepCsi(b, h)
	case stateCsiIgnore:
		p.stepCsiIgnore(b)
	case stateOscString:
		p.stepOsc(b, h)
	case stateDcsEntry, stateDcsParam, stateDcsIntermediate:
		p.stepDcsHeader(b, h)
	case stateDcsPassthrough:
		p.stepDcsPassthrough(b, h)
	case stateDcsIgnore:
		p.stepDcsIgnore(b)
	case stateSos, statePm, stateApc:
		p.stepStringMode(b, h)
	}
}

// dispatchGroundByte handles a byte for which the UTF-8 decoder just
// completed a codepoint (single-byte ASCII or the last byte of a
// multi-byte rune).
func (p *Parser) dispatchGroundByte(b byte, r rune, h Handler) {
	if b == 0x1b {
		p.beginEscape()
		return
	}
	if b < 0x20 || b == 0x7f {
		p.execute(b, h)
		return
	}
	h.Handle(Event{Kind: EventPrint, Rune: r})
}

func (p *Parser) execute(b byte, h Handler) {
	h.Handle(Event{Kind: EventExecute, Rune: rune(b)})
}

func (p *Parser) beginEscape() {
	p.st = stateEscape
	p.inter = p.inter[:0]
	p.private = 0
}

func (p *Parser) stepEscape(b byte, h Handler) {
	switch {
	case b == '[':
		p.beginCsi()
	case b == ']':
		p.beginOsc()
	case b == 'P':
		p.beginDcs()
	case b == 'X':
		p.beginString(stateSos)
	case b == '^':
		p.beginString(statePm)
	case b == '_':
		p.beginString(stateApc)
	case b >= 0x20 && b <= 0x2f:
		if len(p.inter) < maxIntermediates {
			p.inter = append(p.inter, b)
		}
	case b >= 0x30 && b <= 0x7e:
		h.Handle(Event{Kind: EventEscDispatch, Rune: rune(b), Final: b, Inter: append([]byte(nil), p.inter...)})
		p.st = stateGround
	default:
		p.st = stateGround
	}
}

func (p *Parser) beginCsi() {
	p.st = stateCsiEntry
	p.params.Reset()
	p.params.SetPermissive(p.Permissive)
	p.inter = p.inter[:0]
	p.private = 0
}

func (p *Parser) stepCsi(b byte, h Handler) {
	switch {
	case b >= '0' && b <= '9':
		p.params.Digit(b)
		p.st = stateCsiParam
	case b == ';':
		p.params.Semicolon()
		p.st = stateCsiParam
	case b == ':':
		p.params.Colon()
		p.st = stateCsiParam
	case b == '-':
		p.params.Negate()
		p.st = stateCsiParam
	case (b == '?' || b == '<' || b == '=' || b == '>') && p.st == stateCsiEntry:
		p.private = b
		p.st = stateCsiParam
	case b >= 0x20 && b <= 0x2f:
		if len(p.inter) < maxIntermediates {
			p.inter = append(p.inter, b)
		}
		p.st = stateCsiIntermediate
	case b >= 0x40 && b <= 0x7e:
		p.params.Finish()
		h.Handle(Event{
			Kind: EventCSIDispatch, Final: b, Private: p.private,
			Inter: append([]byte(nil), p.inter...), Params: &p.params,
		})
		p.st = stateGround
	case b == 0x18 || b == 0x1a: // CAN/SUB abort
		p.st = stateGround
	default:
		p.st = stateCsiIgnore
	}
}

func (p *Parser) stepCsiIgnore(b byte) {
	if b >= 0x40 && b <= 0x7e {
		p.st = stateGround
	}
}

func (p *Parser) beginOsc() {
	p.st = stateOscString
	p.strBuf = p.strBuf[:0]
	p.esc = false
}

func (p *Parser) stepOsc(b byte, h Handler) {
	if p.esc {
		if b == '\\' {
			p.finishOsc(h)
		} else {
			p.strBuf = append(p.strBuf, 0x1b, b)
			p.esc = false
		}
		return
	}
	switch b {
	case 0x07: // BEL terminator (xterm convention)
		p.finishOsc(h)
	case 0x1b:
		p.esc = true
	default:
		if len(p.strBuf) < maxStringLen {
			p.strBuf = append(p.strBuf, b)
		}
	}
}

func (p *Parser) finishOsc(h Handler) {
	h.Handle(Event{Kind: EventOSCDispatch, Data: append([]byte(nil), p.strBuf...)})
	p.st = stateGround
}

func (p *Parser) beginDcs() {
	p.st = stateDcsEntry
	p.params.Reset()
	p.params.SetPermissive(p.Permissive)
	p.inter = p.inter[:0]
	p.private = 0
}

func (p *Parser) stepDcsHeader(b byte, h Handler) {
	switch {
	case b >= '0' && b <= '9':
		p.params.Digit(b)
		p.st = stateDcsParam
	case b == ';':
		p.params.Semicolon()
		p.st = stateDcsParam
	case b == ':':
		p.params.Colon()
		p.st = stateDcsParam
	case (b == '?' || b == '<' || b == '=' || b == '>') && p.st == stateDcsEntry:
		p.private = b
		p.st = stateDcsParam
	case b >= 0x20 && b <= 0x2f:
		if len(p.inter) < maxIntermediates {
			p.inter = append(p.inter, b)
		}
		p.st = stateDcsIntermediate
	case b >= 0x40 && b <= 0x7e:
		p.params.Finish()
		p.final = b
		p.strBuf = p.strBuf[:0]
		p.esc = false
		p.st = stateDcsPassthrough
	case b == 0x18 || b == 0x1a:
		p.st = stateGround
	default:
		p.st = stateDcsIgnore
	}
}

func (p *Parser) stepDcsIgnore(b byte) {
	if b == 0x1b {
		p.esc = true
	} else if p.esc && b == '\\' {
		p.st = stateGround
		p.esc = false
	} else {
		p.esc = false
	}
}

func (p *Parser) stepDcsPassthrough(b byte, h Handler) {
	if p.esc {
		if b == '\\' {
			p.finishDcs(h)
		} else {
			p.strBuf = append(p.strBuf, 0x1b, b)
			p.esc = false
		}
		return
	}
	if b == 0x1b {
		p.esc = true
		return
	}
	if len(p.strBuf) < maxStringLen {
		p.strBuf = append(p.strBuf, b)
	}
}

func (p *Parser) finishDcs(h Handler) {
	ev := Event{
		Kind: EventDCSDispatch, Final: p.final, Private: p.private,
		Inter: append([]byte(nil), p.inter...), Params: &p.params,
		Data: append([]byte(nil), p.strBuf...),
	}
	p.st = stateGround
	p.esc = false
	h.Handle(ev)
}

func (p *Parser) beginString(s state) {
	p.st = s
	p.strBuf = p.strBuf[:0]
	p.esc = false
}

func (p *Parser) stepStringMode(b byte, h Handler) {
	if p.esc {
		if b == '\\' {
			kind := EventSOSDispatch
			switch p.st {
			case statePm:
				kind = EventPMDispatch
			case stateApc:
				kind = EventAPCDispatch
			}
			h.Handle(Event{Kind: kind, Data: append([]byte(nil), p.strBuf...)})
			p.st = stateGround
		} else {
			p.strBuf = append(p.strBuf, 0x1b, b)
			p.esc = false
		}
		return
	}
	if b == 0x1b {
		p.esc = true
		return
	}
	if len(p.strBuf) < maxStringLen {
		p.strBuf = append(p.strBuf, b)
	}
}
