package kterm

// tektronixState is the per-session Tektronix 4014 sub-state (spec.md
// §4.9). Like ReGIS, full vector-graphics emulation is out of scope
// (spec.md Non-goals); the session only keeps an active flag and a
// command counter, set by Accept and cleared by reset. No escape sequence
// handled in dispatch.go calls Accept, so the flag stays false.
type tektronixState struct {
	active      bool
	commandsSeen uint64
}

func newTektronixState() *tektronixState {
	return &tektronixState{}
}

func (t *tektronixState) reset() {
	*t = tektronixState{}
}

func (t *tektronixState) Accept(data []byte) {
	t.active = true
	t.commandsSeen++
}
