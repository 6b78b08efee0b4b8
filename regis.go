package kterm

// regisState is the per-session ReGIS sub-state (spec.md §4.9). ReGIS is
// scoped to "accept and acknowledge the command, track enable/disable
// state" — full vector-graphics rendering is out of scope (spec.md
// Non-goals), so this is a command counter and reset hook, not a
// rasterizer.
type regisState struct {
	enabled     bool
	commandsSeen uint64
}

func newRegisState() *regisState {
	return &regisState{}
}

func (r *regisState) reset() {
	*r = regisState{}
}

// Accept records a ReGIS command payload (the bytes of a DCS `p` ReGIS
// string) without interpreting it, matching the sub-state's acknowledge
// only contract.
func (r *regisState) Accept(data []byte) {
	r.enabled = true
	r.commandsSeen++
}
