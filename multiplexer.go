package kterm

import "github.com/kterm/kterm/internal/klog"

// FontMetrics is a renderer-facing advance-width table, keyed by
// codepoint (spec.md §3 "Terminal ... a font-metrics registry"). The core
// never rasterizes glyphs (spec.md §1 non-goal); it only remembers what a
// host renderer told it about each codepoint's cell-width, for hosts that
// need per-glyph overrides beyond runeWidth's East-Asian-width table.
type FontMetrics struct {
	advances map[rune]float64
}

// NewFontMetrics returns an empty registry; Advance falls back to
// runeWidth for any codepoint with no explicit override.
func NewFontMetrics() *FontMetrics {
	return &FontMetrics{advances: make(map[rune]float64)}
}

// SetAdvance records a host-measured advance width (in cell units) for r.
func (f *FontMetrics) SetAdvance(r rune, cells float64) { f.advances[r] = cells }

// Advance returns r's advance width: the host override if one was
// recorded, else runeWidth's Unicode-derived default.
func (f *FontMetrics) Advance(r rune) float64 {
	if w, ok := f.advances[r]; ok {
		return w
	}
	return float64(runeWidth(r))
}

// Terminal is the multiplexer root (spec.md §4.5): up to MaxSessions
// Sessions, an active-session index, one shared color palette, a
// pluggable response sink, and a font-metrics registry. Created with a
// Config, it owns every Session's lifecycle.
type Terminal struct {
	sessions [MaxSessions]*Session
	active   int

	palette *Palette
	fonts   *FontMetrics

	sink OutputSink
	log  klog.Logger
}

// NewTerminal allocates a Terminal and its first session (index 0),
// configured per cfg. Additional sessions are created lazily via
// OpenSession.
func NewTerminal(cfg Config) *Terminal {
	log := cfg.Logger
	t := &Terminal{
		palette: NewPalette(),
		fonts:   NewFontMetrics(),
		sink:    cfg.ResponseSink,
		log:     log,
	}
	s := t.newSession(0, cfg)
	t.sessions[0] = s
	return t
}

func (t *Terminal) newSession(index int, cfg Config) *Session {
	s := NewSession(index, cfg.Rows, cfg.Cols, cfg.ScrollbackRows, t.log)
	s.SetPalette(t.palette)
	s.sixel.maxWidth, s.sixel.maxHeight = cfg.MaxSixelWidth, cfg.MaxSixelHeight
	s.kittyImages.maxPixels = cfg.MaxKittyImagePixels
	s.flusher.MaxOpsPerFlush = cfg.MaxOpsPerFlush
	if cfg.GatewayCallback != nil {
		s.SetGatewayCallback(cfg.GatewayCallback)
	}
	if t.sink != nil {
		s.ResponseRing().SetSink(t.sink)
	}
	return s
}

// OpenSession allocates the next free session slot, returning its index,
// or -1 if all MaxSessions slots are occupied.
func (t *Terminal) OpenSession(cfg Config) int {
	for i, s := range t.sessions {
		if s == nil {
			t.sessions[i] = t.newSession(i, cfg)
			return i
		}
	}
	return -1
}

// CloseSession tears a session down: drains its queues, zeroizes any
// network credentials, and frees the slot (spec.md §4.5 "destroys all
// sessions on teardown").
func (t *Terminal) CloseSession(index int) {
	if index < 0 || index >= MaxSessions || t.sessions[index] == nil {
		return
	}
	s := t.sessions[index]
	s.ops.Clear()
	s.resp.Drain()
	if s.net != nil {
		s.net.Attached = false
		s.net.ConnID = ""
	}
	t.sessions[index] = nil
	if t.active == index {
		t.active = t.firstOpenSession()
	}
}

func (t *Terminal) firstOpenSession() int {
	for i, s := range t.sessions {
		if s != nil {
			return i
		}
	}
	return -1
}

// Session returns the session at index, or nil if that slot is empty.
func (t *Terminal) Session(index int) *Session {
	if index < 0 || index >= MaxSessions {
		return nil
	}
	return t.sessions[index]
}

// Active returns the currently displayed session, or nil if none is open.
func (t *Terminal) Active() *Session { return t.Session(t.active) }

// ActiveIndex returns the active session's slot index.
func (t *Terminal) ActiveIndex() int { return t.active }

// SetActive switches which session the display renders, if that slot is
// occupied.
func (t *Terminal) SetActive(index int) bool {
	if t.Session(index) == nil {
		return false
	}
	t.active = index
	return true
}

// Palette returns the 256-entry color table shared by every session.
func (t *Terminal) Palette() *Palette { return t.palette }

// Fonts returns the shared font-metrics registry.
func (t *Terminal) Fonts() *FontMetrics { return t.fonts }

// SetOutputSink installs sink on every open session's response ring
// (spec.md §4.6 "On set_output_sink ... any pending bytes ... drained").
func (t *Terminal) SetOutputSink(sink OutputSink) {
	t.sink = sink
	for _, s := range t.sessions {
		if s != nil {
			s.ResponseRing().SetSink(sink)
		}
	}
}

// Attach redirects session `from`'s future WriteBytes traffic into
// session `to`'s parser instead of its own — the framed-protocol ATTACH
// packet's effect (spec.md §4.5). Passing to == from detaches.
func (t *Terminal) Attach(from, to int) bool {
	src, dst := t.Session(from), t.Session(to)
	if src == nil || dst == nil {
		return false
	}
	if from == to {
		src.attachTarget = nil
	} else {
		src.attachTarget = dst
	}
	return true
}

// Broadcast injects text into every open session's input path, Gateway
// EXT;broadcast's effect (spec.md §4.5, §4.7).
func (t *Terminal) Broadcast(text []byte) {
	for _, s := range t.sessions {
		if s != nil {
			s.WriteBytes(text)
		}
	}
}

// DispatchInput drains the active session's input inbox, translating
// each KeyEvent/MouseEvent into response bytes via the reverse parser and
// applying WindowEvents (resize, paste) directly (spec.md §4.6).
func (t *Terminal) DispatchInput() {
	s := t.Active()
	if s == nil {
		return
	}
	for {
		ev, ok := s.input.Pop()
		if !ok {
			return
		}
		s.dispatchInputEvent(ev)
	}
}
