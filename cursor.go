package kterm

// CursorStyle determines how the cursor is rendered (DECSCUSR).
type CursorStyle int

const (
	CursorBlinkingBlock CursorStyle = iota
	CursorSteadyBlock
	CursorBlinkingUnderline
	CursorSteadyUnderline
	CursorBlinkingBar
	CursorSteadyBar
)

// Cursor tracks position and rendering style (0-based coordinates).
type Cursor struct {
	X, Y        int
	Style       CursorStyle
	Visible     bool
	WrapPending bool // deferred-wrap flag, see Session.WriteChar
}

// NewCursor returns a cursor at (0,0), visible, blinking block.
func NewCursor() *Cursor {
	return &Cursor{Style: CursorBlinkingBlock, Visible: true}
}

// CellTemplate holds the attributes applied to newly written characters,
// mutated by SGR sequences.
type CellTemplate struct {
	Fg, Bg, UnderlineColor Color
	UnderlineStyle         UnderlineStyle
	Flags                  CellFlags
	Hyperlink              *Hyperlink // active OSC 8 link, nil when none
}

// NewCellTemplate returns a blank template (default colors, no flags).
func NewCellTemplate() CellTemplate {
	return CellTemplate{Fg: DefaultColor, Bg: DefaultColor, UnderlineColor: DefaultColor}
}

// Apply stamps the template's attributes onto a cell, leaving Char unset.
func (t CellTemplate) Apply(c *Cell) {
	c.Fg, c.Bg, c.UnderlineColor = t.Fg, t.Bg, t.UnderlineColor
	c.UnderlineStyle = t.UnderlineStyle
	c.Flags = (c.Flags &^ CellDirty) | t.Flags
	c.Hyperlink = t.Hyperlink
}

// SavedCursorState is what save_cursor/restore_cursor push and pop
// (spec.md §4.4): position, attributes, charset state, and the autowrap /
// origin mode flags in effect at save time.
type SavedCursorState struct {
	X, Y         int
	Template     CellTemplate
	OriginMode   bool
	AutoWrap     bool
	CharsetIndex CharsetIndex
	Charsets     [4]Charset
}

const maxSavedCursorDepth = 10

// CursorStack is the bounded save/restore stack (spec.md "depth bounded
// (e.g., 10)").
type CursorStack struct {
	entries []SavedCursorState
}

// Push saves st, dropping the oldest entry if the stack is already at
// maxSavedCursorDepth (matches xterm's behavior of simply not growing
// further rather than erroring).
func (s *CursorStack) Push(st SavedCursorState) {
	if len(s.entries) >= maxSavedCursorDepth {
		copy(s.entries, s.entries[1:])
		s.entries[len(s.entries)-1] = st
		return
	}
	s.entries = append(s.entries, st)
}

// Pop removes and returns the most recently saved state. ok is false on an
// empty stack, in which case the caller should restore defaults.
func (s *CursorStack) Pop() (SavedCursorState, bool) {
	if len(s.entries) == 0 {
		return SavedCursorState{}, false
	}
	st := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return st, true
}
