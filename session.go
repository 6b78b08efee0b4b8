package kterm

import (
	"fmt"

	"github.com/kterm/kterm/internal/klog"
	"github.com/kterm/kterm/internal/parser"
)

// Mode is a bitmask of per-session behavior flags (spec.md §3).
type Mode uint32

const (
	ModeCursorKeys Mode = 1 << iota // DECCKM
	ModeColumn132                   // DECCOLM
	ModeInsert                      // IRM
	ModeOrigin                      // DECOM
	ModeAutoWrap                    // DECAWM
	ModeReverseVideo                // DECSCNM
	ModeBracketedPaste
	ModeApplicationKeypad
	ModeShowCursor
	ModeSkipProtect // skip-protect cursor motion override
	ModeAllow80132  // DECSET 40: permit DECCOLM (mode 3) to actually resize columns
)

// MouseTrackingMode enumerates the xterm mouse reporting protocols.
type MouseTrackingMode uint8

const (
	MouseTrackingNone MouseTrackingMode = iota
	MouseTrackingX10
	MouseTrackingNormal // button press/release (1000)
	MouseTrackingButton // button-event (1002)
	MouseTrackingAny    // any-event (1003)
)

// MouseEncoding enumerates how mouse reports are byte-encoded.
type MouseEncoding uint8

const (
	MouseEncodingDefault MouseEncoding = iota
	MouseEncodingUTF8
	MouseEncodingSGR
)

// KittyKeyboardFlags mirrors the Kitty keyboard protocol's progressive
// enhancement bitmask.
type KittyKeyboardFlags uint8

const (
	KittyDisambiguate KittyKeyboardFlags = 1 << iota
	KittyReportEvents
	KittyReportAlternate
	KittyReportAll
	KittyReportText
)

const maxKittyKeyboardStack = 8

// ProtectionMode is DECSCA's protection attribute state.
type ProtectionMode uint8

const (
	ProtectionOff ProtectionMode = iota
	ProtectionOn
)

// Session is one logically independent terminal instance: a grid pair,
// cursor, margins, charsets, modes, SGR state, parser scratch, op queue,
// and graphics sub-state (spec.md §3 "Session").
type Session struct {
	index int

	cols, rows int
	primary    *Grid
	alternate  *Grid
	onAlt      bool

	cursor      *Cursor
	savedStack  CursorStack
	savedPrimary *SavedCursorState

	scrollTop, scrollBottom int
	marginLeft, marginRight int
	leftRightEnabled        bool

	charsets      [4]Charset
	activeCharset CharsetIndex
	glLocked      CharsetIndex // GL after SI/SO
	softFont      map[rune]rune

	modes Mode
	mouseMode MouseTrackingMode
	mouseEncoding MouseEncoding
	kittyFlags    []KittyKeyboardFlags // push/pop stack; top = [len-1]

	template CellTemplate
	protection ProtectionMode

	title      string
	titleStack []string

	ops     *OpQueue
	flusher *Flusher

	input   InputInbox
	resp    *ResponseRing
	parse   *parser.Parser

	sixel     *sixelState
	regis     *regisState
	tektronix *tektronixState
	kittyImages *kittyImageTable

	directInput bool

	generation uint32

	net *SessionNetAttachment

	// palette is a non-owning link to the multiplexer's shared 256-color
	// table; OSC 4/104 mutate it in place when set (spec.md §3 "Terminal
	// ... palette"). nil until a multiplexer attaches the session.
	palette *Palette

	cwd       string            // OSC 7 working directory (file:// URI)
	clipboard map[byte][]byte   // OSC 52 selection buffers, keyed by selector byte

	bell       BellProvider
	titleHook  TitleProvider
	clipHook   ClipboardProvider
	recorder   RecordingProvider

	gatewayCB   GatewayCallback
	rawdumpSink *Session // RAWDUMP;START target, nil when not mirroring

	// attachTarget redirects WriteBytes into another session's parser,
	// the framed-protocol ATTACH packet's effect (spec.md §4.5). nil
	// means bytes feed this session's own parser, as usual.
	attachTarget *Session

	log klog.Logger

	// printRun records the extent of the in-flight contiguous PrintChar
	// run; each rune of the run is still queued as its own Op (see
	// pushPrintChar).
	printRun *printRunState
}

type printRunState struct {
	row, startCol, endCol int
	template              CellTemplate
}

// SessionNetAttachment is the non-owning link from a Session to its
// network connection, if any (spec.md §3 "network attachment pointer").
type SessionNetAttachment struct {
	Attached bool
	// ConnID identifies the knet.Connection owning this session's socket;
	// the concrete connection lives in the knet package to avoid a
	// structural cycle between kterm and knet (spec.md §9).
	ConnID string
}

// NewSession allocates a session with the given geometry and scrollback
// depth, backed by log for diagnostics.
func NewSession(index, rows, cols, scrollbackRows int, log klog.Logger) *Session {
	s := &Session{
		index:  index,
		cols:   cols,
		rows:   rows,
		primary:   NewGrid(rows, cols, scrollbackRows),
		alternate: NewGrid(rows, cols, 0),
		cursor:    NewCursor(),
		scrollTop: 0, scrollBottom: rows - 1,
		marginLeft: 0, marginRight: cols - 1,
		charsets:      [4]Charset{CharsetASCII, CharsetASCII, CharsetASCII, CharsetASCII},
		template:      NewCellTemplate(),
		modes:         ModeAutoWrap | ModeShowCursor,
		ops:           NewOpQueue(log),
		flusher:       &Flusher{MaxOpsPerFlush: 256},
		sixel:         newSixelState(),
		regis:         newRegisState(),
		tektronix:     newTektronixState(),
		kittyImages:   newKittyImageTable(),
		resp:          NewResponseRing(defaultResponseRingSize),
		input:         NewInputInbox(defaultInputRingSize),
		parse:         parser.New(),
		log:           log,
	}
	s.kittyFlags = append(s.kittyFlags, 0)
	return s
}

// WriteBytes feeds raw terminal-bound bytes (e.g. a pty's stdout) through
// the session's parser, dispatching each completed event against the
// session's own state (spec.md §4.3's "Feed" entry point, wired per
// session rather than shared, since each session owns one parser).
func (s *Session) WriteBytes(data []byte) {
	if s.recorder != nil {
		s.recorder.Record(data)
	}
	if s.rawdumpSink != nil {
		s.rawdumpSink.WriteBytes(data)
	}
	if s.attachTarget != nil {
		s.attachTarget.WriteBytes(data)
		return
	}
	s.parse.Feed(data, s)
}

// dispatchInputEvent translates one front-end InputEvent into either
// response bytes (keys, mouse) or a direct state change (window resize,
// focus, paste), per spec.md §4.6's "consumer drains ... calls the
// reverse-parser translator and enqueues bytes into the active session's
// response ring." In direct-input mode, key events instead mutate the
// grid locally (local echo) rather than producing response bytes
// (spec.md §4.7 "Direct-input mode").
func (s *Session) dispatchInputEvent(ev InputEvent) {
	switch ev.Kind {
	case InputKey:
		if s.directInput {
			s.echoKeyLocally(ev.Key)
			return
		}
		bytes := parser.Encode(int32(ev.Key.Keycode), keyModsToParserMods(ev.Key.Modifiers), ev.Key.UTF8, s.encodeMode())
		if len(bytes) > 0 {
			s.writeResponse(bytes)
		}
	case InputMouse:
		if bytes, ok := encodeMouseEvent(ev.Mouse, s.mouseMode, s.mouseEncoding); ok {
			s.writeResponse(bytes)
		}
	case InputWindow:
		switch ev.Window.Kind {
		case WindowResize:
			s.Resize(ev.Window.Rows, ev.Window.Cols)
			s.Flush()
		case WindowPaste:
			if s.HasMode(ModeBracketedPaste) {
				s.writeResponseString("\x1b[200~")
				s.writeResponse(ev.Window.Paste)
				s.writeResponseString("\x1b[201~")
			} else {
				s.writeResponse(ev.Window.Paste)
			}
		}
	}
}

func (s *Session) encodeMode() parser.EncodeMode {
	return parser.EncodeMode{
		ApplicationCursorKeys: s.HasMode(ModeCursorKeys),
		ApplicationKeypad:     s.HasMode(ModeApplicationKeypad),
		KittyFlags:            uint8(s.CurrentKittyKeyboard()),
	}
}

func keyModsToParserMods(m KeyModifiers) uint8 {
	var out uint8
	if m&ModShift != 0 {
		out |= parser.ModShift
	}
	if m&ModAlt != 0 {
		out |= parser.ModAlt
	}
	if m&ModCtrl != 0 {
		out |= parser.ModCtrl
	}
	if m&ModMeta != 0 {
		out |= parser.ModSuper
	}
	return out
}

// echoKeyLocally handles a key event in direct-input mode: printable runes
// are written straight to the grid, a handful of control keys move the
// cursor, everything else is ignored (spec.md §4.7 "mutate the grid
// locally (local echo, cursor motion)").
func (s *Session) echoKeyLocally(k KeyEvent) {
	if k.UTF8 != "" {
		for _, r := range k.UTF8 {
			s.WriteChar(r)
		}
		return
	}
	switch k.Keycode {
	case parser.KeyLeft:
		s.MoveCursor(-1, 0)
	case parser.KeyRight:
		s.MoveCursor(1, 0)
	case parser.KeyUp:
		s.MoveCursor(0, -1)
	case parser.KeyDown:
		s.MoveCursor(0, 1)
	case parser.KeyBackspace:
		s.Backspace()
	case parser.KeyEnter:
		s.carriageReturnLineFeed()
	default:
		if k.Keycode >= 0x20 && k.Keycode < 0x110000 {
			s.WriteChar(rune(k.Keycode))
		}
	}
}

// encodeMouseEvent translates a MouseEvent into an xterm mouse-reporting
// escape sequence per the session's active tracking mode/encoding, or
// ok=false if mouse tracking is off.
func encodeMouseEvent(m MouseEvent, mode MouseTrackingMode, enc MouseEncoding) ([]byte, bool) {
	if mode == MouseTrackingNone {
		return nil, false
	}
	btn := m.Button
	if m.Wheel != 0 {
		btn = 64
		if m.Wheel < 0 {
			btn = 65
		}
	}
	var mods int
	if m.Modifiers&ModShift != 0 {
		mods |= 4
	}
	if m.Modifiers&ModAlt != 0 {
		mods |= 8
	}
	if m.Modifiers&ModCtrl != 0 {
		mods |= 16
	}
	cb := btn | mods

	if enc == MouseEncodingSGR {
		return []byte(fmt.Sprintf("\x1b[<%d;%d;%dM", cb, m.X+1, m.Y+1)), true
	}
	// Legacy X10/UTF8 encoding (both written as single X10 bytes here):
	// coordinates clamp to 223 (255-32), so a coordinate byte is at most 255.
	clamp := func(v int) byte {
		if v > 223 {
			v = 223
		}
		return byte(32 + v)
	}
	return []byte{0x1b, '[', 'M', byte(32 + cb), clamp(m.X + 1), clamp(m.Y + 1)}, true
}

// SetBellProvider, SetTitleProvider, SetClipboardProvider, and
// SetRecordingProvider attach optional host hooks; passing nil detaches.
func (s *Session) SetBellProvider(p BellProvider)           { s.bell = p }
func (s *Session) SetTitleProvider(p TitleProvider)         { s.titleHook = p }
func (s *Session) SetClipboardProvider(p ClipboardProvider) { s.clipHook = p }
func (s *Session) SetRecordingProvider(p RecordingProvider) { s.recorder = p }

func (s *Session) activeGrid() *Grid {
	if s.onAlt {
		return s.alternate
	}
	return s.primary
}

func (s *Session) Grid() *Grid { return s.activeGrid() }

// SetPalette attaches the multiplexer's shared color table so OSC 4/104
// can mutate it; passing nil detaches (spec.md §4.5's multiplexer owns the
// palette, not the session).
func (s *Session) SetPalette(p *Palette) { s.palette = p }

func (s *Session) Palette() *Palette { return s.palette }

func (s *Session) Cursor() *Cursor { return s.cursor }

func (s *Session) Flush() { s.flusher.Flush(s) }

func (s *Session) QueueLen() int { return s.ops.Len() }

// --- cursor motion -----------------------------------------------------

func (s *Session) clampCursor() {
	if s.cursor.X < 0 {
		s.cursor.X = 0
	}
	if s.cursor.X >= s.cols {
		s.cursor.X = s.cols - 1
	}
	if s.cursor.Y < 0 {
		s.cursor.Y = 0
	}
	if s.cursor.Y >= s.rows {
		s.cursor.Y = s.rows - 1
	}
}

// originTop/originBottom/originLeft/originRight return the bounds cursor
// motion operates within, honoring DECOM (origin mode) per spec.md §4.4.
func (s *Session) originTop() int {
	if s.modes&ModeOrigin != 0 {
		return s.scrollTop
	}
	return 0
}
func (s *Session) originBottom() int {
	if s.modes&ModeOrigin != 0 {
		return s.scrollBottom
	}
	return s.rows - 1
}

// SetCursor moves the cursor to (row, col) in the coordinate system
// selected by DECOM, clamped to bounds, with skip-protect applied if
// enabled (spec.md §4.4).
func (s *Session) SetCursor(row, col int) {
	top, bottom := s.originTop(), s.originBottom()
	y := top + row
	if y > bottom {
		y = bottom
	}
	x := col
	if x >= s.cols {
		x = s.cols - 1
	}
	if x < 0 {
		x = 0
	}
	s.cursor.X, s.cursor.Y = x, y
	s.cursor.WrapPending = false
	s.applySkipProtect(0)
	s.clampCursor()
}

func (s *Session) SetCursorCol(col int) { s.SetCursor(s.logicalRow(), col) }
func (s *Session) SetCursorRow(row int) { s.SetCursor(row, s.cursor.X) }

func (s *Session) logicalRow() int {
	if s.modes&ModeOrigin != 0 {
		return s.cursor.Y - s.scrollTop
	}
	return s.cursor.Y
}

// MoveCursor moves the cursor by (dx, dy), clamping to the active
// scrolling region's bounds when the cursor starts inside the region (to
// the grid's bounds otherwise) and applying skip-protect.
func (s *Session) MoveCursor(dx, dy int) {
	inRegion := s.cursor.Y >= s.scrollTop && s.cursor.Y <= s.scrollBottom
	s.cursor.X += dx
	s.cursor.Y += dy
	s.clampCursor()
	if inRegion && s.cursor.Y < s.scrollTop {
		s.cursor.Y = s.scrollTop
	}
	if inRegion && s.cursor.Y > s.scrollBottom {
		s.cursor.Y = s.scrollBottom
	}
	s.cursor.WrapPending = false
	dir := 0
	switch {
	case dx > 0:
		dir = 1
	case dx < 0:
		dir = -1
	}
	s.applySkipProtect(dir)
}

// applySkipProtect steps the cursor through a run of PROTECTED cells in
// direction dir (+1 right, -1 left; 0, used by absolute and vertical moves,
// steps right) when ModeSkipProtect is set, stopping at the first
// unprotected cell or the grid edge (spec.md §4.4, §8 "Protection"
// invariant).
func (s *Session) applySkipProtect(dir int) {
	if s.modes&ModeSkipProtect == 0 {
		return
	}
	if dir == 0 {
		dir = 1
	}
	g := s.activeGrid()
	for {
		c := g.Cell(s.cursor.Y, s.cursor.X)
		if c == nil || !c.IsProtected() {
			return
		}
		next := s.cursor.X + dir
		if next < 0 || next >= s.cols {
			return
		}
		s.cursor.X = next
	}
}

// --- writing -------------------------------------------------------------

// WriteChar writes r at the cursor, applying the current charset mapping,
// autowrap's deferred-wrap rule, and insert-mode shifting, then queues a
// PrintChar op (one per rune) rather than mutating the grid directly
// (spec.md §4.2, §4.4).
func (s *Session) WriteChar(r rune) {
	cs := s.charsets[s.activeCharset]
	r = translateCharset(cs, r, s.softFont)

	width := runeWidth(r)
	if width == 0 {
		width = 1
	}

	if s.cursor.WrapPending {
		s.carriageReturnLineFeed()
		s.cursor.WrapPending = false
	}

	if s.modes&ModeInsert != 0 {
		s.ops.Push(Op{Kind: OpInsertChars, Row: s.cursor.Y, Col: s.cursor.X, N: width})
	}

	s.pushPrintChar(s.cursor.Y, s.cursor.X, r)

	s.cursor.X += width
	if s.cursor.X > s.marginRightOrCols() {
		if s.modes&ModeAutoWrap != 0 {
			s.cursor.X = s.marginRightOrCols()
			s.cursor.WrapPending = true
		} else {
			s.cursor.X = s.marginRightOrCols()
		}
	}
}

func (s *Session) marginRightOrCols() int {
	if s.leftRightEnabled {
		return s.marginRight
	}
	return s.cols - 1
}

// pushPrintChar queues one PrintChar Op for r. It extends printRun when
// the new cell is contiguous with it (same row, next column, identical
// template) and starts a new run otherwise; the ops of a run are not
// merged, so every rune is its own Op in the queue.
func (s *Session) pushPrintChar(row, col int, r rune) {
	if s.printRun != nil && s.printRun.row == row && s.printRun.endCol == col && s.printRun.template == s.template {
		s.printRun.endCol = col + 1
		s.ops.Push(Op{Kind: OpPrintChar, Row: row, Col: col, Rune: r, Template: s.template})
		return
	}
	s.printRun = &printRunState{row: row, startCol: col, endCol: col + 1, template: s.template}
	s.ops.Push(Op{Kind: OpPrintChar, Row: row, Col: col, Rune: r, Template: s.template})
}

func (s *Session) CarriageReturn() {
	s.cursor.X = 0
	if s.leftRightEnabled {
		s.cursor.X = s.marginLeft
	}
	s.cursor.WrapPending = false
}

func (s *Session) LineFeed() {
	if s.cursor.Y == s.scrollBottom {
		s.ops.Push(Op{Kind: OpScrollUp, Top: s.scrollTop, Bottom: s.scrollBottom + 1, N: 1})
	} else if s.cursor.Y < s.rows-1 {
		s.cursor.Y++
	}
	s.cursor.WrapPending = false
}

func (s *Session) carriageReturnLineFeed() {
	s.CarriageReturn()
	s.LineFeed()
}

func (s *Session) Backspace() {
	if s.cursor.X > 0 {
		s.cursor.X--
	}
	s.cursor.WrapPending = false
}

func (s *Session) Tab(n int) {
	for i := 0; i < n; i++ {
		s.cursor.X = s.activeGrid().NextTabStop(s.cursor.X)
	}
}

func (s *Session) HorizontalTabSet() { s.activeGrid().SetTabStop(s.cursor.X) }

// --- index / reverse index ------------------------------------------------

func (s *Session) Index() {
	if s.cursor.Y == s.scrollBottom {
		s.ops.Push(Op{Kind: OpScrollUp, Top: s.scrollTop, Bottom: s.scrollBottom + 1, N: 1})
	} else if s.cursor.Y < s.rows-1 {
		s.cursor.Y++
	}
}

func (s *Session) ReverseIndex() {
	if s.cursor.Y == s.scrollTop {
		s.ops.Push(Op{Kind: OpScrollDown, Top: s.scrollTop, Bottom: s.scrollBottom + 1, N: 1})
	} else if s.cursor.Y > 0 {
		s.cursor.Y--
	}
}

// --- erase ---------------------------------------------------------------

// EraseMode mirrors the CSI J/K parameter semantics.
type EraseMode int

const (
	EraseToEnd EraseMode = iota
	EraseToStart
	EraseAll
	EraseScrollback
)

func (s *Session) EraseInDisplay(mode EraseMode) {
	s.ops.Push(Op{Kind: OpEraseInDisplay, N: int(mode)})
}

func (s *Session) applyEraseInDisplay(mode int) {
	g := s.activeGrid()
	switch EraseMode(mode) {
	case EraseToEnd:
		g.ClearRowRange(s.cursor.Y, s.cursor.X, s.cols)
		for r := s.cursor.Y + 1; r < s.rows; r++ {
			g.ClearRow(r)
		}
	case EraseToStart:
		g.ClearRowRange(s.cursor.Y, 0, s.cursor.X+1)
		for r := 0; r < s.cursor.Y; r++ {
			g.ClearRow(r)
		}
	case EraseAll:
		g.ClearAll()
	case EraseScrollback:
		g.ClearAll()
	}
}

func (s *Session) EraseInLine(mode EraseMode) {
	s.ops.Push(Op{Kind: OpEraseInLine, Row: s.cursor.Y, N: int(mode)})
}

func (s *Session) applyEraseInLine(row, mode int) {
	g := s.activeGrid()
	switch EraseMode(mode) {
	case EraseToEnd:
		g.ClearRowRange(row, s.cursor.X, s.cols)
	case EraseToStart:
		g.ClearRowRange(row, 0, s.cursor.X+1)
	case EraseAll:
		g.ClearRow(row)
	}
}

func (s *Session) EraseChars(n int) {
	s.ops.Push(Op{Kind: OpFillRectMasked,
		Rect: Rect{Top: s.cursor.Y, Bottom: s.cursor.Y + 1, Left: s.cursor.X, Right: minInt(s.cursor.X+n, s.cols)},
		Mask: FillMask{Char: true, Fg: true, Bg: true, UnderlineColor: true, Style: true, Flags: true},
		Value: NewCell(),
	})
}

// --- insert / delete -------------------------------------------------------

func (s *Session) InsertBlank(n int) {
	s.ops.Push(Op{Kind: OpInsertChars, Row: s.cursor.Y, Col: s.cursor.X, N: n})
}

func (s *Session) DeleteChars(n int) {
	s.ops.Push(Op{Kind: OpDeleteChars, Row: s.cursor.Y, Col: s.cursor.X, N: n})
}

func (s *Session) InsertLines(n int) {
	if s.cursor.Y < s.scrollTop || s.cursor.Y > s.scrollBottom {
		return
	}
	s.ops.Push(Op{Kind: OpInsertLines, Row: s.cursor.Y, Bottom: s.scrollBottom + 1, N: n})
}

func (s *Session) DeleteLines(n int) {
	if s.cursor.Y < s.scrollTop || s.cursor.Y > s.scrollBottom {
		return
	}
	s.ops.Push(Op{Kind: OpDeleteLines, Row: s.cursor.Y, Bottom: s.scrollBottom + 1, N: n})
}

func (s *Session) ScrollUp(n int)   { s.ops.Push(Op{Kind: OpScrollUp, Top: s.scrollTop, Bottom: s.scrollBottom + 1, N: n}) }
func (s *Session) ScrollDown(n int) { s.ops.Push(Op{Kind: OpScrollDown, Top: s.scrollTop, Bottom: s.scrollBottom + 1, N: n}) }

func (s *Session) CopyRect(srcRow, srcCol, dstRow, dstCol, w, h int) {
	s.ops.Push(Op{Kind: OpCopyRect, SrcRow: srcRow, SrcCol: srcCol, DstRow: dstRow, DstCol: dstCol, W: w, H: h})
}

func (s *Session) FillRectMasked(rect Rect, mask FillMask, value Cell) {
	s.ops.Push(Op{Kind: OpFillRectMasked, Rect: rect, Mask: mask, Value: value})
}

// --- margins ---------------------------------------------------------------

func (s *Session) SetScrollRegion(top, bottom int) {
	if top < 0 {
		top = 0
	}
	if bottom >= s.rows {
		bottom = s.rows - 1
	}
	if top >= bottom {
		top, bottom = 0, s.rows-1
	}
	s.scrollTop, s.scrollBottom = top, bottom
	s.SetCursor(0, 0)
}

func (s *Session) SetLeftRightMargins(left, right int) {
	if left < 0 {
		left = 0
	}
	if right >= s.cols {
		right = s.cols - 1
	}
	if left >= right {
		left, right = 0, s.cols-1
	}
	s.marginLeft, s.marginRight = left, right
	s.SetCursor(0, 0)
}

func (s *Session) SetLeftRightMarginsEnabled(on bool) { s.leftRightEnabled = on }

// --- modes -------------------------------------------------------------

func (s *Session) SetMode(m Mode)   { s.modes |= m }
func (s *Session) ResetMode(m Mode) { s.modes &^= m }
func (s *Session) HasMode(m Mode) bool { return s.modes&m != 0 }

func (s *Session) SetMouseMode(m MouseTrackingMode)     { s.mouseMode = m }
func (s *Session) SetMouseEncoding(e MouseEncoding)      { s.mouseEncoding = e }
func (s *Session) PushKittyKeyboard(flags KittyKeyboardFlags) {
	if len(s.kittyFlags) >= maxKittyKeyboardStack {
		copy(s.kittyFlags, s.kittyFlags[1:])
		s.kittyFlags[len(s.kittyFlags)-1] = flags
		return
	}
	s.kittyFlags = append(s.kittyFlags, flags)
}
func (s *Session) PopKittyKeyboard(n int) {
	for i := 0; i < n && len(s.kittyFlags) > 1; i++ {
		s.kittyFlags = s.kittyFlags[:len(s.kittyFlags)-1]
	}
}
func (s *Session) CurrentKittyKeyboard() KittyKeyboardFlags {
	return s.kittyFlags[len(s.kittyFlags)-1]
}

// --- SGR / attributes ----------------------------------------------------

func (s *Session) SetForeground(c Color)      { s.template.Fg = c }
func (s *Session) SetBackground(c Color)      { s.template.Bg = c }
func (s *Session) SetUnderlineColor(c Color)  { s.template.UnderlineColor = c }
func (s *Session) SetUnderlineStyle(u UnderlineStyle) { s.template.UnderlineStyle = u }
func (s *Session) SetAttrFlag(f CellFlags)    { s.template.Flags |= f }
func (s *Session) ClearAttrFlag(f CellFlags)  { s.template.Flags &^= f }
func (s *Session) ResetSGR()                  { s.template = NewCellTemplate() }

// SetHyperlink sets the active hyperlink (OSC 8) stamped onto subsequently
// written cells; nil clears it.
func (s *Session) SetHyperlink(link *Hyperlink) { s.template.Hyperlink = link }
func (s *Session) SetProtection(on bool) {
	if on {
		s.protection = ProtectionOn
		s.template.Flags |= CellProtected
	} else {
		s.protection = ProtectionOff
		s.template.Flags &^= CellProtected
	}
}

// --- charset ---------------------------------------------------------------

func (s *Session) ConfigureCharset(index CharsetIndex, cs Charset) { s.charsets[index] = cs }
func (s *Session) SetActiveCharset(index CharsetIndex)             { s.activeCharset = index }
func (s *Session) ShiftIn()                                        { s.activeCharset = CharsetIndexG0 }
func (s *Session) ShiftOut()                                       { s.activeCharset = CharsetIndexG1 }

// --- save / restore cursor -------------------------------------------------

func (s *Session) SaveCursor() {
	s.savedStack.Push(SavedCursorState{
		X: s.cursor.X, Y: s.cursor.Y,
		Template:     s.template,
		OriginMode:   s.modes&ModeOrigin != 0,
		AutoWrap:     s.modes&ModeAutoWrap != 0,
		CharsetIndex: s.activeCharset,
		Charsets:     s.charsets,
	})
}

func (s *Session) RestoreCursor() {
	st, ok := s.savedStack.Pop()
	if !ok {
		s.cursor.X, s.cursor.Y = 0, 0
		s.template = NewCellTemplate()
		return
	}
	s.cursor.X, s.cursor.Y = st.X, st.Y
	s.template = st.Template
	s.activeCharset = st.CharsetIndex
	s.charsets = st.Charsets
	if st.OriginMode {
		s.modes |= ModeOrigin
	} else {
		s.modes &^= ModeOrigin
	}
	if st.AutoWrap {
		s.modes |= ModeAutoWrap
	} else {
		s.modes &^= ModeAutoWrap
	}
	s.clampCursor()
}

// --- alternate screen ------------------------------------------------------

// IsAlternateScreen reports whether the alternate buffer is active.
func (s *Session) IsAlternateScreen() bool { return s.onAlt }

// EnterAltScreen snapshot-saves the cursor+attrs (not the grid), clears
// the alternate buffer, and points grid ops at it (spec.md §4.4).
func (s *Session) EnterAltScreen() {
	if s.onAlt {
		return
	}
	saved := SavedCursorState{X: s.cursor.X, Y: s.cursor.Y, Template: s.template}
	s.savedPrimary = &saved
	s.alternate.ClearAll()
	s.onAlt = true
	s.cursor.X, s.cursor.Y = 0, 0
}

// ExitAltScreen restores the primary pointer and the saved cursor.
// Scrollback was never appended to while on alt-screen because LineFeed's
// scroll-up op only ever targets s.activeGrid(), and the alternate grid
// has no scrollback ring to push into (spec.md §4.4).
func (s *Session) ExitAltScreen() {
	if !s.onAlt {
		return
	}
	s.onAlt = false
	if s.savedPrimary != nil {
		s.cursor.X, s.cursor.Y = s.savedPrimary.X, s.savedPrimary.Y
		s.template = s.savedPrimary.Template
		s.savedPrimary = nil
	}
}

// --- reset -----------------------------------------------------------------

func (s *Session) FullReset() { s.ops.Push(Op{Kind: OpReset}) }

func (s *Session) applyFullReset() {
	s.primary.ClearAll()
	s.alternate.ClearAll()
	s.onAlt = false
	s.cursor = NewCursor()
	s.scrollTop, s.scrollBottom = 0, s.rows-1
	s.marginLeft, s.marginRight = 0, s.cols-1
	s.leftRightEnabled = false
	s.charsets = [4]Charset{}
	s.activeCharset = CharsetIndexG0
	s.modes = ModeAutoWrap | ModeShowCursor
	s.template = NewCellTemplate()
	s.protection = ProtectionOff
	s.savedStack = CursorStack{}
	s.title = ""
	s.titleStack = nil
	s.sixel.reset()
	s.regis.reset()
	s.tektronix.reset()
	s.kittyImages.reset()
	s.parse.Reset()
	s.cwd = ""
	s.clipboard = nil
}

// --- resize ------------------------------------------------------------

// Resize queues a structural Resize op; it is applied (and the rest of
// the queue re-validated against it) by the Flusher, never inline, so
// in-flight ops from the same burst see a consistent before/after grid
// (spec.md §4.2, §8 scenario 6).
func (s *Session) Resize(rows, cols int) {
	s.ops.Push(Op{Kind: OpResize, NewRows: rows, NewCols: cols, CursorRow: s.cursor.Y})
}

func (s *Session) resizeGrids(rows, cols, cursorRow int) {
	s.primary.Resize(rows, cols, cursorRow)
	s.alternate.Resize(rows, cols, cursorRow)
	s.rows, s.cols = rows, cols
	if s.scrollBottom >= rows {
		s.scrollBottom = rows - 1
	}
	if s.marginRight >= cols {
		s.marginRight = cols - 1
	}
	s.clampCursor()
}

// --- title -----------------------------------------------------------------

func (s *Session) SetTitle(t string) {
	s.title = t
	if s.titleHook != nil {
		s.titleHook.SetTitle(t)
	}
}
func (s *Session) Title() string { return s.title }
func (s *Session) PushTitle() {
	s.titleStack = append(s.titleStack, s.title)
	if s.titleHook != nil {
		s.titleHook.PushTitle()
	}
}
func (s *Session) PopTitle() {
	if n := len(s.titleStack); n > 0 {
		s.title = s.titleStack[n-1]
		s.titleStack = s.titleStack[:n-1]
	}
	if s.titleHook != nil {
		s.titleHook.PopTitle()
	}
}

// --- DECRQSS ---------------------------------------------------------------

// ReportSetting implements the DECRQSS contract of spec.md §4.4: given the
// query's final-byte identity (e.g. "m", "r", "s", "t", "|", `"q`), return
// the value substring to embed in `DCS 1 $ r <value> <final> ST` (the
// caller, handleDECRQSS in dispatch.go, wraps the envelope).
func (s *Session) ReportSetting(kind string) (value string, ok bool) {
	switch kind {
	case "r":
		return fmt.Sprintf("%d;%d", s.scrollTop+1, s.scrollBottom+1), true
	case "s":
		return fmt.Sprintf("%d;%d", s.marginLeft+1, s.marginRight+1), true
	case "t":
		return fmt.Sprintf("%d", s.rows), true
	case "|":
		return fmt.Sprintf("%d", s.cols), true
	case `"q`:
		return fmt.Sprintf("%d", s.protection), true
	case "m":
		return s.sgrReport(), true
	default:
		return "", false
	}
}

func (s *Session) sgrReport() string {
	out := "0"
	if s.template.Flags&CellBold != 0 {
		out += ";1"
	}
	if s.template.Flags&CellFaint != 0 {
		out += ";2"
	}
	if s.template.Flags&CellItalic != 0 {
		out += ";3"
	}
	if s.template.UnderlineStyle != UnderlineNone {
		out += ";4"
	}
	if s.template.Flags&CellReverse != 0 {
		out += ";7"
	}
	return out
}
