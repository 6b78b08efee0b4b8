package kterm

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/kterm/kterm/internal/parser"
)

// Handle implements parser.Handler: it is the seam spec.md §4.3 describes
// as "the final-byte dispatch is a table lookup from (state, final,
// private-marker) → handler," translating ParsedEvents into the
// operation-abstract calls spec.md §4.4 names (write_char, set_mode, ...).
func (s *Session) Handle(ev parser.Event) {
	switch ev.Kind {
	case parser.EventPrint:
		s.WriteChar(ev.Rune)
	case parser.EventExecute:
		s.handleControl(byte(ev.Rune))
	case parser.EventEscDispatch:
		s.handleEsc(ev)
	case parser.EventCSIDispatch:
		s.handleCSI(ev)
	case parser.EventOSCDispatch:
		s.handleOSC(ev.Data)
	case parser.EventDCSDispatch:
		s.handleDCS(ev)
	case parser.EventAPCDispatch:
		s.handleAPC(ev.Data)
	case parser.EventSOSDispatch, parser.EventPMDispatch:
		// Accepted and discarded: spec.md names no SOS/PM-carried
		// sub-protocol (Gateway/Sixel/ReGIS/Kitty all ride DCS or APC).
	case parser.EventError:
		s.log.Warnf("parser", "%s", ev.Err)
	}
}

func (s *Session) handleControl(b byte) {
	switch b {
	case 0x07: // BEL
		if s.bell != nil {
			s.bell.Ring()
		}
	case 0x08:
		s.Backspace()
	case 0x09:
		s.Tab(1)
	case 0x0a, 0x0b, 0x0c:
		s.LineFeed()
	case 0x0d:
		s.CarriageReturn()
	case 0x0e:
		s.ShiftOut()
	case 0x0f:
		s.ShiftIn()
	}
}

func (s *Session) handleEsc(ev parser.Event) {
	if len(ev.Inter) == 1 {
		switch ev.Inter[0] {
		case '(':
			s.ConfigureCharset(CharsetIndexG0, charsetFromFinal(ev.Final))
			return
		case ')':
			s.ConfigureCharset(CharsetIndexG1, charsetFromFinal(ev.Final))
			return
		case '*':
			s.ConfigureCharset(CharsetIndexG2, charsetFromFinal(ev.Final))
			return
		case '+':
			s.ConfigureCharset(CharsetIndexG3, charsetFromFinal(ev.Final))
			return
		}
	}
	switch ev.Final {
	case 'D':
		s.Index()
	case 'M':
		s.ReverseIndex()
	case 'E':
		s.carriageReturnLineFeed()
	case 'H':
		s.HorizontalTabSet()
	case '7':
		s.SaveCursor()
	case '8':
		s.RestoreCursor()
	case 'c':
		s.FullReset()
	case '=':
		s.SetMode(ModeApplicationKeypad)
	case '>':
		s.ResetMode(ModeApplicationKeypad)
	}
}

func charsetFromFinal(final byte) Charset {
	switch final {
	case '0':
		return CharsetLineDrawing
	case 'A':
		return CharsetUK
	case '<', '>':
		return CharsetUserDefined
	default:
		return CharsetASCII
	}
}

func (s *Session) handleCSI(ev parser.Event) {
	p := ev.Params
	n1 := func(def int) int { return p.GetOrDefaultWhenZero(0, def) }

	if ev.Private == '?' && ev.Final != 'u' {
		s.handlePrivateModeCSI(ev, p)
		return
	}
	if ev.Private == '>' || ev.Private == '<' || ev.Private == '=' || ev.Private == '?' {
		s.handleKittyKeyboardCSI(ev, p)
		return
	}

	switch ev.Final {
	case 'A':
		s.MoveCursor(0, -n1(1))
	case 'B':
		s.MoveCursor(0, n1(1))
	case 'C':
		s.MoveCursor(n1(1), 0)
	case 'D':
		s.MoveCursor(-n1(1), 0)
	case 'E':
		s.MoveCursor(0, n1(1))
		s.CarriageReturn()
	case 'F':
		s.MoveCursor(0, -n1(1))
		s.CarriageReturn()
	case 'G', '`':
		s.SetCursorCol(n1(1) - 1)
	case 'H', 'f':
		s.SetCursor(n1(1)-1, p.GetOrDefaultWhenZero(1, 1)-1)
	case 'I':
		s.Tab(n1(1))
	case 'J':
		s.EraseInDisplay(EraseMode(p.Get(0, 0)))
	case 'K':
		s.EraseInLine(EraseMode(p.Get(0, 0)))
	case 'L':
		s.InsertLines(n1(1))
	case 'M':
		s.DeleteLines(n1(1))
	case 'P':
		s.DeleteChars(n1(1))
	case 'S':
		s.ScrollUp(n1(1))
	case 'T':
		s.ScrollDown(n1(1))
	case 'X':
		s.EraseChars(n1(1))
	case 'Z':
		// CBT: back-tab, n reverse tab stops.
		for i := 0; i < n1(1); i++ {
			s.cursor.X = s.activeGrid().PrevTabStop(s.cursor.X)
		}
	case '@':
		s.InsertBlank(n1(1))
	case 'a':
		s.MoveCursor(n1(1), 0)
	case 'd':
		s.SetCursorRow(n1(1) - 1)
	case 'e':
		s.MoveCursor(0, n1(1))
	case 'g':
		switch p.Get(0, 0) {
		case 0:
			// TBC: clear the tab stop at the cursor's column.
			s.activeGrid().ClearTabStop(s.cursor.X)
		case 3:
			s.activeGrid().ClearAllTabStops()
		}
	case 'h':
		s.SetMode(modeFromCSI(p.Get(0, 0)))
	case 'l':
		s.ResetMode(modeFromCSI(p.Get(0, 0)))
	case 'm':
		s.handleSGR(p)
	case 'n':
		s.handleDSR(p.Get(0, 0))
	case 'q':
		if len(ev.Inter) == 1 && ev.Inter[0] == '"' {
			s.SetProtection(p.Get(0, 0) == 1 || p.Get(0, 0) == 2)
		}
	case 'r':
		s.SetScrollRegion(n1(1)-1, p.GetOrDefaultWhenZero(1, s.rows)-1)
	case 's':
		if s.leftRightEnabled {
			s.SetLeftRightMargins(n1(1)-1, p.GetOrDefaultWhenZero(1, s.cols)-1)
		} else {
			s.SaveCursor()
		}
	case 't':
		s.handleWindowOp(p)
	case 'u':
		s.RestoreCursor()
	case 'v':
		if len(ev.Inter) == 1 && ev.Inter[0] == '$' {
			s.handleDECCRA(p)
		}
	}
}

// handleDECCRA implements DECCRA, `CSI Pts;Pls;Pbs;Prs;Pps;Ptd;Pld;Ppd $ v`:
// copy the rectangle (Pts,Pls)-(Pbs,Prs) from the source page to
// (Ptd,Pld) on the destination page. Only one page is modeled, so Pps and
// Ppd are accepted and ignored. Enqueues through CopyRect so a queued
// Resize ahead of it clips or drops it the same as any other copy
// (spec.md §8 scenario 6).
func (s *Session) handleDECCRA(p *parser.Params) {
	top := p.GetOrDefaultWhenZero(0, 1) - 1
	left := p.GetOrDefaultWhenZero(1, 1) - 1
	bottom := p.GetOrDefaultWhenZero(2, s.rows) - 1
	right := p.GetOrDefaultWhenZero(3, s.cols) - 1
	dstTop := p.GetOrDefaultWhenZero(5, 1) - 1
	dstLeft := p.GetOrDefaultWhenZero(6, 1) - 1

	w, h := right-left+1, bottom-top+1
	if w <= 0 || h <= 0 {
		return
	}
	s.CopyRect(top, left, dstTop, dstLeft, w, h)
}

func modeFromCSI(n int) Mode {
	switch n {
	case 4:
		return ModeInsert
	case 20:
		return 0 // LNM, not modeled as a grid-affecting mode here
	default:
		return 0
	}
}

func (s *Session) handlePrivateModeCSI(ev parser.Event, p *parser.Params) {
	set := ev.Final == 'h'
	for i := 0; i < p.Len(); i++ {
		switch p.Get(i, 0) {
		case 1:
			s.toggleMode(ModeCursorKeys, set)
		case 3:
			// DECCOLM only actually resizes the grid when DECSET 40 has
			// allowed it (spec.md §8 scenario 6's resize-hardening
			// trigger); otherwise it's recorded as a no-op mode bit.
			if s.modes&ModeAllow80132 != 0 {
				if set {
					s.Resize(s.rows, 132)
				} else {
					s.Resize(s.rows, 80)
				}
			}
			s.toggleMode(ModeColumn132, set)
		case 6:
			s.toggleMode(ModeOrigin, set)
			s.SetCursor(0, 0)
		case 7:
			s.toggleMode(ModeAutoWrap, set)
		case 9:
			s.SetMouseMode(boolMouse(set, MouseTrackingX10))
		case 12:
			// cursor blink: rendering concern, not modeled in the core grid.
		case 25:
			s.toggleMode(ModeShowCursor, set)
		case 1000:
			s.SetMouseMode(boolMouse(set, MouseTrackingNormal))
		case 1002:
			s.SetMouseMode(boolMouse(set, MouseTrackingButton))
		case 1003:
			s.SetMouseMode(boolMouse(set, MouseTrackingAny))
		case 1006:
			if set {
				s.SetMouseEncoding(MouseEncodingSGR)
			} else {
				s.SetMouseEncoding(MouseEncodingDefault)
			}
		case 1049:
			if set {
				s.SaveCursor()
				s.EnterAltScreen()
			} else {
				s.ExitAltScreen()
				s.RestoreCursor()
			}
		case 47, 1047:
			if set {
				s.EnterAltScreen()
			} else {
				s.ExitAltScreen()
			}
		case 2004:
			s.toggleMode(ModeBracketedPaste, set)
		case 40:
			s.toggleMode(ModeAllow80132, set)
		case 69:
			s.SetLeftRightMarginsEnabled(set)
		case 80:
			s.toggleMode(ModeSkipProtect, set)
		}
	}
}

func (s *Session) toggleMode(m Mode, set bool) {
	if set {
		s.SetMode(m)
	} else {
		s.ResetMode(m)
	}
}

func boolMouse(set bool, m MouseTrackingMode) MouseTrackingMode {
	if set {
		return m
	}
	return MouseTrackingNone
}

// handleKittyKeyboardCSI implements the Kitty keyboard protocol's push
// (`CSI > flags u`), pop (`CSI < n u`), set (`CSI = flags ; mode u`), and
// query (`CSI ? u`) forms (spec.md §4.3, scenario 8).
func (s *Session) handleKittyKeyboardCSI(ev parser.Event, p *parser.Params) {
	if ev.Final != 'u' {
		return
	}
	switch ev.Private {
	case '>':
		s.PushKittyKeyboard(KittyKeyboardFlags(p.Get(0, 0)))
	case '<':
		n := p.Get(0, 1)
		if n <= 0 {
			n = 1
		}
		s.PopKittyKeyboard(n)
	case '=':
		s.kittyFlags[len(s.kittyFlags)-1] = KittyKeyboardFlags(p.Get(0, 0))
	case '?':
		s.writeResponseString(fmt.Sprintf("\x1b[?%du", s.CurrentKittyKeyboard()))
	}
}

func (s *Session) handleSGR(p *parser.Params) {
	if p.Len() == 0 {
		s.ResetSGR()
		return
	}
	i := 0
	for i < p.Len() {
		code := p.Get(i, 0)
		switch {
		case code == 0:
			s.ResetSGR()
		case code == 1:
			s.SetAttrFlag(CellBold)
		case code == 2:
			s.SetAttrFlag(CellFaint)
		case code == 3:
			s.SetAttrFlag(CellItalic)
		case code == 4:
			s.SetUnderlineStyle(UnderlineSingle)
		case code == 5:
			s.SetAttrFlag(CellBlinkSlow)
		case code == 6:
			s.SetAttrFlag(CellBlinkFast)
		case code == 7:
			s.SetAttrFlag(CellReverse)
		case code == 8:
			s.SetAttrFlag(CellConceal)
		case code == 9:
			s.SetAttrFlag(CellStrike)
		case code == 21:
			s.SetUnderlineStyle(UnderlineDouble)
		case code == 22:
			s.ClearAttrFlag(CellBold | CellFaint)
		case code == 23:
			s.ClearAttrFlag(CellItalic)
		case code == 24:
			s.SetUnderlineStyle(UnderlineNone)
		case code == 25:
			s.ClearAttrFlag(CellBlinkSlow | CellBlinkFast)
		case code == 27:
			s.ClearAttrFlag(CellReverse)
		case code == 28:
			s.ClearAttrFlag(CellConceal)
		case code == 29:
			s.ClearAttrFlag(CellStrike)
		case code >= 30 && code <= 37:
			s.SetForeground(PaletteColor(uint8(code - 30)))
		case code == 38:
			c, consumed := parseExtendedColor(p, i)
			s.SetForeground(c)
			i += consumed
		case code == 39:
			s.SetForeground(DefaultColor)
		case code >= 40 && code <= 47:
			s.SetBackground(PaletteColor(uint8(code - 40)))
		case code == 48:
			c, consumed := parseExtendedColor(p, i)
			s.SetBackground(c)
			i += consumed
		case code == 49:
			s.SetBackground(DefaultColor)
		case code == 58:
			c, consumed := parseExtendedColor(p, i)
			s.SetUnderlineColor(c)
			i += consumed
		case code == 59:
			s.SetUnderlineColor(DefaultColor)
		case code >= 90 && code <= 97:
			s.SetForeground(PaletteColor(uint8(code-90) + 8))
		case code >= 100 && code <= 107:
			s.SetBackground(PaletteColor(uint8(code-100) + 8))
		}
		i++
	}
}

// parseExtendedColor reads the `38`/`48`/`58` extended-color syntax
// starting at top-level parameter index i (either colon sub-parameters
// `38:2:r:g:b` or semicolon-separated legacy `38;2;r;g;b`), returning the
// resolved Color and how many extra top-level parameters it consumed in
// the legacy form (0 for the colon form, since those live in SubParams).
func parseExtendedColor(p *parser.Params, i int) (Color, int) {
	if subs := p.SubParams(i); len(subs) > 0 {
		switch subs[0] {
		case 2:
			if len(subs) >= 4 {
				return RGBColor(uint8(subs[1]), uint8(subs[2]), uint8(subs[3])), 0
			}
		case 5:
			if len(subs) >= 2 {
				return PaletteColor(uint8(subs[1])), 0
			}
		}
		return DefaultColor, 0
	}
	kind := p.Get(i+1, -1)
	switch kind {
	case 2:
		r, g, b := p.Get(i+2, 0), p.Get(i+3, 0), p.Get(i+4, 0)
		return RGBColor(uint8(r), uint8(g), uint8(b)), 4
	case 5:
		idx := p.Get(i+2, 0)
		return PaletteColor(uint8(idx)), 2
	}
	return DefaultColor, 0
}

func (s *Session) handleDSR(n int) {
	switch n {
	case 5:
		s.writeResponseString("\x1b[0n")
	case 6:
		s.writeResponseString(fmt.Sprintf("\x1b[%d;%dR", s.cursor.Y+1, s.cursor.X+1))
	}
}

func (s *Session) handleWindowOp(p *parser.Params) {
	switch p.Get(0, 0) {
	case 18:
		s.writeResponseString(fmt.Sprintf("\x1b[8;%d;%dt", s.rows, s.cols))
	case 19:
		s.writeResponseString(fmt.Sprintf("\x1b[9;%d;%dt", s.rows, s.cols))
	}
}

// handleOSC dispatches OSC string payloads by numeric prefix (spec.md
// §4.3/§6; scenario 4 is OSC 4 palette set/query).
func (s *Session) handleOSC(data []byte) {
	str := string(data)
	semi := strings.IndexByte(str, ';')
	num := str
	rest := ""
	if semi >= 0 {
		num, rest = str[:semi], str[semi+1:]
	}
	code, err := strconv.Atoi(num)
	if err != nil {
		return
	}
	switch code {
	case 0, 1, 2:
		s.SetTitle(rest)
	case 4:
		s.handleOSC4(rest)
	case 7:
		s.cwd = rest
	case 8:
		s.handleOSC8(rest)
	case 52:
		s.handleOSC52(rest)
	case 104:
		s.handleOSC104(rest)
	case 133, 633:
		// Shell-integration markers (prompt start/end, command output
		// bounds): recorded as a no-op hook point. A host-level renderer
		// that wants prompt regions can intercept this OSC family before
		// it reaches Session; the VT-core contract only needs it parsed
		// without corrupting state, which falling through here satisfies.
	}
}

// handleOSC8 implements hyperlinks: "OSC 8 ; params ; uri ST". params is a
// ':'-separated key=value list; only "id=" is recognized. An empty uri
// closes the currently active link.
func (s *Session) handleOSC8(rest string) {
	parts := strings.SplitN(rest, ";", 2)
	if len(parts) != 2 {
		return
	}
	params, uri := parts[0], parts[1]
	if uri == "" {
		s.SetHyperlink(nil)
		return
	}
	var id string
	for _, kv := range strings.Split(params, ":") {
		if strings.HasPrefix(kv, "id=") {
			id = kv[len("id="):]
		}
	}
	s.SetHyperlink(&Hyperlink{ID: id, URI: uri})
}

func (s *Session) handleOSC4(rest string) {
	if s.palette == nil {
		return
	}
	parts := strings.SplitN(rest, ";", 2)
	if len(parts) != 2 {
		return
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil || idx < 0 || idx > 255 {
		return
	}
	if parts[1] == "?" {
		c := s.palette.Get(uint8(idx))
		s.writeResponseString(fmt.Sprintf("\x1b]4;%d;rgb:%02x/%02x/%02x\x1b\\", idx, c.R, c.G, c.B))
		return
	}
	if c, ok := parseXParseColor(parts[1]); ok {
		s.palette.Set(uint8(idx), c)
	}
}

func (s *Session) handleOSC104(rest string) {
	if s.palette == nil {
		return
	}
	if rest == "" {
		s.palette.ResetAll()
		return
	}
	for _, f := range strings.Split(rest, ";") {
		if idx, err := strconv.Atoi(f); err == nil && idx >= 0 && idx <= 255 {
			s.palette.Reset(uint8(idx))
		}
	}
}

// parseXParseColor parses the `rgb:rr/gg/bb` form OSC 4/10/11 use (an
// XParseColor subset; spec.md scenario 4 exercises exactly this form).
func parseXParseColor(spec string) (RGB, bool) {
	if !strings.HasPrefix(spec, "rgb:") {
		return RGB{}, false
	}
	fields := strings.Split(spec[4:], "/")
	if len(fields) != 3 {
		return RGB{}, false
	}
	var vals [3]uint8
	for i, f := range fields {
		if len(f) > 2 {
			f = f[:2]
		}
		n, err := strconv.ParseUint(f, 16, 16)
		if err != nil {
			return RGB{}, false
		}
		vals[i] = uint8(n)
	}
	return RGB{vals[0], vals[1], vals[2]}, true
}

func (s *Session) handleOSC52(rest string) {
	parts := strings.SplitN(rest, ";", 2)
	if len(parts) != 2 || len(parts[0]) == 0 {
		return
	}
	selector := parts[0][0]
	if s.clipboard == nil {
		s.clipboard = make(map[byte][]byte)
	}
	if parts[1] == "?" {
		var data []byte
		if s.clipHook != nil {
			data = []byte(s.clipHook.Read(selector))
		} else {
			data = s.clipboard[selector]
		}
		s.writeResponseString(fmt.Sprintf("\x1b]52;%c;%s\x1b\\", selector, base64.StdEncoding.EncodeToString(data)))
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return
	}
	s.clipboard[selector] = decoded
	if s.clipHook != nil {
		s.clipHook.Write(selector, decoded)
	}
}

// handleDCS routes a completed DCS passthrough to its sub-parser by final
// byte: Sixel (`q`), ReGIS (`p`), DECRQSS (`$ q`), or Gateway (a literal
// `G` final byte followed by "ATE;..." — the Gateway wire prefix "GATE"
// with its leading byte consumed as the dispatch final, which is put back
// before the payload reaches handleGateway, spec.md §6).
func (s *Session) handleDCS(ev parser.Event) {
	if ev.Final == 'q' && len(ev.Inter) == 1 && ev.Inter[0] == '$' {
		s.handleDECRQSS(ev.Data)
		return
	}
	switch ev.Final {
	case 'q':
		img, err := ParseSixel(s.sixel, ev.Params.All(), ev.Data)
		if err != nil {
			s.log.Warnf("sixel", "%s", err)
			return
		}
		s.placeSixelImage(img)
	case 'p':
		s.regis.Accept(ev.Data)
	case 'G':
		s.handleGateway(append([]byte("G"), ev.Data...))
	}
}

func (s *Session) handleDECRQSS(data []byte) {
	kind := string(data)
	value, ok := s.ReportSetting(kind)
	if !ok {
		s.writeResponseString("\x1bP0$r\x1b\\")
		return
	}
	s.writeResponseString(fmt.Sprintf("\x1bP1$r%s%s\x1b\\", value, kind))
}

// placeSixelImage anchors the decoded raster at the cursor's current cell
// as a CellImage-style overlay; the full image/cell placement bookkeeping
// lives in image.go.
func (s *Session) placeSixelImage(img *SixelImage) {
	if img == nil {
		return
	}
	s.attachSixelOverlay(img)
}

func (s *Session) handleAPC(data []byte) {
	if len(data) == 0 || data[0] != 'G' {
		return
	}
	cmd, err := ParseKittyGraphics(data)
	if err != nil {
		if cmd != nil && cmd.Quiet < 2 {
			s.writeResponseString(FormatKittyResponse(cmd.ImageID, "EINVAL", true))
		}
		return
	}
	s.dispatchKittyCommand(cmd)
}
