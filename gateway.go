package kterm

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/kterm/kterm/internal/codec"
)

// Gateway protocol parsing lives in the root package rather than a
// separate `gateway` package: every command here needs direct access to
// a *Session (palette, grid, cursor, template), and dispatch.go needs to
// call back into it from handleDCS — a separate package importing
// *Session would create an import cycle with this one.

// GatewayCallback lets a host handle EXT commands the built-in registry
// doesn't recognize (spec.md §4.7 "Unknown extensions fall through to a
// user-registered callback").
type GatewayCallback func(s *Session, ext string, args []string) (result string, handled bool)

// SetGatewayCallback attaches (or, passing nil, detaches) the fallback
// extension handler.
func (s *Session) SetGatewayCallback(cb GatewayCallback) { s.gatewayCB = cb }

// SetDirectInput toggles direct-input mode (spec.md §4.7): while on, key
// events mutate the grid locally instead of generating response bytes.
func (s *Session) SetDirectInput(on bool) { s.directInput = on }
func (s *Session) DirectInput() bool      { return s.directInput }

// handleGateway parses and dispatches one Gateway request payload — the
// bytes between DCS P and ST, always starting with the literal "GATE"
// (dispatch.go's handleDCS reconstructs this after the parser consumes
// the leading 'G' as the DCS final byte).
func (s *Session) handleGateway(data []byte) {
	fields := splitGatewayFields(string(data))
	if len(fields) < 3 || !strings.EqualFold(fields[0], "GATE") {
		return
	}
	class, id := fields[1], fields[2]
	if len(fields) < 4 {
		s.respondGateway(class, id, "ERR;MISSING_COMMAND")
		return
	}
	cmd := strings.ToUpper(fields[3])
	args := fields[4:]

	switch cmd {
	case "SET":
		s.gatewaySet(class, id, args)
	case "GET":
		s.gatewayGet(class, id, args)
	case "RESET":
		s.gatewayReset(class, id, args)
	case "EXT":
		s.gatewayExt(class, id, args)
	case "PIPE":
		s.gatewayPipe(class, id, args)
	case "RAWDUMP":
		s.gatewayRawdump(class, id, args)
	default:
		s.respondGateway(class, id, "ERR;UNKNOWN_COMMAND")
	}
}

func (s *Session) respondGateway(class, id, result string) {
	s.writeResponseString("\x1bPGATE;" + class + ";" + id + ";" + result + "\x1b\\")
}

// splitGatewayFields splits on ';', honoring double-quoted values with
// backslash escapes so a quoted field may itself contain ';' or '"'
// (spec.md §6 "literal ; inside quoted values uses \"...\"").
func splitGatewayFields(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && inQuotes && i+1 < len(s):
			cur.WriteByte(s[i+1])
			i++
		case c == '"':
			inQuotes = !inQuotes
		case c == ';' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// gatewaySet implements SET;<group>;<key>=<val>[;…].
func (s *Session) gatewaySet(class, id string, args []string) {
	if len(args) < 2 {
		s.respondGateway(class, id, "ERR;MISSING_ARGS")
		return
	}
	group := strings.ToLower(args[0])
	n := 0
	for _, kv := range args[1:] {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if s.gatewaySetOne(group, key, val) {
			n++
		}
	}
	s.respondGateway(class, id, "OK;SET;"+strconv.Itoa(n))
}

func (s *Session) gatewaySetOne(group, key, val string) bool {
	switch group {
	case "cursor":
		switch key {
		case "x":
			if v, err := strconv.Atoi(val); err == nil {
				s.SetCursorCol(v)
				return true
			}
		case "y":
			if v, err := strconv.Atoi(val); err == nil {
				s.SetCursorRow(v)
				return true
			}
		case "visible":
			s.cursor.Visible = val == "1" || val == "true"
			return true
		}
	case "sgr":
		switch key {
		case "fg":
			if c, ok := parseXParseColor(val); ok {
				s.SetForeground(RGBColor(c.R, c.G, c.B))
				return true
			}
		case "bg":
			if c, ok := parseXParseColor(val); ok {
				s.SetBackground(RGBColor(c.R, c.G, c.B))
				return true
			}
		case "bold":
			if val == "1" {
				s.SetAttrFlag(CellBold)
			} else {
				s.ClearAttrFlag(CellBold)
			}
			return true
		}
	case "mode":
		if m, ok := gatewayModeByName[strings.ToLower(key)]; ok {
			if val == "1" || val == "true" {
				s.SetMode(m)
			} else {
				s.ResetMode(m)
			}
			return true
		}
	case "palette":
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx > 255 || s.palette == nil {
			return false
		}
		if c, ok := parseXParseColor(val); ok {
			s.palette.Set(uint8(idx), c)
			return true
		}
	case "session":
		if key == "title" {
			s.SetTitle(val)
			return true
		}
	}
	return false
}

var gatewayModeByName = map[string]Mode{
	"autowrap":       ModeAutoWrap,
	"showcursor":     ModeShowCursor,
	"bracketedpaste": ModeBracketedPaste,
	"originmode":     ModeOrigin,
}

// gatewayGet implements GET;<group>, replying OK;<k=v;…>.
func (s *Session) gatewayGet(class, id string, args []string) {
	if len(args) < 1 {
		s.respondGateway(class, id, "ERR;MISSING_ARGS")
		return
	}
	group := strings.ToLower(args[0])
	var kvs []string
	switch group {
	case "cursor":
		kvs = []string{
			"x=" + strconv.Itoa(s.cursor.X),
			"y=" + strconv.Itoa(s.cursor.Y),
			"visible=" + boolStr(s.cursor.Visible),
		}
	case "session":
		kvs = []string{"title=" + s.title, "cols=" + strconv.Itoa(s.cols), "rows=" + strconv.Itoa(s.rows)}
	default:
		s.respondGateway(class, id, "ERR;UNKNOWN_GROUP")
		return
	}
	s.respondGateway(class, id, "OK;"+strings.Join(kvs, ";"))
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// gatewayReset implements RESET;<subsystem>.
func (s *Session) gatewayReset(class, id string, args []string) {
	if len(args) < 1 {
		s.respondGateway(class, id, "ERR;MISSING_ARGS")
		return
	}
	switch strings.ToLower(args[0]) {
	case "cursor":
		s.cursor = NewCursor()
	case "sgr":
		s.ResetSGR()
	case "palette":
		if s.palette != nil {
			s.palette.ResetAll()
		}
	case "regis":
		s.regis.reset()
	case "sixel":
		s.sixel.reset()
	case "all":
		s.FullReset()
	default:
		s.respondGateway(class, id, "ERR;UNKNOWN_SUBSYSTEM")
		return
	}
	s.respondGateway(class, id, "OK")
}

// gatewayExt implements EXT;<ext-name>;<args…>, routing to the built-in
// extension registry and falling through to the user callback.
func (s *Session) gatewayExt(class, id string, args []string) {
	if len(args) < 1 {
		s.respondGateway(class, id, "ERR;MISSING_ARGS")
		return
	}
	ext := strings.ToLower(args[0])
	rest := args[1:]

	switch ext {
	case "direct":
		on := len(rest) == 0 || rest[0] == "1" || strings.EqualFold(rest[0], "on")
		s.SetDirectInput(on)
		s.respondGateway(class, id, "OK;DIRECT;"+boolStr(on))
		return
	case "grid":
		n := s.gatewayExtGrid(rest)
		s.respondGateway(class, id, "OK;QUEUED;"+strconv.Itoa(n))
		return
	case "broadcast", "net", "icat", "voice", "voip":
		// Full implementations live in the knet package / a host-side
		// icat helper; the gateway surface here just acknowledges so a
		// scripted client doesn't stall waiting for a reply.
		if s.gatewayCB != nil {
			if result, handled := s.gatewayCB(s, ext, rest); handled {
				s.respondGateway(class, id, result)
				return
			}
		}
		s.respondGateway(class, id, "ERR;NOT_IMPLEMENTED")
		return
	}

	if s.gatewayCB != nil {
		if result, handled := s.gatewayCB(s, ext, rest); handled {
			s.respondGateway(class, id, result)
			return
		}
	}
	s.respondGateway(class, id, "ERR;UNKNOWN_EXTENSION")
}

// gatewayExtGrid implements the "grid" extension's builtins: fill,
// fill_line, fill_circle, stream, copy and move. The wire grammar is
// `<verb>;sid;...` — sid identifies a session in a multiplexed gateway
// and is otherwise unused here, since handleGateway has already resolved
// the command to this *Session. Coordinates prefixed with '+' or '-' are
// cursor-relative (gatewayCoord).
func (s *Session) gatewayExtGrid(args []string) int {
	if len(args) == 0 {
		return 0
	}
	rest := args[1:]
	switch strings.ToLower(args[0]) {
	case "fill":
		return s.gatewayGridFill(rest)
	case "fill_line":
		return s.gatewayGridFillLine(rest)
	case "fill_circle":
		return s.gatewayGridFillCircle(rest)
	case "stream":
		return s.gatewayGridStream(rest)
	case "copy":
		return s.gatewayGridCopyMove(rest, false)
	case "move":
		return s.gatewayGridCopyMove(rest, true)
	}
	return 0
}

// gatewayGridFill implements fill;sid;x;y;w;h;mask;ch;fg;bg;ul;style;flags.
func (s *Session) gatewayGridFill(a []string) int {
	if len(a) < 5 {
		return 0
	}
	col := s.gatewayCoord(a[1], s.cursor.X)
	row := s.gatewayCoord(a[2], s.cursor.Y)
	w, errW := strconv.Atoi(a[3])
	h, errH := strconv.Atoi(a[4])
	if errW != nil || errH != nil {
		return 0
	}
	mask, value := s.gatewayGridMaskedValue(gatewayArg(a, 5), a, 6)
	s.FillRectMasked(Rect{Top: row, Left: col, Bottom: row + h, Right: col + w}, mask, value)
	return 1
}

// gatewayGridFillLine implements fill_line;sid;x;y;dir;len;mask;ch;fg;bg;
// ul;style;flags[;wrap], filling a directional character span starting
// at (x,y). dir is "h" or "v"; a trailing wrap=1 lets an "h" span
// continue onto the next row once it crosses the grid's right edge.
func (s *Session) gatewayGridFillLine(a []string) int {
	if len(a) < 5 {
		return 0
	}
	col := s.gatewayCoord(a[1], s.cursor.X)
	row := s.gatewayCoord(a[2], s.cursor.Y)
	vertical := strings.EqualFold(a[3], "v")
	length, err := strconv.Atoi(a[4])
	if err != nil || length <= 0 {
		return 0
	}
	mask, value := s.gatewayGridMaskedValue(gatewayArg(a, 5), a, 6)
	wrap := gatewayArg(a, 12) == "1"
	g := s.activeGrid()
	for i := 0; i < length; i++ {
		r, c := row, col
		if vertical {
			r = row + i
		} else if wrap && g.Cols() > 0 {
			total := col + i
			r = row + total/g.Cols()
			c = total % g.Cols()
		} else {
			c = col + i
		}
		if r < 0 || r >= g.Rows() || c < 0 || c >= g.Cols() {
			continue
		}
		s.FillRectMasked(Rect{Top: r, Left: c, Bottom: r + 1, Right: c + 1}, mask, value)
	}
	return 1
}

// gatewayGridFillCircle implements fill_circle;sid;cx;cy;radius;mask;ch;
// fg;bg;ul;style;flags. Inclusion is dx²+dy² <= radius², i.e. the
// boundary ring belongs to the circle.
func (s *Session) gatewayGridFillCircle(a []string) int {
	if len(a) < 4 {
		return 0
	}
	cx := s.gatewayCoord(a[1], s.cursor.X)
	cy := s.gatewayCoord(a[2], s.cursor.Y)
	radius, err := strconv.Atoi(a[3])
	if err != nil || radius < 0 {
		return 0
	}
	mask, value := s.gatewayGridMaskedValue(gatewayArg(a, 4), a, 5)
	g := s.activeGrid()
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		y := cy + dy
		if y < 0 || y >= g.Rows() {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			x := cx + dx
			if x < 0 || x >= g.Cols() {
				continue
			}
			s.FillRectMasked(Rect{Top: y, Left: x, Bottom: y + 1, Right: x + 1}, mask, value)
		}
	}
	return 1
}

// gatewayGridStream implements stream;sid;x;y;w;h;mask;count;compress;
// data. data is standard base64 of a packed little-endian uint32 array
// of codepoints, written starting at (x,y) and column-wrapping at x+w
// (w<=0 defaults to 1, matching the zero-width guard the original
// implementation added after a crash report). Only the CH bit of mask
// is meaningful here — the stream carries codepoints, not per-cell SGR.
func (s *Session) gatewayGridStream(a []string) int {
	if len(a) < 8 {
		return 0
	}
	col := s.gatewayCoord(a[1], s.cursor.X)
	row := s.gatewayCoord(a[2], s.cursor.Y)
	w, errW := strconv.Atoi(a[3])
	if errW != nil {
		return 0
	}
	if w <= 0 {
		w = 1
	}
	bits := gatewayParseMask(a[5])
	count, errC := strconv.Atoi(a[6])
	if errC != nil || count <= 0 {
		return 0
	}
	if compress := gatewayArg(a, 7); compress != "" && compress != "0" {
		return 0
	}
	raw, err := codec.DecodeBase64(strings.Join(a[8:], ";"))
	if err != nil {
		return 0
	}
	mask := FillMask{Char: bits&gatewayMaskChar != 0}
	g := s.activeGrid()
	n := len(raw) / 4
	if n > count {
		n = count
	}
	for i := 0; i < n; i++ {
		code := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		r := row + i/w
		c := col + i%w
		if r < 0 || r >= g.Rows() || c < 0 || c >= g.Cols() {
			continue
		}
		s.FillRectMasked(Rect{Top: r, Left: c, Bottom: r + 1, Right: c + 1}, mask, Cell{Char: rune(code)})
	}
	return 1
}

// gatewayGridCopyMove implements copy;sid;src_x;src_y;dst_x;dst_y;w;h;mode
// and move;sid;src_x;src_y;dst_x;dst_y;w;h;mode. move always clears the
// source rectangle after the copy, except where it overlaps the
// destination — the resolution the original implementation settled on
// for its own ambiguous "mode" bitflag description.
func (s *Session) gatewayGridCopyMove(a []string, move bool) int {
	if len(a) < 7 {
		return 0
	}
	srcCol := s.gatewayCoord(a[1], s.cursor.X)
	srcRow := s.gatewayCoord(a[2], s.cursor.Y)
	dstCol := s.gatewayCoord(a[3], s.cursor.X)
	dstRow := s.gatewayCoord(a[4], s.cursor.Y)
	w, errW := strconv.Atoi(a[5])
	h, errH := strconv.Atoi(a[6])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0
	}
	s.CopyRect(srcRow, srcCol, dstRow, dstCol, w, h)
	if move {
		src := Rect{Top: srcRow, Left: srcCol, Bottom: srcRow + h, Right: srcCol + w}
		dst := Rect{Top: dstRow, Left: dstCol, Bottom: dstRow + h, Right: dstCol + w}
		clearMask := FillMask{Char: true, Fg: true, Bg: true, UnderlineColor: true, Style: true, Flags: true}
		for _, part := range rectSubtract(src, dst) {
			s.FillRectMasked(part, clearMask, NewCell())
		}
	}
	return 1
}

// gatewayGridMaskedValue decodes a mask token (decimal or 0x-prefixed hex)
// plus the trailing ch;fg;bg;ul;style;flags fields starting at a[base],
// any of which may be absent or empty when its bit isn't set in mask.
func (s *Session) gatewayGridMaskedValue(maskTok string, a []string, base int) (FillMask, Cell) {
	bits := gatewayParseMask(maskTok)
	mask := FillMask{
		Char:           bits&gatewayMaskChar != 0,
		Fg:             bits&gatewayMaskFg != 0,
		Bg:             bits&gatewayMaskBg != 0,
		UnderlineColor: bits&gatewayMaskUnderline != 0,
		Style:          bits&gatewayMaskStyle != 0,
		Flags:          bits&gatewayMaskFlags != 0,
	}
	value := NewCell()
	if mask.Char {
		if tok := gatewayArg(a, base); tok != "" {
			if n, err := strconv.Atoi(tok); err == nil {
				value.Char = rune(n)
			} else {
				value.Char = rune(tok[0])
			}
		}
	}
	if mask.Fg {
		if c, ok := gatewayParseColorToken(gatewayArg(a, base+1)); ok {
			value.Fg = c
		}
	}
	if mask.Bg {
		if c, ok := gatewayParseColorToken(gatewayArg(a, base+2)); ok {
			value.Bg = c
		}
	}
	if mask.UnderlineColor {
		if c, ok := gatewayParseColorToken(gatewayArg(a, base+3)); ok {
			value.UnderlineColor = c
		}
	}
	if mask.Style {
		if n, err := strconv.Atoi(gatewayArg(a, base+4)); err == nil {
			value.UnderlineStyle = UnderlineStyle(n)
		}
	}
	if mask.Flags {
		if n, err := strconv.ParseUint(gatewayArg(a, base+5), 0, 32); err == nil {
			value.Flags = CellFlags(n)
		}
	}
	return mask, value
}

const (
	gatewayMaskChar      = 0x1
	gatewayMaskFg        = 0x2
	gatewayMaskBg        = 0x4
	gatewayMaskUnderline = 0x8
	gatewayMaskStyle     = 0x10
	gatewayMaskFlags     = 0x20
)

// gatewayParseMask accepts both decimal ("1") and 0x-prefixed hex ("0x1")
// mask tokens, both of which appear in the wild across EXT;grid clients.
func gatewayParseMask(tok string) uint64 {
	v, err := strconv.ParseUint(tok, 0, 8)
	if err != nil {
		return 0
	}
	return v
}

// gatewayParseColorToken parses the grid extension's compact color
// tokens: "" (skip), "pal:<0-255>", or "rgb:RRGGBB" (six hex digits, no
// separators — distinct from parseXParseColor's xterm "rgb:RR/GG/BB").
func gatewayParseColorToken(tok string) (Color, bool) {
	switch {
	case tok == "":
		return Color{}, false
	case strings.HasPrefix(tok, "pal:"):
		n, err := strconv.Atoi(tok[len("pal:"):])
		if err != nil || n < 0 || n > 255 {
			return Color{}, false
		}
		return PaletteColor(uint8(n)), true
	case strings.HasPrefix(tok, "rgb:"):
		hexStr := tok[len("rgb:"):]
		if len(hexStr) != 6 {
			return Color{}, false
		}
		raw, err := codec.DecodeHex(hexStr)
		if err != nil || len(raw) != 3 {
			return Color{}, false
		}
		return RGBColor(raw[0], raw[1], raw[2]), true
	}
	return Color{}, false
}

// gatewayArg returns args[i], or "" if i is out of range — EXT;grid
// commands may omit trailing fields entirely once no later mask bit
// needs them.
func gatewayArg(args []string, i int) string {
	if i >= 0 && i < len(args) {
		return args[i]
	}
	return ""
}

// rectSubtract returns the axis-aligned pieces of a not covered by b,
// used by gatewayGridCopyMove to clear a move's source rectangle without
// touching whatever part of it the destination overlaps.
func rectSubtract(a, b Rect) []Rect {
	if b.Empty() || !rectsOverlap(a, b) {
		return []Rect{a}
	}
	var out []Rect
	if b.Top > a.Top {
		out = append(out, Rect{Top: a.Top, Left: a.Left, Bottom: b.Top, Right: a.Right})
	}
	if b.Bottom < a.Bottom {
		out = append(out, Rect{Top: b.Bottom, Left: a.Left, Bottom: a.Bottom, Right: a.Right})
	}
	top, bottom := maxInt(a.Top, b.Top), minInt(a.Bottom, b.Bottom)
	if b.Left > a.Left {
		out = append(out, Rect{Top: top, Left: a.Left, Bottom: bottom, Right: b.Left})
	}
	if b.Right < a.Right {
		out = append(out, Rect{Top: top, Left: b.Right, Bottom: bottom, Right: a.Right})
	}
	return out
}

func rectsOverlap(a, b Rect) bool {
	return a.Left < b.Right && b.Left < a.Right && a.Top < b.Bottom && b.Top < a.Bottom
}

func (s *Session) gatewayCoord(tok string, relativeTo int) int {
	if len(tok) > 0 && (tok[0] == '+' || tok[0] == '-') {
		if v, err := strconv.Atoi(tok); err == nil {
			return relativeTo + v
		}
		return relativeTo
	}
	if v, err := strconv.Atoi(tok); err == nil {
		return v
	}
	return relativeTo
}

// gatewayPipe implements PIPE;<format>;<encoding>;<payload>: decode
// payload and feed it back into the session's own input path, as if the
// host had written those bytes itself.
func (s *Session) gatewayPipe(class, id string, args []string) {
	if len(args) < 3 {
		s.respondGateway(class, id, "ERR;MISSING_ARGS")
		return
	}
	format := strings.ToUpper(args[0])
	encoding := strings.ToUpper(args[1])
	payload := strings.Join(args[2:], ";")

	var decoded []byte
	var err error
	switch encoding {
	case "B64":
		decoded, err = codec.DecodeBase64(payload)
	case "HEX":
		decoded, err = codec.DecodeHex(payload)
	case "RAW":
		decoded = []byte(payload)
	default:
		s.respondGateway(class, id, "ERR;UNKNOWN_ENCODING")
		return
	}
	if err != nil {
		s.respondGateway(class, id, "ERR;DECODE_FAILED")
		return
	}
	if format != "BANNER" && format != "VT" {
		s.respondGateway(class, id, "ERR;UNKNOWN_FORMAT")
		return
	}
	s.WriteBytes(decoded)
	s.respondGateway(class, id, "OK;PIPED;"+strconv.Itoa(len(decoded)))
}

// gatewayRawdump implements RAWDUMP;START;SESSION=<n> and
// RAWDUMP;STOP. Wiring <n> to a concrete Session is the multiplexer's
// job (SetRawdumpSink); a lone Session can only stop mirroring.
func (s *Session) gatewayRawdump(class, id string, args []string) {
	if len(args) == 0 {
		s.respondGateway(class, id, "ERR;MISSING_ARGS")
		return
	}
	switch strings.ToUpper(args[0]) {
	case "STOP":
		s.rawdumpSink = nil
		s.respondGateway(class, id, "OK;STOPPED")
	case "START":
		s.respondGateway(class, id, "OK;QUEUED;0")
	default:
		s.respondGateway(class, id, "ERR;UNKNOWN_SUBCOMMAND")
	}
}

// SetRawdumpSink mirrors every raw byte this session receives (pre-parse)
// into sink, implementing RAWDUMP;START's effect once a multiplexer has
// resolved the target SESSION=<n> to a concrete Session. Pass nil to stop.
func (s *Session) SetRawdumpSink(sink *Session) { s.rawdumpSink = sink }
