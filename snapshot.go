package kterm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// SnapshotDetail specifies the level of detail in a snapshot.
type SnapshotDetail string

const (
	// SnapshotDetailText returns plain text only.
	SnapshotDetailText SnapshotDetail = "text"
	// SnapshotDetailStyled returns text with style segments per line.
	SnapshotDetailStyled SnapshotDetail = "styled"
	// SnapshotDetailFull returns full cell-by-cell data.
	SnapshotDetailFull SnapshotDetail = "full"
)

// Snapshot is the render-surface hand-off spec.md §6 describes: the active
// session's cell array, cursor, and any graphics overlays, at whatever
// level of detail the caller asked for.
type Snapshot struct {
	Size   SnapshotSize    `json:"size"`
	Cursor SnapshotCursor  `json:"cursor"`
	Lines  []SnapshotLine  `json:"lines"`
	Images []SnapshotImage `json:"images,omitempty"`
}

// SnapshotSize holds terminal dimensions.
type SnapshotSize struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// SnapshotCursor holds cursor state.
type SnapshotCursor struct {
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Visible bool   `json:"visible"`
	Style   string `json:"style"`
}

// SnapshotLine represents a single line in the snapshot.
type SnapshotLine struct {
	Text     string            `json:"text"`
	Segments []SnapshotSegment `json:"segments,omitempty"`
	Cells    []SnapshotCell    `json:"cells,omitempty"`
}

// SnapshotSegment represents a styled run of text sharing one style.
type SnapshotSegment struct {
	Text       string        `json:"text"`
	Fg         string        `json:"fg,omitempty"`
	Bg         string        `json:"bg,omitempty"`
	Attributes SnapshotAttrs `json:"attrs,omitempty"`
	Hyperlink  *SnapshotLink `json:"hyperlink,omitempty"`
}

// SnapshotCell represents a single cell with full attributes.
type SnapshotCell struct {
	Char       string        `json:"char"`
	Fg         string        `json:"fg"`
	Bg         string        `json:"bg"`
	Attributes SnapshotAttrs `json:"attrs,omitempty"`
	Hyperlink  *SnapshotLink `json:"hyperlink,omitempty"`
	Wide       bool          `json:"wide,omitempty"`
	WideSpacer bool          `json:"wide_spacer,omitempty"`
}

// SnapshotAttrs holds text formatting attributes.
type SnapshotAttrs struct {
	Bold          bool   `json:"bold,omitempty"`
	Faint         bool   `json:"faint,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Underline     string `json:"underline,omitempty"` // "single", "double", "curly", "dotted", "dashed"
	UnderlineFg   string `json:"underline_fg,omitempty"`
	Blink         string `json:"blink,omitempty"` // "slow", "fast"
	Reverse       bool   `json:"reverse,omitempty"`
	Conceal       bool   `json:"conceal,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
}

// SnapshotLink holds hyperlink information.
type SnapshotLink struct {
	ID  string `json:"id,omitempty"`
	URI string `json:"uri"`
}

// SnapshotImage holds image placement metadata, UV coordinates included so
// a renderer can texture-map a sub-region of a shared pixel buffer onto
// each cell it spans without re-fetching per cell.
type SnapshotImage struct {
	ID          uint32 `json:"id"`
	PlacementID uint32 `json:"placement_id"`
	Row         int    `json:"row"`
	Col         int    `json:"col"`
	PixelWidth  uint32 `json:"pixel_width"`
	PixelHeight uint32 `json:"pixel_height"`
	CellCols    uint32 `json:"cell_cols"`
	CellRows    uint32 `json:"cell_rows"`
}

// ImageSnapshot holds complete pixel data for one image, base64 encoded.
type ImageSnapshot struct {
	ID     uint32 `json:"id"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Format string `json:"format"` // "rgba"
	Data   string `json:"data"`
}

// GetImageData returns the image data for the given ID, or nil if not found.
func (s *Session) GetImageData(id uint32) *ImageSnapshot {
	img, ok := s.kittyImages.Get(id)
	if !ok || img == nil {
		return nil
	}
	return &ImageSnapshot{
		ID:     img.ID,
		Width:  img.Width,
		Height: img.Height,
		Format: "rgba",
		Data:   base64.StdEncoding.EncodeToString(img.Pixels),
	}
}

// Snapshot captures the current terminal state at the requested detail
// level (spec.md §6 "Render surface out").
func (s *Session) Snapshot(detail SnapshotDetail) *Snapshot {
	g := s.activeGrid()
	snap := &Snapshot{
		Size: SnapshotSize{Rows: g.Rows(), Cols: g.Cols()},
		Cursor: SnapshotCursor{
			Row:     s.cursor.Y,
			Col:     s.cursor.X,
			Visible: s.cursor.Visible,
			Style:   cursorStyleToString(s.cursor.Style),
		},
		Lines: make([]SnapshotLine, g.Rows()),
	}

	for row := 0; row < g.Rows(); row++ {
		snap.Lines[row] = s.snapshotLine(g, row, detail)
	}
	snap.Images = s.snapshotImages(g)
	return snap
}

func (s *Session) effectivePalette() *Palette {
	if s.palette != nil {
		return s.palette
	}
	return defaultSnapshotPalette
}

var defaultSnapshotPalette = NewPalette()

// snapshotImages walks the active grid looking for the first cell of each
// image placement (the one whose column/row is the placement anchor) and
// emits one SnapshotImage per distinct image pointer seen.
func (s *Session) snapshotImages(g *Grid) []SnapshotImage {
	seen := make(map[*CellImage]bool)
	var out []SnapshotImage
	for row := 0; row < g.Rows(); row++ {
		for col := 0; col < g.Cols(); col++ {
			cell := g.Cell(row, col)
			if cell == nil || cell.Image == nil || seen[cell.Image] {
				continue
			}
			seen[cell.Image] = true
			img := cell.Image
			out = append(out, SnapshotImage{
				ID:          img.ID,
				PlacementID: img.PlacementID,
				Row:         row,
				Col:         col,
				PixelWidth:  img.Width,
				PixelHeight: img.Height,
				CellCols:    img.CellCols,
				CellRows:    img.CellRows,
			})
		}
	}
	return out
}

func (s *Session) snapshotLine(g *Grid, row int, detail SnapshotDetail) SnapshotLine {
	line := SnapshotLine{Text: lineText(g, row)}
	switch detail {
	case SnapshotDetailStyled:
		line.Segments = s.lineToSegments(g, row)
	case SnapshotDetailFull:
		line.Cells = s.lineToCells(g, row)
	}
	return line
}

// lineText returns a row's text with trailing blanks trimmed, matching
// how a renderer would copy a line to the clipboard.
func lineText(g *Grid, row int) string {
	runes := make([]rune, 0, g.Cols())
	for col := 0; col < g.Cols(); col++ {
		cell := g.Cell(row, col)
		if cell == nil || cell.IsWideCont() {
			continue
		}
		ch := cell.Char
		if ch == 0 {
			ch = ' '
		}
		runes = append(runes, ch)
	}
	end := len(runes)
	for end > 0 && runes[end-1] == ' ' {
		end--
	}
	return string(runes[:end])
}

func (s *Session) lineToSegments(g *Grid, row int) []SnapshotSegment {
	pal := s.effectivePalette()
	var segments []SnapshotSegment
	var current *SnapshotSegment
	var currentChars []rune

	flush := func() {
		if current != nil && len(currentChars) > 0 {
			current.Text = string(currentChars)
			segments = append(segments, *current)
		}
	}

	for col := 0; col < g.Cols(); col++ {
		cell := g.Cell(row, col)
		if cell == nil || cell.IsWideCont() {
			continue
		}

		fg := colorToHex(cell.Fg, true, pal)
		bg := colorToHex(cell.Bg, false, pal)
		attrs := cellAttrsToSnapshot(cell, pal)
		link := cellHyperlinkToSnapshot(cell)

		if current == nil || !segmentMatches(current, fg, bg, attrs, link) {
			flush()
			current = &SnapshotSegment{Fg: fg, Bg: bg, Attributes: attrs, Hyperlink: link}
			currentChars = nil
		}

		ch := cell.Char
		if ch == 0 {
			ch = ' '
		}
		currentChars = append(currentChars, ch)
	}
	flush()
	return segments
}

func (s *Session) lineToCells(g *Grid, row int) []SnapshotCell {
	pal := s.effectivePalette()
	cells := make([]SnapshotCell, 0, g.Cols())
	for col := 0; col < g.Cols(); col++ {
		cell := g.Cell(row, col)
		if cell == nil {
			cells = append(cells, SnapshotCell{Char: " ", Fg: colorToHex(DefaultColor, true, pal), Bg: colorToHex(DefaultColor, false, pal)})
			continue
		}
		ch := cell.Char
		if ch == 0 {
			ch = ' '
		}
		cells = append(cells, SnapshotCell{
			Char:       string(ch),
			Fg:         colorToHex(cell.Fg, true, pal),
			Bg:         colorToHex(cell.Bg, false, pal),
			Attributes: cellAttrsToSnapshot(cell, pal),
			Hyperlink:  cellHyperlinkToSnapshot(cell),
			Wide:       cell.IsWide(),
			WideSpacer: cell.IsWideCont(),
		})
	}
	return cells
}

func segmentMatches(seg *SnapshotSegment, fg, bg string, attrs SnapshotAttrs, link *SnapshotLink) bool {
	if seg.Fg != fg || seg.Bg != bg || seg.Attributes != attrs {
		return false
	}
	if seg.Hyperlink == nil && link == nil {
		return true
	}
	if seg.Hyperlink == nil || link == nil {
		return false
	}
	return seg.Hyperlink.URI == link.URI && seg.Hyperlink.ID == link.ID
}

func colorToHex(c Color, fg bool, pal *Palette) string {
	rgb := pal.Resolve(c, fg)
	return fmt.Sprintf("#%02x%02x%02x", rgb.R, rgb.G, rgb.B)
}

func cellAttrsToSnapshot(cell *Cell, pal *Palette) SnapshotAttrs {
	attrs := SnapshotAttrs{
		Bold:          cell.HasFlag(CellBold),
		Faint:         cell.HasFlag(CellFaint),
		Italic:        cell.HasFlag(CellItalic),
		Reverse:       cell.HasFlag(CellReverse),
		Conceal:       cell.HasFlag(CellConceal),
		Strikethrough: cell.HasFlag(CellStrike),
	}
	switch cell.UnderlineStyle {
	case UnderlineSingle:
		attrs.Underline = "single"
	case UnderlineDouble:
		attrs.Underline = "double"
	case UnderlineCurly:
		attrs.Underline = "curly"
	case UnderlineDotted:
		attrs.Underline = "dotted"
	case UnderlineDashed:
		attrs.Underline = "dashed"
	}
	if attrs.Underline != "" && cell.UnderlineColor != DefaultColor {
		attrs.UnderlineFg = colorToHex(cell.UnderlineColor, true, pal)
	}
	switch {
	case cell.HasFlag(CellBlinkSlow):
		attrs.Blink = "slow"
	case cell.HasFlag(CellBlinkFast):
		attrs.Blink = "fast"
	}
	return attrs
}

func cellHyperlinkToSnapshot(cell *Cell) *SnapshotLink {
	if cell.Hyperlink == nil {
		return nil
	}
	return &SnapshotLink{ID: cell.Hyperlink.ID, URI: cell.Hyperlink.URI}
}

func cursorStyleToString(style CursorStyle) string {
	switch style {
	case CursorBlinkingBlock, CursorSteadyBlock:
		return "block"
	case CursorBlinkingUnderline, CursorSteadyUnderline:
		return "underline"
	case CursorBlinkingBar, CursorSteadyBar:
		return "bar"
	default:
		return "block"
	}
}

// --- binary session persistence (spec.md §6 "KTERM_SES_V1") ---------------

var sessionMagic = [12]byte{'K', 'T', 'E', 'R', 'M', '_', 'S', 'E', 'S', '_', 'V', '1'}

// ErrDimensionMismatch is returned by RestoreSession when the serialized
// geometry doesn't match the live session's; callers must resize first.
var ErrDimensionMismatch = errors.New("kterm: session dimensions do not match snapshot, resize first")

// SerializeSession encodes s's primary and alternate grids into the
// KTERM_SES_V1 binary format: a fixed little-endian header (cols, rows,
// buffer_height, screen_head, view_offset, cursor x/y, scroll_top/bottom)
// followed by the primary cell array then the alternate cell array.
func (s *Session) SerializeSession() []byte {
	buf := make([]byte, 0, 4096)
	buf = append(buf, sessionMagic[:]...)
	buf = appendUint32(buf, uint32(s.cols))
	buf = appendUint32(buf, uint32(s.rows))
	buf = appendUint32(buf, uint32(s.primary.bufferHeight))
	buf = appendUint32(buf, uint32(s.primary.screenHead))
	buf = appendUint32(buf, uint32(s.primary.viewOffset))
	buf = appendUint32(buf, uint32(s.cursor.X))
	buf = appendUint32(buf, uint32(s.cursor.Y))
	buf = appendUint32(buf, uint32(s.scrollTop))
	buf = appendUint32(buf, uint32(s.scrollBottom))

	buf = appendGridCells(buf, s.primary)
	buf = appendGridCells(buf, s.alternate)
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendGridCells(buf []byte, g *Grid) []byte {
	for row := 0; row < g.bufferHeight; row++ {
		for col := 0; col < g.cols; col++ {
			c := g.cells[row][col]
			buf = appendUint32(buf, uint32(c.Char))
			buf = append(buf, byte(c.Fg.Mode), c.Fg.Index, c.Fg.R, c.Fg.G, c.Fg.B)
			buf = append(buf, byte(c.Bg.Mode), c.Bg.Index, c.Bg.R, c.Bg.G, c.Bg.B)
			buf = appendUint32(buf, uint32(c.Flags))
		}
	}
	return buf
}

const cellWireSize = 4 + 5 + 5 + 4

// RestoreSession decodes a KTERM_SES_V1 blob produced by SerializeSession
// back into s. Restore is dimension-strict: if data's cols/rows don't
// match s's current geometry, it returns ErrDimensionMismatch and leaves s
// unmodified.
func (s *Session) RestoreSession(data []byte) error {
	const headerSize = 12 + 9*4
	if len(data) < headerSize || string(data[:12]) != string(sessionMagic[:]) {
		return errors.New("kterm: not a KTERM_SES_V1 session blob")
	}
	r := data[12:]
	cols := int(binary.LittleEndian.Uint32(r[0:4]))
	rows := int(binary.LittleEndian.Uint32(r[4:8]))
	if cols != s.cols || rows != s.rows {
		return ErrDimensionMismatch
	}
	bufferHeight := int(binary.LittleEndian.Uint32(r[8:12]))
	screenHead := int(binary.LittleEndian.Uint32(r[12:16]))
	viewOffset := int(binary.LittleEndian.Uint32(r[16:20]))
	cursorX := int(binary.LittleEndian.Uint32(r[20:24]))
	cursorY := int(binary.LittleEndian.Uint32(r[24:28]))
	scrollTop := int(binary.LittleEndian.Uint32(r[28:32]))
	scrollBottom := int(binary.LittleEndian.Uint32(r[32:36]))

	body := data[headerSize:]
	primaryLen := bufferHeight * cols * cellWireSize
	altLen := rows * cols * cellWireSize // the alternate grid has no scrollback
	if len(body) < primaryLen+altLen {
		return errors.New("kterm: truncated KTERM_SES_V1 session blob")
	}

	primaryCells, err := decodeGridCells(body[:primaryLen], bufferHeight, cols)
	if err != nil {
		return err
	}
	altCells, err := decodeGridCells(body[primaryLen:primaryLen+altLen], rows, cols)
	if err != nil {
		return err
	}

	s.primary.bufferHeight = bufferHeight
	s.primary.screenHead = screenHead
	s.primary.viewOffset = viewOffset
	s.primary.cells = primaryCells
	s.primary.wrapped = make([]bool, bufferHeight)
	s.primary.dirtyRow = make([]int, bufferHeight)

	s.alternate.bufferHeight = rows
	s.alternate.screenHead = 0
	s.alternate.viewOffset = 0
	s.alternate.cells = altCells
	s.alternate.wrapped = make([]bool, rows)
	s.alternate.dirtyRow = make([]int, rows)

	s.cursor.X, s.cursor.Y = cursorX, cursorY
	s.scrollTop, s.scrollBottom = scrollTop, scrollBottom
	s.clampCursor()
	return nil
}

func decodeGridCells(body []byte, bufferHeight, cols int) ([][]Cell, error) {
	n := bufferHeight * cols
	if len(body) < n*cellWireSize {
		return nil, errors.New("kterm: truncated cell array in KTERM_SES_V1 blob")
	}
	rows := make([][]Cell, bufferHeight)
	off := 0
	for row := 0; row < bufferHeight; row++ {
		line := make([]Cell, cols)
		for col := 0; col < cols; col++ {
			ch := rune(binary.LittleEndian.Uint32(body[off : off+4]))
			off += 4
			fg := Color{Mode: ColorMode(body[off]), Index: body[off+1], R: body[off+2], G: body[off+3], B: body[off+4]}
			off += 5
			bg := Color{Mode: ColorMode(body[off]), Index: body[off+1], R: body[off+2], G: body[off+3], B: body[off+4]}
			off += 5
			flags := CellFlags(binary.LittleEndian.Uint32(body[off : off+4]))
			off += 4
			line[col] = Cell{Char: ch, Fg: fg, Bg: bg, Flags: flags}
		}
		rows[row] = line
	}
	return rows, nil
}
