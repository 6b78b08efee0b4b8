package kterm

// CellFlags is a bitmask of cell rendering attributes (spec.md §3).
type CellFlags uint32

const (
	CellBold CellFlags = 1 << iota
	CellFaint
	CellItalic
	CellBlinkSlow
	CellBlinkFast
	CellReverse
	CellConceal
	CellStrike
	CellProtected        // DECSCA protected attribute
	CellWide             // first column of a double-width glyph
	CellWideContinuation // second (spacer) column of a double-width glyph
	CellSelected
	CellBidiRTL // right-to-left bidi hint; no shaping performed at this layer
	CellDirty
)

// UnderlineStyle enumerates the SGR 4:n underline styles (xterm extension).
type UnderlineStyle uint8

const (
	UnderlineNone UnderlineStyle = iota
	UnderlineSingle
	UnderlineDouble
	UnderlineCurly
	UnderlineDotted
	UnderlineDashed
)

// ColorMode tags the kind of value a Color holds.
type ColorMode uint8

const (
	ColorDefault ColorMode = iota
	ColorPalette
	ColorRGB
)

// Color is the tagged union spec.md §3 requires: a palette index 0..255, a
// direct 8-bit RGB triple, or "default" (resolved against the session's
// current default fg/bg).
type Color struct {
	Mode    ColorMode
	Index   uint8
	R, G, B uint8
}

// DefaultColor is the zero-value "use the session default" color.
var DefaultColor = Color{Mode: ColorDefault}

// PaletteColor builds a palette-indexed Color.
func PaletteColor(idx uint8) Color { return Color{Mode: ColorPalette, Index: idx} }

// RGBColor builds a direct-color Color.
func RGBColor(r, g, b uint8) Color { return Color{Mode: ColorRGB, R: r, G: g, B: b} }

// Hyperlink associates a cell with a clickable link (OSC 8).
type Hyperlink struct {
	ID  string
	URI string
}

// Cell is one grid position: a codepoint, three colors, an underline
// style, an attribute bitmask, and a monotonic per-cell generation counter
// the renderer uses to invalidate its glyph cache (spec.md §3).
type Cell struct {
	Char           rune
	Fg             Color
	Bg             Color
	UnderlineColor Color
	UnderlineStyle UnderlineStyle
	Flags          CellFlags
	Generation     uint32
	Hyperlink      *Hyperlink
	Image          *CellImage
}

// NewCell returns a blank cell: a space with default colors.
func NewCell() Cell {
	return Cell{Char: ' ', Fg: DefaultColor, Bg: DefaultColor}
}

// Reset clears attributes back to the blank state, preserving and bumping
// Generation so the renderer's glyph cache invalidates.
func (c *Cell) Reset() {
	gen := c.Generation
	*c = NewCell()
	c.Generation = gen + 1
	c.Flags |= CellDirty
}

func (c *Cell) HasFlag(flag CellFlags) bool { return c.Flags&flag != 0 }
func (c *Cell) SetFlag(flag CellFlags)      { c.Flags |= flag }
func (c *Cell) ClearFlag(flag CellFlags)    { c.Flags &^= flag }

func (c *Cell) IsDirty() bool     { return c.HasFlag(CellDirty) }
func (c *Cell) MarkDirty()        { c.Generation++; c.SetFlag(CellDirty) }
func (c *Cell) ClearDirty()       { c.ClearFlag(CellDirty) }
func (c *Cell) IsWide() bool      { return c.HasFlag(CellWide) }
func (c *Cell) IsWideCont() bool  { return c.HasFlag(CellWideContinuation) }
func (c *Cell) IsProtected() bool { return c.HasFlag(CellProtected) }
func (c *Cell) HasImage() bool    { return c.Image != nil }

// Copy returns a value copy (Cell has no owned slices; hyperlink/image
// pointers are shared by design, mirroring teacher cell.go's Copy).
func (c *Cell) Copy() Cell { return *c }
