package kterm

// RGB is a plain 8-bit-per-channel color, used for the resolved palette
// table and for rendering hand-off (spec.md §6 "current 256-entry
// palette").
type RGB struct {
	R, G, B uint8
}

// DefaultPalette256 is the standard 16 ANSI colors + 216 color cube + 24
// grayscale ramp, generated the same way teacher colors.go built its
// image/color.RGBA table.
var DefaultPalette256 = buildDefaultPalette()

func buildDefaultPalette() [256]RGB {
	var p [256]RGB
	ansi16 := [16]RGB{
		{0, 0, 0}, {205, 49, 49}, {13, 188, 121}, {229, 229, 16},
		{36, 114, 200}, {188, 63, 188}, {17, 168, 205}, {229, 229, 229},
		{102, 102, 102}, {241, 76, 76}, {35, 209, 139}, {245, 245, 67},
		{59, 142, 234}, {214, 112, 214}, {41, 184, 219}, {255, 255, 255},
	}
	copy(p[0:16], ansi16[:])

	i := 16
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				p[i] = RGB{uint8(r * 51), uint8(g * 51), uint8(b * 51)}
				i++
			}
		}
	}
	for j := 0; j < 24; j++ {
		gray := uint8(8 + j*10)
		p[232+j] = RGB{gray, gray, gray}
	}
	return p
}

// DefaultForeground and DefaultBackground resolve Color{Mode: ColorDefault}.
var (
	DefaultForeground = RGB{229, 229, 229}
	DefaultBackground = RGB{0, 0, 0}
	DefaultCursorColor = RGB{229, 229, 229}
)

// Palette is a Terminal-owned, OSC-4/OSC-104-mutable 256 entry color table
// (spec.md §3 "Terminal ... a 256-entry RGB color palette").
type Palette struct {
	entries [256]RGB
	fg, bg  RGB
}

// NewPalette returns a palette seeded with DefaultPalette256.
func NewPalette() *Palette {
	p := &Palette{entries: DefaultPalette256, fg: DefaultForeground, bg: DefaultBackground}
	return p
}

// Get returns the RGB value bound to palette index idx.
func (p *Palette) Get(idx uint8) RGB { return p.entries[idx] }

// Set rebinds palette index idx (OSC 4), clamped implicitly by the uint8 type.
func (p *Palette) Set(idx uint8, c RGB) { p.entries[idx] = c }

// Reset restores idx to its startup value (OSC 104).
func (p *Palette) Reset(idx uint8) { p.entries[idx] = DefaultPalette256[idx] }

// ResetAll restores the whole table.
func (p *Palette) ResetAll() { p.entries = DefaultPalette256 }

// Resolve turns a Cell's tagged-union Color into a concrete RGB, using fg
// to pick which "default" applies.
func (p *Palette) Resolve(c Color, fg bool) RGB {
	switch c.Mode {
	case ColorRGB:
		return RGB{c.R, c.G, c.B}
	case ColorPalette:
		return p.entries[c.Index]
	default:
		if fg {
			return p.fg
		}
		return p.bg
	}
}
