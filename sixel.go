package kterm

// sixelState is the per-session Sixel decoder sub-state (spec.md §3, §4.9).
type sixelState struct {
	palette   [256]RGB
	maxWidth  int
	maxHeight int
	lastImage *SixelImage
}

func newSixelState() *sixelState {
	s := &sixelState{maxWidth: 4096, maxHeight: 4096}
	s.initDefaultPalette()
	return s
}

func (s *sixelState) initDefaultPalette() {
	vga := [16]RGB{
		{0, 0, 0}, {0, 0, 205}, {205, 0, 0}, {205, 0, 205},
		{0, 205, 0}, {0, 205, 205}, {205, 205, 0}, {229, 229, 229},
		{76, 76, 76}, {76, 76, 255}, {255, 76, 76}, {255, 76, 255},
		{76, 255, 76}, {76, 255, 255}, {255, 255, 76}, {255, 255, 255},
	}
	copy(s.palette[:16], vga[:])
}

func (s *sixelState) reset() {
	mw, mh := s.maxWidth, s.maxHeight
	*s = *newSixelState()
	s.maxWidth, s.maxHeight = mw, mh
}

// SixelImage is a decoded Sixel raster, bounded by the session's
// configured max_sixel_width/height (spec.md §6 config, §7 resource
// exhaustion policy).
type SixelImage struct {
	Width, Height int
	Pixels        []RGB // row-major, len == Width*Height
	Transparent   bool
}

type sixelParser struct {
	st          *sixelState
	x, y        int
	colorIndex  int
	maxX, maxY  int
	pixels      map[[2]int]RGB
	transparent bool
	capped      bool
}

// ParseSixel decodes Sixel data (the bytes after the DCS 'q' final byte),
// enforcing st's configured size caps. params holds P1;P2;P3 (aspect
// ratio, background select, grid size); only P2 (transparency) matters
// here, matching teacher sixel.go's scope.
func ParseSixel(st *sixelState, params []int, data []byte) (*SixelImage, error) {
	p := &sixelParser{st: st, pixels: make(map[[2]int]RGB)}
	if len(params) >= 2 && params[1] == 1 {
		p.transparent = true
	}
	p.parse(data)
	img := p.toImage()
	st.lastImage = img
	return img, nil
}

func (p *sixelParser) parse(data []byte) {
	repeat := 1
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b == '!': // repeat introducer: !<count><sixel>
			i++
			n, ni := readInt(data, i)
			i = ni - 1
			if n > 0 {
				repeat = n
			}
		case b == '$': // carriage return
			p.x = 0
		case b == '-': // newline
			p.x = 0
			p.y += 6
		case b == '#': // color select/define: #<idx>[;<fmt>;<c1>;<c2>;<c3>]
			i++
			idx, ni := readInt(data, i)
			i = ni
			if i < len(data) && data[i] == ';' {
				var fields [4]int
				for f := 0; f < 4 && i < len(data) && data[i] == ';'; f++ {
					i++
					v, ni2 := readInt(data, i)
					fields[f] = v
					i = ni2
				}
				if fields[0] == 2 { // RGB, percentages 0-100
					p.st.palette[idx&0xFF] = RGB{
						R: scalePct(fields[1]), G: scalePct(fields[2]), B: scalePct(fields[3]),
					}
				}
			}
			p.colorIndex = idx & 0xFF
			i--
		case b >= '?' && b <= '~':
			bits := b - '?'
			if bits != 0 {
				for n := 0; n < repeat; n++ {
					for row := 0; row < 6; row++ {
						if bits&(1<<uint(row)) != 0 {
							p.setPixel(p.x, p.y+row, p.st.palette[p.colorIndex])
						}
					}
					p.x++
				}
			} else {
				p.x += repeat
			}
			repeat = 1
		}
		if p.x > p.maxX {
			p.maxX = p.x
		}
		if p.y+6 > p.maxY {
			p.maxY = p.y + 6
		}
	}
}

func readInt(b []byte, i int) (int, int) {
	n := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		n = n*10 + int(b[i]-'0')
		i++
	}
	return n, i
}

func scalePct(p int) uint8 {
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return uint8(p * 255 / 100)
}

func (p *sixelParser) setPixel(x, y int, c RGB) {
	if x < 0 || y < 0 || x >= p.st.maxWidth || y >= p.st.maxHeight {
		p.capped = true
		return
	}
	p.pixels[[2]int{x, y}] = c
}

func (p *sixelParser) toImage() *SixelImage {
	w, h := p.maxX, p.maxY
	if w > p.st.maxWidth {
		w = p.st.maxWidth
	}
	if h > p.st.maxHeight {
		h = p.st.maxHeight
	}
	if w <= 0 || h <= 0 {
		return &SixelImage{}
	}
	img := &SixelImage{Width: w, Height: h, Pixels: make([]RGB, w*h), Transparent: p.transparent}
	for pos, c := range p.pixels {
		if pos[0] < w && pos[1] < h {
			img.Pixels[pos[1]*w+pos[0]] = c
		}
	}
	return img
}
