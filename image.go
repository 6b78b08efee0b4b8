package kterm

// cellPixelWidth and cellPixelHeight approximate a monospace cell's pixel
// footprint for converting a raw pixel raster into a cell-grid span when
// the sender didn't specify one explicitly (Kitty c=/r= or a placed Sixel
// image). Renderers with exact font metrics may recompute the span; this
// only sizes the cells the session marks as image-bearing.
const (
	cellPixelWidth  = 10
	cellPixelHeight = 20
)

func pixelsToCells(px, cellPx int) int {
	if px <= 0 {
		return 1
	}
	n := (px + cellPx - 1) / cellPx
	if n < 1 {
		n = 1
	}
	return n
}

// attachSixelOverlay anchors a decoded Sixel raster at the cursor's
// current cell, converting it to the packed-RGBA CellImage form shared
// with Kitty graphics so a renderer has one overlay representation to
// handle (spec.md §4.9).
func (s *Session) attachSixelOverlay(img *SixelImage) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return
	}
	pixels := make([]byte, img.Width*img.Height*4)
	for i, c := range img.Pixels {
		off := i * 4
		pixels[off], pixels[off+1], pixels[off+2] = c.R, c.G, c.B
		if img.Transparent && c == (RGB{}) {
			pixels[off+3] = 0
		} else {
			pixels[off+3] = 0xff
		}
	}

	cellImg := &CellImage{
		Width:    uint32(img.Width),
		Height:   uint32(img.Height),
		Pixels:   pixels,
		CellCols: uint32(pixelsToCells(img.Width, cellPixelWidth)),
		CellRows: uint32(pixelsToCells(img.Height, cellPixelHeight)),
	}
	s.paintCellImage(cellImg, s.cursor.Y, s.cursor.X)
}

// dispatchKittyCommand routes a parsed Kitty graphics command to the
// session's image table and, for display actions, anchors the result on
// the grid at the cursor (spec.md §4.9 Kitty graphics protocol subset).
func (s *Session) dispatchKittyCommand(cmd *KittyCommand) {
	if cmd == nil {
		return
	}

	switch cmd.Action {
	case KittyActionDelete:
		s.kittyImages.Delete(cmd)
		s.respondKitty(cmd, "")
		return

	case KittyActionDisplay:
		img, ok := s.kittyImages.Get(cmd.ImageID)
		if !ok {
			s.respondKittyError(cmd, "ENOENT")
			return
		}
		s.placeKittyImage(cmd, img)
		s.respondKitty(cmd, "")
		return

	case KittyActionQuery:
		if _, _, _, err := cmd.decodeImageData(s.kittyImages.maxPixels); err != nil {
			s.respondKittyError(cmd, "EINVAL")
			return
		}
		s.respondKitty(cmd, "")
		return

	default: // KittyActionTransmit, KittyActionTransmitDisplay
		img, err := s.kittyImages.Transmit(cmd)
		if err != nil {
			s.respondKittyError(cmd, "EINVAL")
			return
		}
		if cmd.Action == KittyActionTransmitDisplay {
			s.placeKittyImage(cmd, img)
		}
		s.respondKitty(cmd, "")
	}
}

func (s *Session) placeKittyImage(cmd *KittyCommand, img *CellImage) {
	placed := *img
	placed.PlacementID = cmd.PlacementID
	if cmd.Cols > 0 {
		placed.CellCols = cmd.Cols
	} else if placed.CellCols == 0 {
		placed.CellCols = uint32(pixelsToCells(int(img.Width), cellPixelWidth))
	}
	if cmd.Rows > 0 {
		placed.CellRows = cmd.Rows
	} else if placed.CellRows == 0 {
		placed.CellRows = uint32(pixelsToCells(int(img.Height), cellPixelHeight))
	}
	if cmd.Cols > 0 || cmd.Rows > 0 {
		targetW, targetH := placed.CellCols*cellPixelWidth, placed.CellRows*cellPixelHeight
		placed.Pixels = scaleRGBA(placed.Pixels, placed.Width, placed.Height, targetW, targetH)
		placed.Width, placed.Height = targetW, targetH
	}
	s.paintCellImage(&placed, s.cursor.Y, s.cursor.X)
}

// paintCellImage stamps img onto every cell of the CellCols x CellRows
// rectangle anchored at (row,col), clipping to the active grid.
func (s *Session) paintCellImage(img *CellImage, row, col int) {
	g := s.activeGrid()
	for dy := 0; dy < int(img.CellRows); dy++ {
		for dx := 0; dx < int(img.CellCols); dx++ {
			c := g.Cell(row+dy, col+dx)
			if c == nil {
				continue
			}
			c.Image = img
			c.MarkDirty()
			g.markDirty(row+dy, col+dx)
		}
	}
}

func (s *Session) respondKitty(cmd *KittyCommand, message string) {
	if cmd.Quiet >= 1 {
		return
	}
	s.writeResponseString(FormatKittyResponse(cmd.ImageID, message, false))
}

func (s *Session) respondKittyError(cmd *KittyCommand, message string) {
	if cmd.Quiet >= 2 {
		return
	}
	s.writeResponseString(FormatKittyResponse(cmd.ImageID, message, true))
}
