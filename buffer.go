package kterm

// Position identifies a cell location in the terminal grid (0-based).
type Position struct {
	Row int
	Col int
}

func (p Position) Before(other Position) bool {
	if p.Row != other.Row {
		return p.Row < other.Row
	}
	return p.Col < other.Col
}

func (p Position) Equal(other Position) bool { return p == other }

// Rect is an inclusive-exclusive rectangle in cell coordinates, used both
// for the per-frame union dirty rect and for FillRectMasked/CopyRect ops.
type Rect struct {
	Top, Left, Bottom, Right int // [Top,Bottom) x [Left,Right)
}

func (r Rect) Empty() bool { return r.Top >= r.Bottom || r.Left >= r.Right }

// union grows r to cover other, treating an Empty r as absorbing.
func (r Rect) union(other Rect) Rect {
	if other.Empty() {
		return r
	}
	if r.Empty() {
		return other
	}
	if other.Top < r.Top {
		r.Top = other.Top
	}
	if other.Left < r.Left {
		r.Left = other.Left
	}
	if other.Bottom > r.Bottom {
		r.Bottom = other.Bottom
	}
	if other.Right > r.Right {
		r.Right = other.Right
	}
	return r
}

// clip intersects r with the [0,rows)x[0,cols) grid bounds, used by the
// Flusher's resize-hardening re-validation (spec.md §4.2 scenario 6).
func (r Rect) clip(rows, cols int) Rect {
	if r.Top < 0 {
		r.Top = 0
	}
	if r.Left < 0 {
		r.Left = 0
	}
	if r.Bottom > rows {
		r.Bottom = rows
	}
	if r.Right > cols {
		r.Right = cols
	}
	return r
}

// dirtyFrames is how many frames a touched row stays marked dirty, long
// enough for a double-buffered GPU renderer to pick it up on either buffer
// (spec.md §4.1 "redraw for N frames").
const dirtyFrames = 2

// Grid is the ring-backed cell store behind one screen (primary or
// alternate) of a Session (spec.md §4.1). `bufferHeight` rows are
// allocated; `rows` of them are visible at any time starting at
// `screenHead`. For the alternate screen bufferHeight == rows (no
// scrollback, per the §3 invariant).
type Grid struct {
	rows, cols   int
	bufferHeight int
	cells        [][]Cell
	wrapped      []bool
	screenHead   int
	viewOffset   int // 0 = live viewport; >0 = scrolled back N lines

	tabStops []bool

	dirtyRow  []int // remaining frames to redraw, indexed by ring row
	dirtyRect Rect
}

// NewGrid allocates a grid with the given visible size and scrollback
// capacity (scrollbackRows beyond the visible rows; pass 0 for the
// alternate screen).
func NewGrid(rows, cols, scrollbackRows int) *Grid {
	bh := rows + scrollbackRows
	g := &Grid{
		rows: rows, cols: cols, bufferHeight: bh,
		cells:    make([][]Cell, bh),
		wrapped:  make([]bool, bh),
		tabStops: make([]bool, cols),
		dirtyRow: make([]int, bh),
	}
	for i := range g.cells {
		g.cells[i] = newBlankRow(cols)
	}
	for i := 0; i < cols; i += 8 {
		g.tabStops[i] = true
	}
	return g
}

func newBlankRow(cols int) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = NewCell()
	}
	return row
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

// ringRow maps a visible row index (0 = top of viewport, honoring
// viewOffset) to a ring storage index.
func (g *Grid) ringRow(visible int) int {
	idx := g.screenHead - g.viewOffset + visible
	idx %= g.bufferHeight
	if idx < 0 {
		idx += g.bufferHeight
	}
	return idx
}

// Cell returns a pointer to the cell at visible (row, col), or nil if out
// of bounds (spec.md §4.1 Failure: "returns a null/none").
func (g *Grid) Cell(row, col int) *Cell {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return nil
	}
	return &g.cells[g.ringRow(row)][col]
}

func (g *Grid) markDirty(row, col int) {
	ring := g.ringRow(row)
	g.dirtyRow[ring] = dirtyFrames
	g.dirtyRect = g.dirtyRect.union(Rect{Top: row, Left: col, Bottom: row + 1, Right: col + 1})
}

func (g *Grid) markRowDirty(row int) {
	g.markDirty(row, 0)
	g.dirtyRect = g.dirtyRect.union(Rect{Top: row, Left: 0, Bottom: row + 1, Right: g.cols})
}

// SetCell writes cell at (row,col) and marks it dirty.
func (g *Grid) SetCell(row, col int, cell Cell) {
	c := g.Cell(row, col)
	if c == nil {
		return
	}
	cell.MarkDirty()
	*c = cell
	g.markDirty(row, col)
}

// DirtyRowBitmap returns, per visible row, whether it has pending redraws.
func (g *Grid) DirtyRowBitmap() []bool {
	out := make([]bool, g.rows)
	for row := 0; row < g.rows; row++ {
		out[row] = g.dirtyRow[g.ringRow(row)] > 0
	}
	return out
}

// DirtyRect returns the current unioned dirty rectangle.
func (g *Grid) DirtyRect() Rect { return g.dirtyRect }

// ClearDirty decrements every row's redraw counter and, once all reach
// zero, resets the union rect. Called once per frame after the renderer
// has observed the dirty state.
func (g *Grid) ClearDirty() {
	any := false
	for i := range g.dirtyRow {
		if g.dirtyRow[i] > 0 {
			g.dirtyRow[i]--
			if g.dirtyRow[i] > 0 {
				any = true
			}
		}
	}
	for row := 0; row < g.rows; row++ {
		ring := g.ringRow(row)
		for col := 0; col < g.cols; col++ {
			g.cells[ring][col].ClearDirty()
		}
	}
	if !any {
		g.dirtyRect = Rect{}
	}
}

// ClearRowRange resets cells [startCol,endCol) of visible row to blank.
func (g *Grid) ClearRowRange(row, startCol, endCol int) {
	if row < 0 || row >= g.rows {
		return
	}
	if startCol < 0 {
		startCol = 0
	}
	if endCol > g.cols {
		endCol = g.cols
	}
	ring := g.ringRow(row)
	for col := startCol; col < endCol; col++ {
		g.cells[ring][col].Reset()
	}
	g.markDirty(row, startCol)
	g.dirtyRect = g.dirtyRect.union(Rect{Top: row, Left: startCol, Bottom: row + 1, Right: endCol})
}

func (g *Grid) ClearRow(row int) { g.ClearRowRange(row, 0, g.cols) }

func (g *Grid) ClearAll() {
	for row := 0; row < g.rows; row++ {
		g.ClearRow(row)
	}
}

func (g *Grid) clearRingRow(ring int) {
	row := newBlankRow(g.cols)
	g.cells[ring] = row
	g.wrapped[ring] = false
	g.dirtyRow[ring] = dirtyFrames
}

// ScrollUp shifts visible rows [top,bottom) up by n. When the region spans
// the whole grid and the grid has scrollback capacity, this is a ring
// rotation (O(n), old lines remain addressable via viewOffset); otherwise
// it is an in-place cell shift local to the region (spec.md §4.1).
func (g *Grid) ScrollUp(top, bottom, n int) {
	if n <= 0 || top >= bottom {
		return
	}
	if top < 0 {
		top = 0
	}
	if bottom > g.rows {
		bottom = g.rows
	}
	if n > bottom-top {
		n = bottom - top
	}

	if top == 0 && bottom == g.rows && g.bufferHeight > g.rows {
		for i := 0; i < n; i++ {
			g.screenHead = (g.screenHead + 1) % g.bufferHeight
			g.clearRingRow(g.ringRow(g.rows - 1))
		}
		g.dirtyRect = g.dirtyRect.union(Rect{Top: 0, Left: 0, Bottom: g.rows, Right: g.cols})
		return
	}

	for row := top; row < bottom-n; row++ {
		src, dst := g.ringRow(row+n), g.ringRow(row)
		g.cells[dst] = g.cells[src]
		g.wrapped[dst] = g.wrapped[src]
		g.markRowDirty(row)
	}
	for row := bottom - n; row < bottom; row++ {
		g.clearRingRow(g.ringRow(row))
		g.markRowDirty(row)
	}
}

// ScrollDown shifts visible rows [top,bottom) down by n, clearing the
// newly exposed top lines. Scrollback is never populated by ScrollDown.
func (g *Grid) ScrollDown(top, bottom, n int) {
	if n <= 0 || top >= bottom {
		return
	}
	if top < 0 {
		top = 0
	}
	if bottom > g.rows {
		bottom = g.rows
	}
	if n > bottom-top {
		n = bottom - top
	}
	for row := bottom - 1; row >= top+n; row-- {
		src, dst := g.ringRow(row-n), g.ringRow(row)
		g.cells[dst] = g.cells[src]
		g.wrapped[dst] = g.wrapped[src]
		g.markRowDirty(row)
	}
	for row := top; row < top+n; row++ {
		g.clearRingRow(g.ringRow(row))
		g.markRowDirty(row)
	}
}

// InsertBlanks shifts [col, cols) right by n within row, discarding
// overflow off the right edge.
func (g *Grid) InsertBlanks(row, col, n int) {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols || n <= 0 {
		return
	}
	ring := g.ringRow(row)
	line := g.cells[ring]
	for c := g.cols - 1; c >= col+n; c-- {
		line[c] = line[c-n]
	}
	for c := col; c < col+n && c < g.cols; c++ {
		line[c].Reset()
	}
	g.markRowDirty(row)
}

// DeleteChars shifts [col+n, cols) left by n within row, blanking the
// vacated tail.
func (g *Grid) DeleteChars(row, col, n int) {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols || n <= 0 {
		return
	}
	ring := g.ringRow(row)
	line := g.cells[ring]
	for c := col; c < g.cols-n; c++ {
		line[c] = line[c+n]
	}
	for c := g.cols - n; c < g.cols; c++ {
		if c >= 0 {
			line[c].Reset()
		}
	}
	g.markRowDirty(row)
}

// CopyRect copies a w x h block from (srcRow,srcCol) to (dstRow,dstCol)
// within the visible viewport, using memmove-correct direction selection
// for overlap (spec.md §4.2).
func (g *Grid) CopyRect(srcRow, srcCol, dstRow, dstCol, w, h int) {
	rowOrder := func() []int {
		rows := make([]int, h)
		for i := range rows {
			rows[i] = i
		}
		if dstRow > srcRow {
			for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
		return rows
	}()
	for _, i := range rowOrder {
		sr, dr := srcRow+i, dstRow+i
		if sr < 0 || sr >= g.rows || dr < 0 || dr >= g.rows {
			continue
		}
		srcLine := g.cells[g.ringRow(sr)]
		dstLine := g.cells[g.ringRow(dr)]
		cols := make([]int, w)
		for c := range cols {
			cols[c] = c
		}
		if dstCol > srcCol && sr == dr {
			for a, b := 0, len(cols)-1; a < b; a, b = a+1, b-1 {
				cols[a], cols[b] = cols[b], cols[a]
			}
		}
		for _, c := range cols {
			sc, dc := srcCol+c, dstCol+c
			if sc < 0 || sc >= g.cols || dc < 0 || dc >= g.cols {
				continue
			}
			dstLine[dc] = srcLine[sc]
		}
		g.markRowDirty(dr)
	}
}

// FillRectMasked overwrites only the fields named by mask within rect,
// leaving the rest of each cell untouched (spec.md §4.2).
type FillMask struct {
	Char, Fg, Bg, UnderlineColor, Style, Flags bool
}

func (g *Grid) FillRectMasked(rect Rect, mask FillMask, value Cell) {
	rect = rect.clip(g.rows, g.cols)
	for row := rect.Top; row < rect.Bottom; row++ {
		line := g.cells[g.ringRow(row)]
		for col := rect.Left; col < rect.Right; col++ {
			c := &line[col]
			if mask.Char {
				c.Char = value.Char
			}
			if mask.Fg {
				c.Fg = value.Fg
			}
			if mask.Bg {
				c.Bg = value.Bg
			}
			if mask.UnderlineColor {
				c.UnderlineColor = value.UnderlineColor
			}
			if mask.Style {
				c.UnderlineStyle = value.UnderlineStyle
			}
			if mask.Flags {
				c.Flags = value.Flags
			}
			c.MarkDirty()
		}
		g.markRowDirty(row)
	}
}

// Resize applies spec.md §4.1's resize policy: columns truncate on shrink
// and fill-with-default on grow; rows grow by appending blank rows at the
// bottom, and shrink by dropping from the bottom if the cursor (cursorRow)
// is above the new height, else scrolling content up to keep the cursor's
// rows. Scrollback is preserved where the new bufferHeight allows it.
func (g *Grid) Resize(rows, cols, cursorRow int) {
	if rows <= 0 || cols <= 0 {
		return
	}

	// Materialize logical rows oldest-first: scrollback first, then the
	// visible viewport, so we can rebuild the ring from scratch.
	total := g.bufferHeight
	logical := make([][]Cell, total)
	logicalWrapped := make([]bool, total)
	for i := 0; i < total; i++ {
		ring := (g.screenHead + g.rows + i) % g.bufferHeight // oldest to newest
		logical[i] = g.cells[ring]
		logicalWrapped[i] = g.wrapped[ring]
	}

	newScrollback := maxInt(0, (g.bufferHeight-g.rows))
	newBH := rows + newScrollback
	newCells := make([][]Cell, newBH)
	newWrapped := make([]bool, newBH)
	newDirty := make([]int, newBH)

	// Place rows from the front, so that on grow the new blank rows land
	// below the old content. On shrink, visible rows below both the new
	// height and the cursor are dropped from the bottom; when the cursor is
	// at or below the new height, the oldest rows are dropped instead.
	end := total - maxInt(0, g.rows-maxInt(rows, cursorRow+1))
	keep := minInt(end, newBH)
	srcStart := end - keep
	for i := 0; i < keep; i++ {
		dst := i
		src := srcStart + i
		row := resizeRow(logical[src], cols)
		newCells[dst] = row
		newWrapped[dst] = logicalWrapped[src]
	}
	for i := keep; i < newBH; i++ {
		newCells[i] = newBlankRow(cols)
	}

	g.cells = newCells
	g.wrapped = newWrapped
	g.dirtyRow = newDirty
	g.bufferHeight = newBH
	g.rows = rows
	g.cols = cols
	g.screenHead = newBH - rows
	g.viewOffset = 0

	newTabStops := make([]bool, cols)
	copy(newTabStops, g.tabStops)
	for i := len(g.tabStops); i < cols; i += 8 {
		newTabStops[i] = true
	}
	g.tabStops = newTabStops

	g.dirtyRect = Rect{Top: 0, Left: 0, Bottom: rows, Right: cols}
	for i := range g.dirtyRow {
		g.dirtyRow[i] = dirtyFrames
	}
}

func resizeRow(row []Cell, cols int) []Cell {
	out := make([]Cell, cols)
	for i := range out {
		if i < len(row) {
			out[i] = row[i]
		} else {
			out[i] = NewCell()
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// --- Scrollback view ---

// ScrollbackLen returns how many rows above the live viewport exist.
func (g *Grid) ScrollbackLen() int { return g.bufferHeight - g.rows }

// SetViewOffset scrolls the renderer's window; 0 is live, up to
// ScrollbackLen() is the oldest retained line.
func (g *Grid) SetViewOffset(n int) {
	if n < 0 {
		n = 0
	}
	if max := g.ScrollbackLen(); n > max {
		n = max
	}
	g.viewOffset = n
}

func (g *Grid) ViewOffset() int { return g.viewOffset }

// --- Tab stops ---

func (g *Grid) SetTabStop(col int) {
	if col >= 0 && col < g.cols {
		g.tabStops[col] = true
	}
}
func (g *Grid) ClearTabStop(col int) {
	if col >= 0 && col < g.cols {
		g.tabStops[col] = false
	}
}
func (g *Grid) ClearAllTabStops() {
	for i := range g.tabStops {
		g.tabStops[i] = false
	}
}
func (g *Grid) NextTabStop(col int) int {
	for c := col + 1; c < g.cols; c++ {
		if g.tabStops[c] {
			return c
		}
	}
	return g.cols - 1
}
func (g *Grid) PrevTabStop(col int) int {
	for c := col - 1; c >= 0; c-- {
		if g.tabStops[c] {
			return c
		}
	}
	return 0
}

func (g *Grid) IsWrapped(row int) bool {
	if row < 0 || row >= g.rows {
		return false
	}
	return g.wrapped[g.ringRow(row)]
}
func (g *Grid) SetWrapped(row int, wrapped bool) {
	if row < 0 || row >= g.rows {
		return
	}
	g.wrapped[g.ringRow(row)] = wrapped
}

// FillWithE implements DECALN: every visible cell becomes 'E'.
func (g *Grid) FillWithE() {
	for row := 0; row < g.rows; row++ {
		line := g.cells[g.ringRow(row)]
		for col := range line {
			line[col].Reset()
			line[col].Char = 'E'
			line[col].MarkDirty()
		}
		g.markRowDirty(row)
	}
}
