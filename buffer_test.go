package kterm

import "testing"

func TestNewGrid(t *testing.T) {
	g := NewGrid(24, 80, 0)

	if g.Rows() != 24 {
		t.Errorf("expected 24 rows, got %d", g.Rows())
	}
	if g.Cols() != 80 {
		t.Errorf("expected 80 cols, got %d", g.Cols())
	}
}

func TestGridCell(t *testing.T) {
	g := NewGrid(24, 80, 0)

	cell := g.Cell(0, 0)
	if cell == nil {
		t.Fatal("expected cell at (0,0)")
	}
	cell.Char = 'A'

	if g.Cell(0, 0).Char != 'A' {
		t.Errorf("expected 'A', got %q", g.Cell(0, 0).Char)
	}
}

func TestGridCellOutOfBounds(t *testing.T) {
	g := NewGrid(24, 80, 0)

	if g.Cell(-1, 0) != nil {
		t.Error("expected nil for negative row")
	}
	if g.Cell(0, -1) != nil {
		t.Error("expected nil for negative col")
	}
	if g.Cell(24, 0) != nil {
		t.Error("expected nil for row >= rows")
	}
	if g.Cell(0, 80) != nil {
		t.Error("expected nil for col >= cols")
	}
}

func TestGridClearRow(t *testing.T) {
	g := NewGrid(24, 80, 0)
	g.Cell(0, 0).Char = 'A'
	g.Cell(0, 1).Char = 'B'

	g.ClearRow(0)

	if g.Cell(0, 0).Char != ' ' || g.Cell(0, 1).Char != ' ' {
		t.Error("expected row to be cleared")
	}
}

func TestGridScrollUp(t *testing.T) {
	g := NewGrid(5, 10, 0)
	for row := 0; row < 5; row++ {
		g.Cell(row, 0).Char = rune('0' + row)
	}

	g.ScrollUp(0, 5, 1)

	if g.Cell(0, 0).Char != '1' {
		t.Errorf("expected '1', got %q", g.Cell(0, 0).Char)
	}
	if g.Cell(4, 0).Char != ' ' {
		t.Errorf("expected space, got %q", g.Cell(4, 0).Char)
	}
}

func TestGridScrollDown(t *testing.T) {
	g := NewGrid(5, 10, 0)
	for row := 0; row < 5; row++ {
		g.Cell(row, 0).Char = rune('0' + row)
	}

	g.ScrollDown(0, 5, 1)

	if g.Cell(1, 0).Char != '0' {
		t.Errorf("expected '0', got %q", g.Cell(1, 0).Char)
	}
	if g.Cell(0, 0).Char != ' ' {
		t.Errorf("expected space, got %q", g.Cell(0, 0).Char)
	}
}

func TestGridScrollbackAccumulates(t *testing.T) {
	g := NewGrid(5, 10, 100)
	for row := 0; row < 5; row++ {
		g.Cell(row, 0).Char = rune('A' + row)
	}

	g.ScrollUp(0, 5, 1)

	if g.ScrollbackLen() != 100 {
		t.Fatalf("expected ring's fixed scrollback capacity of 100, got %d", g.ScrollbackLen())
	}
	g.SetViewOffset(1)
	if g.Cell(0, 0).Char != 'A' {
		t.Errorf("expected scrolled-back row 0 to show 'A', got %q", g.Cell(0, 0).Char)
	}
}

func TestGridTabStops(t *testing.T) {
	g := NewGrid(24, 80, 0)

	if next := g.NextTabStop(0); next != 8 {
		t.Errorf("expected next tab at 8, got %d", next)
	}
	if next := g.NextTabStop(8); next != 16 {
		t.Errorf("expected next tab at 16, got %d", next)
	}
	if prev := g.PrevTabStop(16); prev != 8 {
		t.Errorf("expected prev tab at 8, got %d", prev)
	}
}

func TestGridResizePreservesContent(t *testing.T) {
	g := NewGrid(10, 20, 0)
	g.Cell(0, 0).Char = 'A'
	g.Cell(9, 10).Char = 'B'

	g.Resize(20, 40, 0)

	if g.Rows() != 20 || g.Cols() != 40 {
		t.Errorf("expected 20x40, got %dx%d", g.Rows(), g.Cols())
	}
	if g.Cell(0, 0).Char != 'A' {
		t.Error("expected old row 0's content to stay on row 0 when growing rows with no scrollback")
	}
	if g.Cell(9, 10).Char != 'B' {
		t.Error("expected old row 9's content to stay on row 9, with blank rows added below it")
	}
}

func TestGridDirtyTracking(t *testing.T) {
	g := NewGrid(24, 80, 0)
	g.ClearDirty()

	if rect := g.DirtyRect(); !rect.Empty() {
		t.Error("expected no dirty rect after ClearDirty")
	}

	g.SetCell(0, 0, Cell{Char: 'A'})

	if rect := g.DirtyRect(); rect.Empty() {
		t.Error("expected a dirty rect after SetCell")
	}
}

func TestGridInsertBlanks(t *testing.T) {
	g := NewGrid(24, 80, 0)
	g.Cell(0, 0).Char = 'A'
	g.Cell(0, 1).Char = 'B'
	g.Cell(0, 2).Char = 'C'

	g.InsertBlanks(0, 1, 2)

	if g.Cell(0, 0).Char != 'A' {
		t.Errorf("expected 'A', got %q", g.Cell(0, 0).Char)
	}
	if g.Cell(0, 1).Char != ' ' || g.Cell(0, 2).Char != ' ' {
		t.Error("expected inserted blanks at cols 1-2")
	}
	if g.Cell(0, 3).Char != 'B' {
		t.Errorf("expected 'B' shifted to col 3, got %q", g.Cell(0, 3).Char)
	}
}

func TestGridDeleteChars(t *testing.T) {
	g := NewGrid(24, 80, 0)
	g.Cell(0, 0).Char = 'A'
	g.Cell(0, 1).Char = 'B'
	g.Cell(0, 2).Char = 'C'
	g.Cell(0, 3).Char = 'D'

	g.DeleteChars(0, 1, 2)

	if g.Cell(0, 0).Char != 'A' {
		t.Errorf("expected 'A', got %q", g.Cell(0, 0).Char)
	}
	if g.Cell(0, 1).Char != 'D' {
		t.Errorf("expected 'D' shifted left, got %q", g.Cell(0, 1).Char)
	}
}

func TestGridWrappedLineTracking(t *testing.T) {
	g := NewGrid(5, 10, 0)

	if g.IsWrapped(0) {
		t.Error("expected line 0 not wrapped initially")
	}
	g.SetWrapped(0, true)
	if !g.IsWrapped(0) {
		t.Error("expected line 0 to be wrapped")
	}
	g.SetWrapped(0, false)
	if g.IsWrapped(0) {
		t.Error("expected line 0 not wrapped after clear")
	}

	g.SetWrapped(-1, true)
	g.SetWrapped(100, true)
	if g.IsWrapped(-1) || g.IsWrapped(100) {
		t.Error("expected out-of-bounds access not to panic or report wrapped")
	}
}
