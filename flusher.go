package kterm

// Flusher drains a Session's OpQueue into its active Grid under a
// per-frame budget (spec.md §4.2).
type Flusher struct {
	MaxOpsPerFlush int
}

// Flush pops up to f.MaxOpsPerFlush ops from s.ops and applies them to
// s.activeGrid(), honoring the resize-hardening rule: once a Resize op is
// applied, every remaining queued op is re-clipped to the new dimensions
// before it is (or isn't) applied.
func (f *Flusher) Flush(s *Session) {
	budget := f.MaxOpsPerFlush
	if budget <= 0 {
		budget = 1
	}

	coalescePrintRuns(s.ops)

	for budget > 0 {
		op, ok := s.ops.Pop()
		if !ok {
			break
		}
		f.apply(s, op)
		budget--
	}
}

func (f *Flusher) apply(s *Session, op Op) {
	switch op.Kind {
	case OpPrintChar:
		f.applyPrintRun(s, op)
	case OpScrollUp:
		s.activeGrid().ScrollUp(op.Top, op.Bottom, op.N)
	case OpScrollDown:
		s.activeGrid().ScrollDown(op.Top, op.Bottom, op.N)
	case OpInsertLines:
		s.activeGrid().ScrollDown(op.Row, op.Bottom, op.N)
	case OpDeleteLines:
		s.activeGrid().ScrollUp(op.Row, op.Bottom, op.N)
	case OpFillRectMasked:
		s.activeGrid().FillRectMasked(op.Rect, op.Mask, op.Value)
	case OpCopyRect:
		s.activeGrid().CopyRect(op.SrcRow, op.SrcCol, op.DstRow, op.DstCol, op.W, op.H)
	case OpEraseInDisplay:
		s.applyEraseInDisplay(op.N)
	case OpEraseInLine:
		s.applyEraseInLine(op.Row, op.N)
	case OpInsertChars:
		s.activeGrid().InsertBlanks(op.Row, op.Col, op.N)
	case OpDeleteChars:
		s.activeGrid().DeleteChars(op.Row, op.Col, op.N)
	case OpResize:
		f.applyResize(s, op)
	case OpReset:
		s.applyFullReset()
	}
}

func (f *Flusher) applyPrintRun(s *Session, op Op) {
	g := s.activeGrid()
	cell := NewCell()
	op.Template.Apply(&cell)
	cell.Char = op.Rune
	width := runeWidth(op.Rune)
	if width == 2 {
		cell.SetFlag(CellWide)
	}
	g.SetCell(op.Row, op.Col, cell)
	if width == 2 && op.Col+1 < g.Cols() {
		spacer := NewCell()
		spacer.SetFlag(CellWideContinuation)
		g.SetCell(op.Row, op.Col+1, spacer)
	}
}

// applyResize atomically reallocates the grid, clamps the cursor and
// margins, then walks every op still queued behind this one, clipping its
// rect/row parameters to the new bounds (or dropping it if it now falls
// entirely outside the grid). This is the hardening rule spec.md §4.2 and
// §8 scenario 6 require: a queued CopyRect computed against the old width
// must never read/write past the new one.
func (f *Flusher) applyResize(s *Session, op Op) {
	s.resizeGrids(op.NewRows, op.NewCols, op.CursorRow)

	rows, cols := op.NewRows, op.NewCols
	i := 0
	for i < s.ops.Len() {
		queued, ok := s.ops.Peek(i)
		if !ok {
			break
		}
		clipped, keep := clipOpToGrid(queued, rows, cols)
		if !keep {
			s.ops.RemoveIndex(i)
			continue
		}
		s.ops.Reslice(i, clipped)
		i++
	}
}

// clipOpToGrid re-validates a single queued op against a (possibly
// shrunk) grid. keep is false when the op has no remaining effect.
func clipOpToGrid(op Op, rows, cols int) (Op, bool) {
	switch op.Kind {
	case OpPrintChar:
		if op.Row >= rows || op.Col >= cols {
			return op, false
		}
	case OpScrollUp, OpScrollDown:
		if op.Top >= rows {
			return op, false
		}
		if op.Bottom > rows {
			op.Bottom = rows
		}
	case OpInsertLines, OpDeleteLines:
		if op.Row >= rows {
			return op, false
		}
		if op.Bottom > rows {
			op.Bottom = rows
		}
	case OpFillRectMasked:
		op.Rect = op.Rect.clip(rows, cols)
		if op.Rect.Empty() {
			return op, false
		}
	case OpCopyRect:
		if op.SrcRow >= rows || op.SrcCol >= cols || op.DstRow >= rows || op.DstCol >= cols {
			return op, false
		}
		if op.SrcRow+op.H > rows {
			op.H = rows - op.SrcRow
		}
		if op.DstRow+op.H > rows {
			op.H = rows - op.DstRow
		}
		if op.SrcCol+op.W > cols {
			op.W = cols - op.SrcCol
		}
		if op.DstCol+op.W > cols {
			op.W = cols - op.DstCol
		}
		if op.W <= 0 || op.H <= 0 {
			return op, false
		}
	case OpEraseInLine, OpInsertChars, OpDeleteChars:
		if op.Row >= rows || op.Col >= cols {
			return op, false
		}
	}
	return op, true
}

// coalescePrintRuns is a no-op hook point, kept as an explicit step so the
// flush algorithm mirrors spec.md §4.2's three-step structure. PrintChar
// ops are not merged anywhere: Session.WriteChar pushes one op per rune
// (see session.go), and each is applied on its own.
func coalescePrintRuns(*OpQueue) {}
