package kterm

import (
	"testing"

	"github.com/kterm/kterm/internal/klog"
)

func TestOpQueue_PushPopOrder(t *testing.T) {
	q := NewOpQueue(klog.Nop())

	q.Push(Op{Kind: OpPrintChar, Rune: 'A'})
	q.Push(Op{Kind: OpPrintChar, Rune: 'B'})

	op, ok := q.Pop()
	if !ok || op.Rune != 'A' {
		t.Fatalf("Pop() = %+v, %v, want 'A', true", op, ok)
	}
	op, ok = q.Pop()
	if !ok || op.Rune != 'B' {
		t.Fatalf("Pop() = %+v, %v, want 'B', true", op, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("Pop() on empty queue returned ok=true")
	}
}

func TestOpQueue_DropsDataOpsOnOverflow(t *testing.T) {
	q := NewOpQueue(klog.Nop())

	for i := 0; i < q.Cap(); i++ {
		q.Push(Op{Kind: OpPrintChar, Rune: rune('a' + i%26)})
	}
	if q.Overflowed() {
		t.Fatalf("queue reports overflow before it is actually full")
	}
	q.Push(Op{Kind: OpPrintChar, Rune: 'Z'})

	if !q.Overflowed() {
		t.Fatalf("queue did not report overflow after exceeding capacity")
	}
	if q.Len() != q.Cap() {
		t.Fatalf("Len() = %d, want Cap() = %d (data op should be dropped, not grow the ring)", q.Len(), q.Cap())
	}
}

// TestOpQueue_StructuralOpsEvictDataOnOverflow confirms spec.md §4.2's
// data/structural reservation: once the ring is saturated with data ops, a
// structural op (Resize/Reset) must still get a slot by evicting the
// oldest data op, up to the reserved structural quota.
func TestOpQueue_StructuralOpsEvictDataOnOverflow(t *testing.T) {
	q := NewOpQueue(klog.Nop())

	for i := 0; i < q.Cap(); i++ {
		q.Push(Op{Kind: OpPrintChar, Rune: 'x'})
	}
	q.Push(Op{Kind: OpResize, NewRows: 10, NewCols: 10})

	if q.Len() != q.Cap() {
		t.Fatalf("Len() = %d, want Cap() = %d", q.Len(), q.Cap())
	}

	found := false
	for i := 0; i < q.Len(); i++ {
		op, ok := q.Peek(i)
		if !ok {
			t.Fatalf("Peek(%d) missing", i)
		}
		if op.Kind == OpResize {
			found = true
		}
	}
	if !found {
		t.Errorf("structural Resize op was dropped instead of evicting a data op")
	}
}

func TestOpQueue_PeekDoesNotConsume(t *testing.T) {
	q := NewOpQueue(klog.Nop())
	q.Push(Op{Kind: OpPrintChar, Rune: 'A'})

	if op, ok := q.Peek(0); !ok || op.Rune != 'A' {
		t.Fatalf("Peek(0) = %+v, %v, want 'A', true", op, ok)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d after Peek, want 1 (Peek must not consume)", q.Len())
	}
}

func TestOpQueue_RemoveIndexDropsQueuedOp(t *testing.T) {
	q := NewOpQueue(klog.Nop())
	q.Push(Op{Kind: OpPrintChar, Rune: 'A'})
	q.Push(Op{Kind: OpPrintChar, Rune: 'B'})
	q.Push(Op{Kind: OpPrintChar, Rune: 'C'})

	q.RemoveIndex(1) // drop 'B'

	op, _ := q.Pop()
	if op.Rune != 'A' {
		t.Fatalf("Pop() = %q, want 'A'", op.Rune)
	}
	op, _ = q.Pop()
	if op.Rune != 'C' {
		t.Fatalf("Pop() = %q, want 'C' (B should have been removed)", op.Rune)
	}
}

func TestOpQueue_ResliceReplacesInPlace(t *testing.T) {
	q := NewOpQueue(klog.Nop())
	q.Push(Op{Kind: OpCopyRect, W: 10, H: 10})

	q.Reslice(0, Op{Kind: OpCopyRect, W: 3, H: 3})

	op, ok := q.Peek(0)
	if !ok || op.W != 3 || op.H != 3 {
		t.Fatalf("Peek(0) = %+v, want clipped W=3,H=3", op)
	}
}

// TestClipOpToGrid_CopyRectShrinksIntoBounds grounds the resize-hardening
// contract directly against clipOpToGrid, independent of the dispatch
// path exercised in dispatch_test.go's DECCRA scenario.
func TestClipOpToGrid_CopyRectShrinksIntoBounds(t *testing.T) {
	op := Op{Kind: OpCopyRect, SrcRow: 0, SrcCol: 0, DstRow: 0, DstCol: 50, W: 80, H: 5}

	clipped, keep := clipOpToGrid(op, 24, 80)
	if !keep {
		t.Fatalf("clipOpToGrid dropped an op that still overlaps the new grid")
	}
	if clipped.W > 80-clipped.DstCol {
		t.Errorf("clipped.W = %d, leaves dest rect reaching col %d past the 80-col bound", clipped.W, clipped.DstCol+clipped.W)
	}
}

func TestClipOpToGrid_CopyRectFullyOutOfBoundsIsDropped(t *testing.T) {
	op := Op{Kind: OpCopyRect, SrcRow: 0, SrcCol: 100, DstRow: 0, DstCol: 0, W: 10, H: 5}

	_, keep := clipOpToGrid(op, 24, 80)
	if keep {
		t.Errorf("clipOpToGrid kept an op whose source rect starts entirely outside the new grid")
	}
}

func TestClipOpToGrid_FillRectMaskedClipsRect(t *testing.T) {
	op := Op{Kind: OpFillRectMasked, Rect: Rect{Top: 0, Left: 0, Bottom: 5, Right: 200}}

	clipped, keep := clipOpToGrid(op, 24, 80)
	if !keep {
		t.Fatalf("clipOpToGrid dropped a rect that still intersects the new grid")
	}
	if clipped.Rect.Right != 80 {
		t.Errorf("clipped.Rect.Right = %d, want 80", clipped.Rect.Right)
	}
}

func TestClipOpToGrid_PrintCharOutsideNewGridIsDropped(t *testing.T) {
	op := Op{Kind: OpPrintChar, Row: 23, Col: 90, Rune: 'Z'}

	_, keep := clipOpToGrid(op, 24, 80)
	if keep {
		t.Errorf("clipOpToGrid kept a PrintChar op whose column is past the new width")
	}
}

func TestOpQueue_Clear(t *testing.T) {
	q := NewOpQueue(klog.Nop())
	q.Push(Op{Kind: OpPrintChar})
	q.Push(Op{Kind: OpResize})

	q.Clear()

	if q.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", q.Len())
	}
	if _, ok := q.Pop(); ok {
		t.Errorf("Pop() after Clear returned ok=true")
	}
}
