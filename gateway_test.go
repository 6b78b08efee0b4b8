package kterm

import (
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
)

func dcsFrame(payload string) string {
	return "\x1bP" + payload + "\x1b\\"
}

func TestGateway_SetCursorAndGet(t *testing.T) {
	s := newTestSession(10, 40)
	s.SetPalette(NewPalette())

	var out []byte
	s.ResponseRing().SetSink(func(p []byte) { out = append(out, p...) })

	s.WriteBytes([]byte(dcsFrame("GATE;c1;1;SET;cursor;x=5;y=2")))
	s.Flush()

	if s.cursor.X != 5 || s.cursor.Y != 2 {
		t.Fatalf("cursor = (%d,%d), want (5,2)", s.cursor.X, s.cursor.Y)
	}
	if !strings.Contains(string(out), "GATE;c1;1;OK;SET;2") {
		t.Errorf("SET response = %q, want to contain OK;SET;2", out)
	}

	out = nil
	s.WriteBytes([]byte(dcsFrame("GATE;c1;2;GET;cursor")))
	s.Flush()
	if !strings.Contains(string(out), "x=5") || !strings.Contains(string(out), "y=2") {
		t.Errorf("GET response = %q, want x=5 and y=2", out)
	}
}

func TestGateway_UnknownCommand(t *testing.T) {
	s := newTestSession(10, 40)
	var out []byte
	s.ResponseRing().SetSink(func(p []byte) { out = append(out, p...) })

	s.WriteBytes([]byte(dcsFrame("GATE;c1;1;BOGUS")))
	s.Flush()

	if !strings.Contains(string(out), "ERR;UNKNOWN_COMMAND") {
		t.Errorf("response = %q, want ERR;UNKNOWN_COMMAND", out)
	}
}

func TestGateway_ResetSubsystems(t *testing.T) {
	s := newTestSession(10, 40)
	s.SetCursorCol(7)
	s.SetCursorRow(3)

	var out []byte
	s.ResponseRing().SetSink(func(p []byte) { out = append(out, p...) })

	s.WriteBytes([]byte(dcsFrame("GATE;c1;1;RESET;cursor")))
	s.Flush()

	if s.cursor.X != 0 || s.cursor.Y != 0 {
		t.Errorf("cursor after RESET = (%d,%d), want (0,0)", s.cursor.X, s.cursor.Y)
	}
	if !strings.Contains(string(out), "OK") {
		t.Errorf("response = %q, want OK", out)
	}
}

func TestGateway_ExtDirectToggle(t *testing.T) {
	s := newTestSession(10, 40)
	var out []byte
	s.ResponseRing().SetSink(func(p []byte) { out = append(out, p...) })

	s.WriteBytes([]byte(dcsFrame("GATE;c1;1;EXT;direct;on")))
	s.Flush()

	if !s.DirectInput() {
		t.Error("direct-input mode should be on")
	}
	if !strings.Contains(string(out), "OK;DIRECT;1") {
		t.Errorf("response = %q, want OK;DIRECT;1", out)
	}
}

// TestGateway_ExtGridFillQueuesOp drives spec.md §8 scenario 7's literal
// bytes: fill;sid;x;y;w;h;mask;ch;fg;bg;ul;style;flags, mask=1 (CH only),
// ch=65 ('A'), over a 5x5 rect at the origin.
func TestGateway_ExtGridFillQueuesOp(t *testing.T) {
	s := newTestSession(10, 40)
	var out []byte
	s.ResponseRing().SetSink(func(p []byte) { out = append(out, p...) })

	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;fill;0;0;0;5;5;1;65;0;0;0;0;0")))
	s.Flush()

	if !strings.Contains(string(out), "OK;QUEUED;1") {
		t.Fatalf("response = %q, want OK;QUEUED;1", out)
	}
	g := s.activeGrid()
	if g.Cell(0, 0).Char != 'A' || g.Cell(4, 4).Char != 'A' {
		t.Errorf("Cell(0,0)/(4,4) = %q/%q, want 'A'/'A'", g.Cell(0, 0).Char, g.Cell(4, 4).Char)
	}
	if g.Cell(5, 5).Char != ' ' {
		t.Errorf("Cell(5,5) = %q, want unchanged (space)", g.Cell(5, 5).Char)
	}
}

func TestGateway_ExtGridFillMasksPreserveUntouchedFields(t *testing.T) {
	s := newTestSession(10, 40)
	s.SetPalette(NewPalette())
	var out []byte
	s.ResponseRing().SetSink(func(p []byte) { out = append(out, p...) })

	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;fill;0;0;0;5;5;1;65;0;0;0;0;0")))
	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;fill;0;1;1;3;3;2;;pal:1")))
	s.Flush()
	_ = out

	g := s.activeGrid()
	if g.Cell(2, 2).Char != 'A' {
		t.Fatalf("Cell(2,2).Char = %q, want 'A' preserved", g.Cell(2, 2).Char)
	}
	if g.Cell(2, 2).Fg != PaletteColor(1) {
		t.Errorf("Cell(2,2).Fg = %+v, want palette 1", g.Cell(2, 2).Fg)
	}
	if g.Cell(0, 0).Fg == PaletteColor(1) {
		t.Errorf("Cell(0,0) is outside the FG rect and should not have been recolored")
	}
}

func TestGateway_ExtGridFillLineDirectionalWrap(t *testing.T) {
	s := newTestSession(10, 25)
	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;fill_line;0;0;0;h;5;1;72")))
	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;fill_line;0;20;0;v;5;1;86")))
	s.Flush()

	g := s.activeGrid()
	for i := 0; i < 5; i++ {
		if g.Cell(0, i).Char != 'H' {
			t.Errorf("Cell(0,%d) = %q, want 'H'", i, g.Cell(0, i).Char)
		}
	}
	if g.Cell(0, 5).Char != ' ' {
		t.Errorf("Cell(0,5) = %q, want unchanged", g.Cell(0, 5).Char)
	}
	for i := 0; i < 5; i++ {
		if g.Cell(i, 20).Char != 'V' {
			t.Errorf("Cell(%d,20) = %q, want 'V'", i, g.Cell(i, 20).Char)
		}
	}
	if g.Cell(5, 20).Char != ' ' {
		t.Errorf("Cell(5,20) = %q, want unchanged", g.Cell(5, 20).Char)
	}

	sx := s.cols - 2
	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;fill_line;0;" + strconv.Itoa(sx) + ";1;h;5;1;87;0;0;0;0;0;1")))
	s.Flush()
	if g.Cell(1, sx).Char != 'W' || g.Cell(1, sx+1).Char != 'W' {
		t.Fatalf("wrap span before edge not filled: %q,%q", g.Cell(1, sx).Char, g.Cell(1, sx+1).Char)
	}
	if g.Cell(2, 0).Char != 'W' || g.Cell(2, 1).Char != 'W' || g.Cell(2, 2).Char != 'W' {
		t.Fatalf("wrap span after edge not filled on next row")
	}
	if g.Cell(2, 3).Char != ' ' {
		t.Errorf("Cell(2,3) = %q, want unchanged past the wrapped span", g.Cell(2, 3).Char)
	}
}

func TestGateway_ExtGridFillCircleInclusiveRadius(t *testing.T) {
	s := newTestSession(24, 24)
	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;fill_circle;0;10;10;4;1;79")))
	s.Flush()

	g := s.activeGrid()
	if g.Cell(10, 10).Char != 'O' || g.Cell(10, 14).Char != 'O' || g.Cell(6, 10).Char != 'O' {
		t.Fatal("expected circle center, right edge and top edge to be filled")
	}
	if g.Cell(10, 15).Char != ' ' {
		t.Errorf("Cell(10,15) = %q, want unchanged (outside radius)", g.Cell(10, 15).Char)
	}
	if g.Cell(13, 13).Char != ' ' {
		t.Errorf("Cell(13,13) (dx=3,dy=3, 18>16) = %q, want unchanged", g.Cell(13, 13).Char)
	}
	if g.Cell(12, 12).Char != 'O' {
		t.Errorf("Cell(12,12) (dx=2,dy=2, 8<=16) = %q, want 'O'", g.Cell(12, 12).Char)
	}
}

func TestGateway_ExtGridStreamWritesPackedCodepoints(t *testing.T) {
	s := newTestSession(10, 40)
	data := []byte{'H', 0, 0, 0, 'E', 0, 0, 0, 'L', 0, 0, 0, 'L', 0, 0, 0, 'O', 0, 0, 0}
	b64 := base64.StdEncoding.EncodeToString(data)

	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;stream;0;0;1;5;1;0x1;5;0;" + b64)))
	s.Flush()

	g := s.activeGrid()
	if g.Cell(1, 0).Char != 'H' || g.Cell(1, 4).Char != 'O' {
		t.Errorf("stream result = %q..%q, want H..O", g.Cell(1, 0).Char, g.Cell(1, 4).Char)
	}
}

func TestGateway_ExtGridStreamZeroWidthDefaultsToOne(t *testing.T) {
	s := newTestSession(10, 40)
	data := []byte{'Z', 0, 0, 0}
	b64 := base64.StdEncoding.EncodeToString(data)

	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;stream;0;0;0;0;1;0x1;1;0;" + b64)))
	s.Flush()

	if s.activeGrid().Cell(0, 0).Char != 'Z' {
		t.Fatalf("Cell(0,0) = %q, want 'Z'", s.activeGrid().Cell(0, 0).Char)
	}
}

func TestGateway_ExtGridCopyPreservesSource(t *testing.T) {
	s := newTestSession(10, 40)
	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;fill;0;0;1;5;1;1;72")))
	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;copy;0;0;1;0;2;5;1;0")))
	s.Flush()

	g := s.activeGrid()
	if g.Cell(2, 0).Char != 'H' {
		t.Errorf("Cell(2,0) = %q, want copied 'H'", g.Cell(2, 0).Char)
	}
	if g.Cell(1, 0).Char != 'H' {
		t.Errorf("Cell(1,0) = %q, want source preserved", g.Cell(1, 0).Char)
	}
}

func TestGateway_ExtGridMoveClearsSource(t *testing.T) {
	s := newTestSession(10, 40)
	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;fill;0;0;2;5;1;1;72")))
	s.WriteBytes([]byte(dcsFrame("GATE;KTERM;0;EXT;grid;move;0;0;2;0;3;5;1;0")))
	s.Flush()

	g := s.activeGrid()
	if g.Cell(3, 0).Char != 'H' {
		t.Errorf("Cell(3,0) = %q, want moved 'H'", g.Cell(3, 0).Char)
	}
	if g.Cell(2, 0).Char != ' ' {
		t.Errorf("Cell(2,0) = %q, want cleared source", g.Cell(2, 0).Char)
	}
}

func TestGateway_ExtFallsThroughToCallback(t *testing.T) {
	s := newTestSession(10, 40)
	var gotExt string
	var gotArgs []string
	s.SetGatewayCallback(func(sess *Session, ext string, args []string) (string, bool) {
		gotExt, gotArgs = ext, args
		return "OK;CUSTOM", true
	})

	var out []byte
	s.ResponseRing().SetSink(func(p []byte) { out = append(out, p...) })

	s.WriteBytes([]byte(dcsFrame("GATE;c1;1;EXT;myext;foo;bar")))
	s.Flush()

	if gotExt != "myext" {
		t.Errorf("callback ext = %q, want myext", gotExt)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "foo" || gotArgs[1] != "bar" {
		t.Errorf("callback args = %v, want [foo bar]", gotArgs)
	}
	if !strings.Contains(string(out), "OK;CUSTOM") {
		t.Errorf("response = %q, want OK;CUSTOM", out)
	}
}

func TestGateway_PipeDecodesBase64AndFeedsVT(t *testing.T) {
	s := newTestSession(3, 20)
	var out []byte
	s.ResponseRing().SetSink(func(p []byte) { out = append(out, p...) })

	// base64("hi") == "aGk="
	s.WriteBytes([]byte(dcsFrame("GATE;c1;1;PIPE;VT;B64;aGk=")))
	s.Flush()

	if s.Snapshot(SnapshotDetailText).Lines[0].Text != "hi" {
		t.Errorf("grid after PIPE = %q, want \"hi\"", s.Snapshot(SnapshotDetailText).Lines[0].Text)
	}
	if !strings.Contains(string(out), "OK;PIPED;2") {
		t.Errorf("response = %q, want OK;PIPED;2", out)
	}
}

func TestGateway_PipeRejectsBadEncoding(t *testing.T) {
	s := newTestSession(3, 20)
	var out []byte
	s.ResponseRing().SetSink(func(p []byte) { out = append(out, p...) })

	s.WriteBytes([]byte(dcsFrame("GATE;c1;1;PIPE;VT;ZZZ;whatever")))
	s.Flush()

	if !strings.Contains(string(out), "ERR;UNKNOWN_ENCODING") {
		t.Errorf("response = %q, want ERR;UNKNOWN_ENCODING", out)
	}
}

func TestGateway_RawdumpStop(t *testing.T) {
	s := newTestSession(3, 20)
	other := newTestSession(3, 20)
	s.SetRawdumpSink(other)

	var out []byte
	s.ResponseRing().SetSink(func(p []byte) { out = append(out, p...) })

	s.WriteBytes([]byte(dcsFrame("GATE;c1;1;RAWDUMP;STOP")))
	s.Flush()

	if s.rawdumpSink != nil {
		t.Error("rawdumpSink should be nil after RAWDUMP;STOP")
	}
	if !strings.Contains(string(out), "OK;STOPPED") {
		t.Errorf("response = %q, want OK;STOPPED", out)
	}
}

func TestSplitGatewayFields_QuotedSemicolon(t *testing.T) {
	fields := splitGatewayFields(`GATE;c1;1;SET;session;title="a;b"`)
	want := []string{"GATE", "c1", "1", "SET", "session", "title=a;b"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields[%d] = %q, want %q", i, fields[i], want[i])
		}
	}
}
