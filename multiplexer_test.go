package kterm

import (
	"testing"

	"github.com/kterm/kterm/internal/klog"
)

func testConfig(rows, cols int) Config {
	cfg := NewConfig()
	cfg.Rows, cfg.Cols = rows, cols
	cfg.Logger = klog.Nop()
	return cfg
}

func TestTerminal_NewTerminalOpensSessionZero(t *testing.T) {
	term := NewTerminal(testConfig(24, 80))

	if term.Session(0) == nil {
		t.Fatal("session 0 should be open after NewTerminal")
	}
	if term.ActiveIndex() != 0 {
		t.Errorf("ActiveIndex() = %d, want 0", term.ActiveIndex())
	}
	if term.Active() != term.Session(0) {
		t.Error("Active() should return session 0")
	}
}

func TestTerminal_OpenAndCloseSession(t *testing.T) {
	term := NewTerminal(testConfig(24, 80))

	idx := term.OpenSession(testConfig(24, 80))
	if idx != 1 {
		t.Fatalf("OpenSession() = %d, want 1", idx)
	}
	if term.Session(1) == nil {
		t.Fatal("session 1 should be open")
	}

	term.CloseSession(1)
	if term.Session(1) != nil {
		t.Error("session 1 should be nil after CloseSession")
	}
}

func TestTerminal_OpenSessionExhaustsSlots(t *testing.T) {
	term := NewTerminal(testConfig(24, 80))
	for i := 1; i < MaxSessions; i++ {
		if idx := term.OpenSession(testConfig(24, 80)); idx != i {
			t.Fatalf("OpenSession() = %d, want %d", idx, i)
		}
	}
	if idx := term.OpenSession(testConfig(24, 80)); idx != -1 {
		t.Errorf("OpenSession() with all slots full = %d, want -1", idx)
	}
}

func TestTerminal_CloseActiveSessionMovesActive(t *testing.T) {
	term := NewTerminal(testConfig(24, 80))
	term.OpenSession(testConfig(24, 80))

	term.CloseSession(0)
	if term.ActiveIndex() != 1 {
		t.Errorf("ActiveIndex() after closing active session = %d, want 1", term.ActiveIndex())
	}
}

func TestTerminal_SetActive(t *testing.T) {
	term := NewTerminal(testConfig(24, 80))
	term.OpenSession(testConfig(24, 80))

	if !term.SetActive(1) {
		t.Fatal("SetActive(1) should succeed")
	}
	if term.ActiveIndex() != 1 {
		t.Errorf("ActiveIndex() = %d, want 1", term.ActiveIndex())
	}
	if term.SetActive(2) {
		t.Error("SetActive(2) should fail: slot empty")
	}
}

func TestTerminal_SharedPalette(t *testing.T) {
	term := NewTerminal(testConfig(24, 80))
	term.OpenSession(testConfig(24, 80))

	if term.Session(0).palette != term.Session(1).palette {
		t.Error("every session should share the Terminal's palette")
	}
	if term.Session(0).palette != term.Palette() {
		t.Error("Terminal.Palette() should be the shared instance")
	}
}

func TestTerminal_SetOutputSinkAppliesToAllSessions(t *testing.T) {
	term := NewTerminal(testConfig(24, 80))
	term.OpenSession(testConfig(24, 80))

	var got [][]byte
	term.SetOutputSink(func(p []byte) {
		got = append(got, append([]byte(nil), p...))
	})

	term.Session(0).writeResponseString("a")
	term.Session(1).writeResponseString("b")

	if len(got) != 2 {
		t.Fatalf("sink invocations = %d, want 2", len(got))
	}
}

func TestTerminal_AttachRedirectsTraffic(t *testing.T) {
	term := NewTerminal(testConfig(5, 20))
	term.OpenSession(testConfig(5, 20))

	if !term.Attach(0, 1) {
		t.Fatal("Attach(0, 1) should succeed")
	}

	term.Session(0).WriteBytes([]byte("hi"))
	term.Session(0).Flush()
	term.Session(1).Flush()

	if term.Session(0).Snapshot(SnapshotDetailText).Lines[0].Text != "" {
		t.Error("session 0 should not have received the redirected bytes")
	}
	if term.Session(1).Snapshot(SnapshotDetailText).Lines[0].Text != "hi" {
		t.Error("session 1 should have received the bytes attached from session 0")
	}

	if !term.Attach(0, 0) {
		t.Fatal("Attach(0, 0) (detach) should succeed")
	}
	if term.Session(0).attachTarget != nil {
		t.Error("attachTarget should be nil after self-attach detaches")
	}
}

func TestTerminal_AttachRejectsUnknownSessions(t *testing.T) {
	term := NewTerminal(testConfig(24, 80))
	if term.Attach(0, 3) {
		t.Error("Attach to an unopened session should fail")
	}
}

func TestTerminal_Broadcast(t *testing.T) {
	term := NewTerminal(testConfig(5, 20))
	term.OpenSession(testConfig(5, 20))

	term.Broadcast([]byte("hi"))
	term.Session(0).Flush()
	term.Session(1).Flush()

	if term.Session(0).Snapshot(SnapshotDetailText).Lines[0].Text != "hi" {
		t.Error("session 0 should receive broadcast text")
	}
	if term.Session(1).Snapshot(SnapshotDetailText).Lines[0].Text != "hi" {
		t.Error("session 1 should receive broadcast text")
	}
}

func TestTerminal_DispatchInputEncodesKeyEvent(t *testing.T) {
	term := NewTerminal(testConfig(5, 20))

	var out []byte
	term.SetOutputSink(func(p []byte) { out = append(out, p...) })

	term.Active().input.Push(InputEvent{Kind: InputKey, Key: KeyEvent{Keycode: 'a'}})
	term.DispatchInput()

	if string(out) != "a" {
		t.Errorf("DispatchInput() response = %q, want %q", out, "a")
	}
}

func TestTerminal_DispatchInputAppliesResize(t *testing.T) {
	term := NewTerminal(testConfig(5, 20))
	s := term.Active()

	s.input.Push(InputEvent{Kind: InputWindow, Window: WindowEvent{Kind: WindowResize, Rows: 10, Cols: 40}})
	term.DispatchInput()

	if s.rows != 10 || s.cols != 40 {
		t.Errorf("session size after resize = %dx%d, want 10x40", s.rows, s.cols)
	}
}

func TestTerminal_DispatchInputBracketsPaste(t *testing.T) {
	term := NewTerminal(testConfig(5, 20))
	s := term.Active()
	s.modes |= ModeBracketedPaste

	var out []byte
	term.SetOutputSink(func(p []byte) { out = append(out, p...) })

	s.input.Push(InputEvent{Kind: InputWindow, Window: WindowEvent{Kind: WindowPaste, Paste: []byte("pasted")}})
	term.DispatchInput()

	want := "\x1b[200~pasted\x1b[201~"
	if string(out) != want {
		t.Errorf("DispatchInput() paste response = %q, want %q", out, want)
	}
}

func TestTerminal_DispatchInputDirectModeEchoesLocally(t *testing.T) {
	term := NewTerminal(testConfig(5, 20))
	s := term.Active()
	s.directInput = true

	var out []byte
	term.SetOutputSink(func(p []byte) { out = append(out, p...) })

	s.input.Push(InputEvent{Kind: InputKey, Key: KeyEvent{Keycode: 'x', UTF8: "x"}})
	term.DispatchInput()
	s.Flush()

	if len(out) != 0 {
		t.Errorf("direct-input mode should not emit response bytes, got %q", out)
	}
	if s.Snapshot(SnapshotDetailText).Lines[0].Text != "x" {
		t.Error("direct-input mode should echo the key into the grid")
	}
}

func TestFontMetrics_AdvanceFallsBackToRuneWidth(t *testing.T) {
	f := NewFontMetrics()
	if f.Advance('a') != float64(runeWidth('a')) {
		t.Errorf("Advance('a') = %v, want runeWidth fallback", f.Advance('a'))
	}

	f.SetAdvance('a', 1.5)
	if f.Advance('a') != 1.5 {
		t.Errorf("Advance('a') after SetAdvance = %v, want 1.5", f.Advance('a'))
	}
}
