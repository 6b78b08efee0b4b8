package kterm

import (
	"net"
	"testing"
	"time"

	"github.com/kterm/kterm/internal/klog"
	"github.com/kterm/kterm/internal/knet"
)

func TestNetBridge_AttachWiresSessionToConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	term := NewTerminal(testConfig(5, 20))
	bridge := NewNetBridge(term, klog.Nop())

	if !bridge.Attach(0, "c1", "tcp", ln.Addr().String(), knet.ProtocolRaw) {
		t.Fatal("Attach() should succeed")
	}

	s := term.Session(0)
	if s.net == nil || !s.net.Attached || s.net.ConnID != "c1" {
		t.Fatalf("session.net = %+v, want Attached ConnID=c1", s.net)
	}

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the connection")
	}
	defer server.Close()

	for i := 0; i < 200; i++ {
		bridge.Pump(0, "c1")
		if bridge.Connection("c1").State() == knet.StateConnected {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if bridge.Connection("c1").State() != knet.StateConnected {
		t.Fatal("connection never reached Connected")
	}

	s.writeResponseString("hi")
	buf := make([]byte, 2)
	_ = server.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := server.Read(buf); err != nil {
		t.Fatalf("server read error = %v", err)
	}
	if string(buf) != "hi" {
		t.Errorf("server received %q, want %q", buf, "hi")
	}

	if _, err := server.Write([]byte("yo")); err != nil {
		t.Fatalf("server write error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bridge.Pump(0, "c1")
		s.Flush()
		if s.Snapshot(SnapshotDetailText).Lines[0].Text == "yo" {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if s.Snapshot(SnapshotDetailText).Lines[0].Text != "yo" {
		t.Errorf("session grid = %q, want to contain \"yo\"", s.Snapshot(SnapshotDetailText).Lines[0].Text)
	}

	bridge.Detach(0, "c1")
	if s.net.Attached {
		t.Error("session.net.Attached should be false after Detach")
	}
}

func TestNetBridge_AttachAutoGeneratesUniqueIDs(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	term := NewTerminal(testConfig(5, 20))
	bridge := NewNetBridge(term, klog.Nop())
	term.OpenSession(testConfig(5, 20))

	id1, ok1 := bridge.AttachAuto(0, "tcp", ln.Addr().String(), knet.ProtocolRaw)
	id2, ok2 := bridge.AttachAuto(1, "tcp", ln.Addr().String(), knet.ProtocolRaw)
	if !ok1 || !ok2 {
		t.Fatal("AttachAuto() should succeed for both sessions")
	}
	if id1 == "" || id2 == "" {
		t.Fatal("AttachAuto() should return a non-empty connection id")
	}
	if id1 == id2 {
		t.Error("AttachAuto() should generate distinct ids across calls")
	}
	if bridge.Connection(id1) == nil || bridge.Connection(id2) == nil {
		t.Error("expected both generated ids to resolve to a tracked connection")
	}
}

func TestNetBridge_DiagnosticLifecycle(t *testing.T) {
	term := NewTerminal(testConfig(5, 20))
	bridge := NewNetBridge(term, klog.Nop())

	results := make(chan knet.DiagResult, 1)
	diag := knet.NewPingExt("127.0.0.1:1", func(r knet.DiagResult) { results <- r })

	id := bridge.StartDiagnostic(diag)
	if id == "" {
		t.Fatal("StartDiagnostic() should return the diagnostic's id")
	}
	if id != diag.ID() {
		t.Errorf("StartDiagnostic() id = %q, want %q", id, diag.ID())
	}

	bridge.StopDiagnostic(id)
	bridge.TickDiagnostics()

	select {
	case r := <-results:
		if r.Err != knet.ErrDiagCancelled {
			t.Errorf("expected a cancelled result, got err=%v", r.Err)
		}
		if r.ID != id {
			t.Errorf("result id = %q, want %q", r.ID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected TickDiagnostics to deliver a cancelled result")
	}
}
