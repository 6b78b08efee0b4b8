package kterm

import (
	"time"

	"github.com/google/uuid"

	"github.com/kterm/kterm/internal/klog"
	"github.com/kterm/kterm/internal/knet"
)

// NetBridge owns the knet.Connections backing a Terminal's sessions,
// resolving the opaque SessionNetAttachment.ConnID the session side
// carries into the concrete *knet.Connection that lives here — the
// one-way dependency session.go's doc comment describes to avoid a
// structural cycle between this package and knet.
type NetBridge struct {
	term  *Terminal
	conns map[string]*knet.Connection
	diags map[string]*knet.Diagnostic
	log   klog.Logger
}

// NewNetBridge returns a bridge for term's sessions.
func NewNetBridge(term *Terminal, log klog.Logger) *NetBridge {
	return &NetBridge{
		term:  term,
		conns: make(map[string]*knet.Connection),
		diags: make(map[string]*knet.Diagnostic),
		log:   log,
	}
}

// AttachAuto is Attach with a generated connID, for callers (the Gateway's
// EXT;net extension) that don't already have a natural connection name to
// reuse — each call gets a collision-free identifier a client can later
// pass back to Detach or a diagnostic lookup.
func (b *NetBridge) AttachAuto(index int, network, addr string, proto knet.Protocol) (string, bool) {
	connID := uuid.New().String()
	return connID, b.Attach(index, connID, network, addr, proto)
}

// StartDiagnostic launches one of the net package's sub-operations and
// tracks it under its own uuid so a later StopDiagnostic/TickDiagnostics
// pass can address it without the caller holding onto the *knet.Diagnostic
// itself (spec.md §4.8 "Sub-operations").
func (b *NetBridge) StartDiagnostic(d *knet.Diagnostic) string {
	b.diags[d.ID()] = d
	return d.ID()
}

// StopDiagnostic cancels the diagnostic named by id, if still running.
func (b *NetBridge) StopDiagnostic(id string) {
	if d, ok := b.diags[id]; ok {
		d.Cancel()
	}
}

// TickDiagnostics advances every tracked diagnostic by one step and drops
// whichever ones finished — a sub-operation's DiagCallback, supplied at
// construction, is where the result actually surfaces.
func (b *NetBridge) TickDiagnostics() {
	for id, d := range b.diags {
		d.Tick()
		if d.Done() {
			delete(b.diags, id)
		}
	}
}

// Attach dials addr for session index under protocol proto, wiring the
// session's outbound response bytes to flow to the socket and replies
// from Update's pump back into the session's byte inbox. connID
// identifies this connection for later lookups (Detach, Diagnostics).
func (b *NetBridge) Attach(index int, connID, network, addr string, proto knet.Protocol) bool {
	s := b.term.Session(index)
	if s == nil {
		return false
	}
	conn := knet.NewConnection(proto, b.log)
	conn.Dial(network, addr)
	b.conns[connID] = conn

	s.net = &SessionNetAttachment{Attached: true, ConnID: connID}
	s.ResponseRing().SetSink(func(p []byte) {
		if proto == knet.ProtocolTelnet {
			p = knet.EscapeIAC(p)
		}
		_, _ = conn.Write(p)
	})
	return true
}

// Detach tears down connID's connection and clears the owning session's
// attachment, zeroizing nothing here directly — credential zeroization
// happens inside Connection.SubmitAuth for the strings it touches.
func (b *NetBridge) Detach(index int, connID string) {
	if conn, ok := b.conns[connID]; ok {
		_ = conn.Close()
		delete(b.conns, connID)
	}
	if s := b.term.Session(index); s != nil && s.net != nil && s.net.ConnID == connID {
		s.net.Attached = false
	}
}

// Connection returns the concrete connection behind connID, or nil.
func (b *NetBridge) Connection(connID string) *knet.Connection { return b.conns[connID] }

const netBridgeReadBufSize = 4096

// Pump advances connID's lifecycle state machine by one step and, once
// it is Connected, reads whatever is available and feeds it into session
// index — the "network process" stage of the
// core's single cooperative Update (spec.md §5).
func (b *NetBridge) Pump(index int, connID string) {
	conn, ok := b.conns[connID]
	if !ok {
		return
	}
	conn.Update()
	if conn.State() != knet.StateConnected {
		return
	}
	s := b.term.Session(index)
	if s == nil {
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	buf := make([]byte, netBridgeReadBufSize)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return
	}
	s.WriteBytes(buf[:n])
}
