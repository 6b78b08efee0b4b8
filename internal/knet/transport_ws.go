package knet

import (
	"net"
	"net/url"

	"github.com/gorilla/websocket"
)

// WSHook wraps a gorilla/websocket connection as a SecurityHook so the
// same Connection lifecycle can carry a terminal session over a
// WebSocket (wrapping WSS gives it transport security; plain WS is a
// transport choice, not a security one, same as ProtocolRaw over TCP).
type WSHook struct {
	url    string
	header map[string][]string
	conn   *websocket.Conn
	err    error
	pending []byte
}

// NewWSHook dials u (a ws:// or wss:// URL) once Handshake runs.
func NewWSHook(u string) *WSHook { return &WSHook{url: u} }

func (h *WSHook) Handshake(_ net.Conn) HandshakeResult {
	if _, err := url.Parse(h.url); err != nil {
		h.err = err
		return HandshakeErr
	}
	conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	if err != nil {
		h.err = err
		return HandshakeErr
	}
	h.conn = conn
	return HandshakeOK
}

func (h *WSHook) Err() error { return h.err }

// Read drains one buffered text/binary frame at a time into buf, reading
// a new frame once the previous one is exhausted.
func (h *WSHook) Read(buf []byte) (int, error) {
	if len(h.pending) == 0 {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		h.pending = data
	}
	n := copy(buf, h.pending)
	h.pending = h.pending[n:]
	return n, nil
}

func (h *WSHook) Write(buf []byte) (int, error) {
	if err := h.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (h *WSHook) Close() {
	if h.conn != nil {
		_ = h.conn.Close()
	}
}
