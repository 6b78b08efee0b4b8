package knet

import (
	"crypto/tls"
	"net"
)

// TLSHook wraps crypto/tls as a SecurityHook. No pack repo reaches for a
// third-party TLS library — stdlib crypto/tls is what golang.org/x/crypto
// itself builds on, so it is the idiomatic choice here rather than a
// stdlib-avoidance gap.
type TLSHook struct {
	config *tls.Config
	conn   *tls.Conn
	err    error
}

// NewTLSHook wraps conn-level TLS with cfg (nil uses tls.Config's zero
// value, i.e. no client certificate and the system root pool).
func NewTLSHook(cfg *tls.Config) *TLSHook {
	if cfg == nil {
		cfg = &tls.Config{}
	}
	return &TLSHook{config: cfg}
}

func (h *TLSHook) Handshake(conn net.Conn) HandshakeResult {
	if h.conn == nil {
		h.conn = tls.Client(conn, h.config)
	}
	if err := h.conn.Handshake(); err != nil {
		h.err = err
		return HandshakeErr
	}
	return HandshakeOK
}

func (h *TLSHook) Err() error                      { return h.err }
func (h *TLSHook) Read(buf []byte) (int, error)    { return h.conn.Read(buf) }
func (h *TLSHook) Write(buf []byte) (int, error)   { return h.conn.Write(buf) }
func (h *TLSHook) Close()                          { _ = h.conn.Close() }
