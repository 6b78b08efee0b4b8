package knet

import (
	"errors"
	"io"
	"net"

	"golang.org/x/crypto/ssh"
)

// SSHHook wraps golang.org/x/crypto/ssh as a SecurityHook, opening one
// session channel and exposing it as the connection's byte stream.
// Grounded on nosshtradamus's sshproxy.RunProxy, which drives the same
// ssh.ClientConfig/NewClientConn/OpenChannel sequence to proxy a shell;
// here it is a SecurityHook rather than a full proxy.
type SSHHook struct {
	config  *ssh.ClientConfig
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	err     error
}

// NewSSHHook builds an SSHHook that dials an interactive shell session
// once handshaken, authenticating per cfg.
func NewSSHHook(cfg *ssh.ClientConfig) *SSHHook {
	return &SSHHook{config: cfg}
}

func (h *SSHHook) Handshake(conn net.Conn) HandshakeResult {
	c, chans, reqs, err := ssh.NewClientConn(conn, conn.RemoteAddr().String(), h.config)
	if err != nil {
		h.err = err
		return HandshakeErr
	}
	h.client = ssh.NewClient(c, chans, reqs)

	sess, err := h.client.NewSession()
	if err != nil {
		h.err = err
		return HandshakeErr
	}
	if err := sess.RequestPty("xterm-256color", 24, 80, ssh.TerminalModes{}); err != nil {
		h.err = err
		return HandshakeErr
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		h.err = err
		return HandshakeErr
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		h.err = err
		return HandshakeErr
	}
	if err := sess.Shell(); err != nil {
		h.err = err
		return HandshakeErr
	}
	h.session, h.stdin, h.stdout = sess, stdin, stdout
	return HandshakeOK
}

func (h *SSHHook) Err() error { return h.err }

func (h *SSHHook) Read(buf []byte) (int, error) {
	if h.stdout == nil {
		return 0, errors.New("knet: ssh session not established")
	}
	return h.stdout.Read(buf)
}

func (h *SSHHook) Write(buf []byte) (int, error) {
	if h.stdin == nil {
		return 0, errors.New("knet: ssh session not established")
	}
	return h.stdin.Write(buf)
}

func (h *SSHHook) Close() {
	if h.session != nil {
		_ = h.session.Close()
	}
	if h.client != nil {
		_ = h.client.Close()
	}
}
