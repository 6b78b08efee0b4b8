package kterm

import "errors"

// ErrorKind classifies why an operation failed, per the five-kind taxonomy
// (malformed input, resource exhaustion, protocol violation, transport
// error, caller bug). No operation panics across the public boundary;
// every failure is reported as one of these, by return value, a Status
// flag, or the session's error_callback.
type ErrorKind int

const (
	ErrorKindMalformedInput ErrorKind = iota
	ErrorKindResourceExhaustion
	ErrorKindProtocolViolation
	ErrorKindTransport
	ErrorKindCallerBug
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindMalformedInput:
		return "malformed_input"
	case ErrorKindResourceExhaustion:
		return "resource_exhaustion"
	case ErrorKindProtocolViolation:
		return "protocol_violation"
	case ErrorKindTransport:
		return "transport"
	case ErrorKindCallerBug:
		return "caller_bug"
	default:
		return "unknown"
	}
}

// Sentinel errors for the caller-bug kind: a host hitting these has a bug
// of its own (nil session, zero geometry), so the core returns the error
// rather than trapping, leaving it to the caller whether to treat it as
// fatal.
var (
	ErrNilSession    = errors.New("kterm: nil session")
	ErrInvalidExtent = errors.New("kterm: rows and cols must both be positive")
)

// Status reports the resource-exhaustion overflow flags a host can poll
// instead of the core ever panicking or blocking (§7 "set an overflow
// flag (observable via GetStatus), drop the offending op, continue").
type Status struct {
	OpQueueOverflowed   bool
	InputOverflowed     bool
	ResponseRingPending int
}

// GetStatus reports the session's current overflow/backlog state.
func (s *Session) GetStatus() Status {
	return Status{
		OpQueueOverflowed: s.ops.Overflowed(),
		InputOverflowed:   s.input.Overflowed(),
		ResponseRingPending: s.resp.Len(),
	}
}

// ClearStatus acknowledges and clears every overflow flag GetStatus
// reports; a host calls this after it has handled the condition (e.g.
// after draining the op queue faster or growing its own buffers).
func (s *Session) ClearStatus() {
	s.ops.ClearOverflow()
	s.input.ClearOverflow()
}
