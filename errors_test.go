package kterm

import "testing"

func TestErrorKind_String(t *testing.T) {
	cases := map[ErrorKind]string{
		ErrorKindMalformedInput:     "malformed_input",
		ErrorKindResourceExhaustion: "resource_exhaustion",
		ErrorKindProtocolViolation:  "protocol_violation",
		ErrorKindTransport:          "transport",
		ErrorKindCallerBug:          "caller_bug",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}

func TestSession_GetStatusReportsOverflow(t *testing.T) {
	s := newTestSession(5, 10)

	if st := s.GetStatus(); st.OpQueueOverflowed || st.InputOverflowed {
		t.Fatalf("fresh session should report no overflow, got %+v", st)
	}

	for i := 0; i < opQueueCapacity+10; i++ {
		s.ops.Push(Op{Kind: OpPrintChar})
	}
	if !s.GetStatus().OpQueueOverflowed {
		t.Error("op queue should report overflow after exceeding capacity")
	}

	s.ClearStatus()
	if s.GetStatus().OpQueueOverflowed {
		t.Error("ClearStatus should clear the op queue overflow flag")
	}
}

func TestSession_GetStatusReportsResponsePending(t *testing.T) {
	s := newTestSession(5, 10)
	s.writeResponseString("hello")

	if got := s.GetStatus().ResponseRingPending; got != 5 {
		t.Errorf("ResponseRingPending = %d, want 5", got)
	}
}
