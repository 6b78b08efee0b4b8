package knet

// TelnetState tags where the IAC byte-by-byte state machine currently is.
type TelnetState int

const (
	TelnetNormal TelnetState = iota
	TelnetIAC
	TelnetWill
	TelnetWont
	TelnetDo
	TelnetDont
	TelnetSB
	TelnetSBIAC
)

const (
	iacSE  = 240
	iacSB  = 250
	iacWill = 251
	iacWont = 252
	iacDo   = 253
	iacDont = 254
	iacIAC  = 255
)

// telnetSubnegPayloadLimit and telnetSubnegAbortLimit bound how many bytes a subnegotiation buffer
// accumulates before it's treated as malformed and dropped: the source
// carries two parallel limits (1024, 2048) for this; 1024 is the payload
// limit proper and 2048 is slack tolerance for a still-arriving SB before
// giving up on it (see the spec's open question on this ambiguity).
const telnetSubnegPayloadLimit = 1024
const telnetSubnegAbortLimit = 2048

// CommandCallback is invoked on WILL/WONT/DO/DONT option negotiation; the
// default policy (when none is set) rejects every option with DONT/WONT.
type CommandCallback func(command byte, option byte) (respond bool, response byte)

// SubnegCallback delivers a completed subnegotiation's option and payload.
type SubnegCallback func(option byte, payload []byte)

// Telnet implements RFC 854's IAC framing over an already-connected byte
// stream: Normal, IAC, {WILL,WONT,DO,DONT,SB,SB-IAC}.
type Telnet struct {
	state TelnetState
	pendingOption byte

	subneg    []byte
	subnegOpt byte

	onCommand CommandCallback
	onSubneg  SubnegCallback
	userName  string
}

// NewTelnet returns a Telnet state machine in TelnetNormal.
func NewTelnet() *Telnet { return &Telnet{} }

// SetCommandCallback installs the WILL/WONT/DO/DONT handler.
func (t *Telnet) SetCommandCallback(cb CommandCallback) { t.onCommand = cb }

// SetSubnegCallback installs the subnegotiation-complete handler.
func (t *Telnet) SetSubnegCallback(cb SubnegCallback) { t.onSubneg = cb }

// SetUserName configures the default NEW-ENVIRON responder's reported
// user name.
func (t *Telnet) SetUserName(name string) { t.userName = name }

// Feed processes in, returning the data bytes that survive IAC
// un-escaping (literal 0xFF in the payload arrives doubled per RFC 854
// and is collapsed back to one byte here) and any command/response bytes
// to send back to the peer.
func (t *Telnet) Feed(in []byte) (data []byte, toSend []byte) {
	for _, b := range in {
		switch t.state {
		case TelnetNormal:
			if b == iacIAC {
				t.state = TelnetIAC
			} else {
				data = append(data, b)
			}
		case TelnetIAC:
			switch b {
			case iacIAC:
				data = append(data, b)
				t.state = TelnetNormal
			case iacWill:
				t.state = TelnetWill
			case iacWont:
				t.state = TelnetWont
			case iacDo:
				t.state = TelnetDo
			case iacDont:
				t.state = TelnetDont
			case iacSB:
				t.subneg = t.subneg[:0]
				t.state = TelnetSB
			default:
				t.state = TelnetNormal
			}
		case TelnetWill:
			toSend = append(toSend, t.negotiate(iacWill, b)...)
			t.state = TelnetNormal
		case TelnetWont:
			toSend = append(toSend, t.negotiate(iacWont, b)...)
			t.state = TelnetNormal
		case TelnetDo:
			toSend = append(toSend, t.negotiate(iacDo, b)...)
			t.state = TelnetNormal
		case TelnetDont:
			toSend = append(toSend, t.negotiate(iacDont, b)...)
			t.state = TelnetNormal
		case TelnetSB:
			if b == iacIAC {
				t.state = TelnetSBIAC
			} else if len(t.subneg) < telnetSubnegAbortLimit {
				t.subneg = append(t.subneg, b)
			}
		case TelnetSBIAC:
			if b == iacSE {
				if t.onSubneg == nil && len(t.subneg) > 1 && t.subneg[0] == telnetOptionNewEnviron && t.subneg[1] == 1 {
					toSend = append(toSend, t.NewEnvironResponse()...) // default reply to NEW-ENVIRON SEND
				}
				t.completeSubneg()
				t.state = TelnetNormal
			} else if b == iacIAC && len(t.subneg) < telnetSubnegAbortLimit {
				t.subneg = append(t.subneg, iacIAC)
				t.state = TelnetSB
			} else {
				t.state = TelnetSB
			}
		}
	}
	return data, toSend
}

// negotiate runs the command callback (or the default reject policy) and
// returns the IAC response bytes, if any.
func (t *Telnet) negotiate(command byte, option byte) []byte {
	var respond bool
	var response byte
	if t.onCommand != nil {
		respond, response = t.onCommand(command, option)
	} else {
		respond = true
		switch command {
		case iacWill:
			response = iacDont
		case iacDo:
			response = iacWont
		default:
			respond = false
		}
	}
	if !respond {
		return nil
	}
	return []byte{iacIAC, response, option}
}

func (t *Telnet) completeSubneg() {
	if len(t.subneg) == 0 {
		return
	}
	option := t.subneg[0]
	payload := t.subneg[1:]
	if len(payload) > telnetSubnegPayloadLimit {
		payload = payload[:telnetSubnegPayloadLimit]
	}
	if t.onSubneg != nil {
		t.onSubneg(option, payload)
	}
}

// NewEnvironResponse builds the `IAC SB NEW-ENVIRON IS VAR "USER" VALUE
// <name> IAC SE` reply that Feed sends to a NEW-ENVIRON (option 39) SEND
// when no SubnegCallback is registered (RFC 1572).
func (t *Telnet) NewEnvironResponse() []byte {
	const (
		isToken  = 0
		varToken = 0
		valToken = 1
	)
	payload := []byte{telnetOptionNewEnviron, isToken, varToken}
	payload = append(payload, []byte("USER")...)
	payload = append(payload, valToken)
	payload = append(payload, []byte(t.userName)...)
	out := []byte{iacIAC, iacSB}
	out = append(out, payload...)
	out = append(out, iacIAC, iacSE)
	return out
}

const telnetOptionNewEnviron = 39
const telnetOptionNAWS = 31

// EscapeIAC doubles every 0xFF byte in data per RFC 854, for framing
// outbound payload bytes that might themselves contain IAC.
func EscapeIAC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		out = append(out, b)
		if b == iacIAC {
			out = append(out, iacIAC)
		}
	}
	return out
}

// NAWS builds the `IAC SB NAWS cols_hi cols_lo rows_hi rows_lo IAC SE`
// subnegotiation payload for an NAWS reply to `IAC DO NAWS`.
func NAWS(cols, rows int) []byte {
	return []byte{
		iacIAC, iacSB, telnetOptionNAWS,
		byte(cols >> 8), byte(cols),
		byte(rows >> 8), byte(rows),
		iacIAC, iacSE,
	}
}
