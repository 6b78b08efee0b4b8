package knet

import (
	"encoding/binary"
	"errors"

	"github.com/kterm/kterm/internal/codec"
)

// PacketType tags a framed-protocol packet's payload interpretation
// (spec.md §4.8 "framed" protocol).
type PacketType uint8

const (
	PacketData PacketType = iota
	PacketResize
	PacketGateway
	PacketAttach
	PacketAudioVoice
	PacketAudioCommand
	PacketAudioStream
)

// Packet is one framed-protocol message: `type[1] | length[4 BE] |
// payload[length] | crc32[4 BE]`.
type Packet struct {
	Type    PacketType
	Payload []byte
}

// ErrOversizePacket is returned when a decoded length field exceeds the
// RX ring size — a protocol violation, not a malformed-input recovery
// (spec.md §4.8: "over-size packets trigger an error and disconnect").
var ErrOversizePacket = errors.New("knet: framed packet length exceeds ring size")

// ErrChecksumMismatch is returned when a decoded packet's trailing CRC32
// doesn't match its payload — the accumulator is left unusable, same as
// ErrOversizePacket, since the stream can no longer be trusted to resync.
var ErrChecksumMismatch = errors.New("knet: framed packet checksum mismatch")

const (
	framedHeaderSize   = 5 // type[1] + length[4]
	framedChecksumSize = 4 // crc32[4]
)

// Framer accumulates framed-protocol bytes across Update calls (a packet
// may straddle multiple reads) and decodes complete packets.
type Framer struct {
	buf      []byte
	maxLen   uint32
}

// NewFramer returns a Framer with no size cap; call SetMaxLen to bound it
// to the RX ring size.
func NewFramer() *Framer { return &Framer{maxLen: ^uint32(0)} }

// SetMaxLen bounds the payload length a single packet may declare.
func (f *Framer) SetMaxLen(n uint32) { f.maxLen = n }

// Feed appends newly-read bytes and decodes as many complete packets as
// are now available. It returns ErrOversizePacket (and leaves the
// accumulator in an unusable state — the caller must disconnect) if a
// declared length exceeds maxLen.
func (f *Framer) Feed(in []byte) ([]Packet, error) {
	f.buf = append(f.buf, in...)
	var packets []Packet
	for {
		if len(f.buf) < framedHeaderSize {
			return packets, nil
		}
		length := binary.BigEndian.Uint32(f.buf[1:5])
		if length > f.maxLen {
			return packets, ErrOversizePacket
		}
		total := framedHeaderSize + int(length) + framedChecksumSize
		if len(f.buf) < total {
			return packets, nil
		}
		payload := append([]byte(nil), f.buf[framedHeaderSize:framedHeaderSize+int(length)]...)
		wantCRC := binary.BigEndian.Uint32(f.buf[framedHeaderSize+int(length) : total])
		if codec.CRC32(payload) != wantCRC {
			return packets, ErrChecksumMismatch
		}
		packets = append(packets, Packet{
			Type:    PacketType(f.buf[0]),
			Payload: payload,
		})
		f.buf = f.buf[total:]
	}
}

// Encode serializes p into the wire format, appending a trailing CRC32 of
// the payload so Feed can detect a corrupted frame before it is acted on.
func Encode(p Packet) []byte {
	out := make([]byte, framedHeaderSize+len(p.Payload)+framedChecksumSize)
	out[0] = byte(p.Type)
	binary.BigEndian.PutUint32(out[1:5], uint32(len(p.Payload)))
	copy(out[framedHeaderSize:], p.Payload)
	binary.BigEndian.PutUint32(out[framedHeaderSize+len(p.Payload):], codec.CRC32(p.Payload))
	return out
}

// EncodeResize builds a complete encoded RESIZE packet whose payload is
// cols,rows as a big-endian u32 pair.
func EncodeResize(cols, rows int) []byte {
	return Encode(Packet{Type: PacketResize, Payload: resizePayload(cols, rows)})
}

func resizePayload(cols, rows int) []byte {
	p := make([]byte, 8)
	binary.BigEndian.PutUint32(p[0:4], uint32(cols))
	binary.BigEndian.PutUint32(p[4:8], uint32(rows))
	return p
}

// DecodeResize parses a RESIZE packet's payload back into cols, rows.
func DecodeResize(payload []byte) (cols, rows int, ok bool) {
	if len(payload) != 8 {
		return 0, 0, false
	}
	return int(binary.BigEndian.Uint32(payload[0:4])), int(binary.BigEndian.Uint32(payload[4:8])), true
}

// EncodeAttach builds a complete encoded ATTACH packet whose payload is
// the target session index as a single byte.
func EncodeAttach(sessionIndex int) []byte {
	return Encode(Packet{Type: PacketAttach, Payload: []byte{byte(sessionIndex)}})
}
