package knet

import (
	"bytes"
	"testing"
)

func TestFramer_DecodesCompletePacket(t *testing.T) {
	f := NewFramer()
	wire := Encode(Packet{Type: PacketData, Payload: []byte("hi")})

	packets, err := f.Feed(wire)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("len(packets) = %d, want 1", len(packets))
	}
	if packets[0].Type != PacketData || string(packets[0].Payload) != "hi" {
		t.Errorf("packet = %+v, want Type=PacketData Payload=hi", packets[0])
	}
}

func TestFramer_AccumulatesAcrossFeeds(t *testing.T) {
	f := NewFramer()
	wire := Encode(Packet{Type: PacketData, Payload: []byte("hello")})

	packets, err := f.Feed(wire[:3])
	if err != nil || len(packets) != 0 {
		t.Fatalf("partial feed should yield no packets yet, got %v err=%v", packets, err)
	}

	packets, err = f.Feed(wire[3:])
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(packets) != 1 || string(packets[0].Payload) != "hello" {
		t.Fatalf("packets = %+v, want one packet with payload hello", packets)
	}
}

func TestFramer_DecodesMultiplePacketsInOneFeed(t *testing.T) {
	f := NewFramer()
	wire := append(Encode(Packet{Type: PacketData, Payload: []byte("a")}),
		Encode(Packet{Type: PacketResize, Payload: resizePayload(80, 24)})...)

	packets, err := f.Feed(wire)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("len(packets) = %d, want 2", len(packets))
	}
	if packets[1].Type != PacketResize {
		t.Errorf("packets[1].Type = %v, want PacketResize", packets[1].Type)
	}
}

func TestFramer_RejectsOversizePacket(t *testing.T) {
	f := NewFramer()
	f.SetMaxLen(4)

	wire := Encode(Packet{Type: PacketData, Payload: []byte("too long")})
	_, err := f.Feed(wire)
	if err != ErrOversizePacket {
		t.Errorf("err = %v, want ErrOversizePacket", err)
	}
}

func TestEncodeDecodeResize(t *testing.T) {
	payload := resizePayload(132, 43)
	cols, rows, ok := DecodeResize(payload)
	if !ok || cols != 132 || rows != 43 {
		t.Errorf("DecodeResize() = (%d, %d, %v), want (132, 43, true)", cols, rows, ok)
	}
}

func TestFramer_RejectsCorruptedPayload(t *testing.T) {
	f := NewFramer()
	wire := Encode(Packet{Type: PacketData, Payload: []byte("hi")})
	wire[framedHeaderSize] ^= 0xff // flip a payload bit without touching the trailing CRC

	_, err := f.Feed(wire)
	if err != ErrChecksumMismatch {
		t.Errorf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestEncodeAttach(t *testing.T) {
	wire := EncodeAttach(2)
	f := NewFramer()
	packets, err := f.Feed(wire)
	if err != nil || len(packets) != 1 {
		t.Fatalf("Feed() = %v, %v", packets, err)
	}
	if packets[0].Type != PacketAttach || !bytes.Equal(packets[0].Payload, []byte{2}) {
		t.Errorf("packet = %+v, want Type=PacketAttach Payload=[2]", packets[0])
	}
}
