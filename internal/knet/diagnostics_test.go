package knet

import (
	"net"
	"strconv"
	"testing"
)

func TestDiagnostic_PortScanFindsOpenPort(t *testing.T) {
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
			conn.Close()
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("strconv.Atoi() error = %v", err)
	}

	var result DiagResult
	done := make(chan struct{})
	d := NewPortScan(host, []int{1, port}, func(r DiagResult) {
		result = r
		close(done)
	})

	for !d.Done() {
		d.Tick()
	}
	<-done

	if result.Err != nil {
		t.Fatalf("result.Err = %v", result.Err)
	}
	if len(result.Detail) == 0 {
		t.Error("result.Detail should list the open port")
	}
}

func TestDiagnostic_CancelReportsCancelled(t *testing.T) {
	var result DiagResult
	d := NewPingExt("127.0.0.1:1", func(r DiagResult) { result = r })
	d.Cancel()
	d.Tick()

	if !d.Done() {
		t.Fatal("diagnostic should be done after a cancelled tick")
	}
	if result.Err != ErrDiagCancelled {
		t.Errorf("result.Err = %v, want ErrDiagCancelled", result.Err)
	}
}

func TestDiagnostic_TracerouteStepsOneTTLPerTick(t *testing.T) {
	d := NewTraceroute("127.0.0.1:1", 3, func(DiagResult) {})
	if d.ttl != 1 {
		t.Fatalf("initial ttl = %d, want 1", d.ttl)
	}
	d.Tick()
	if d.ttl != 2 {
		t.Errorf("ttl after one Tick = %d, want 2", d.ttl)
	}
	if d.Done() {
		t.Error("traceroute should not be done after one of three TTL steps")
	}
}
