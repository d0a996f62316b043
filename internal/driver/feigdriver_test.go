package driver

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

// startFakeReader runs a single-connection TCP server speaking TCPReader's
// length-prefixed JSON framing, dispatching every request to handler and
// writing back its response. It accepts exactly one connection and serves
// requests until that connection closes.
func startFakeReader(t *testing.T, handler func(wireRequest) wireResponse) (addr string, port int, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		br := bufio.NewReader(conn)
		for {
			var req wireRequest
			if err := readFrame(br, &req); err != nil {
				return
			}
			resp := handler(req)
			if err := writeFrame(conn, resp); err != nil {
				return
			}
		}
	}()

	tcpAddr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", tcpAddr.Port, func() { _ = ln.Close() }
}

func connectedReader(t *testing.T, handler func(wireRequest) wireResponse) *TCPReader {
	t.Helper()
	host, port, stop := startFakeReader(t, handler)
	t.Cleanup(stop)

	r := NewTCPReader()
	if err := r.Connect(context.Background(), host, port, time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestTCPReaderConnectDisconnect(t *testing.T) {
	t.Parallel()

	host, port, stop := startFakeReader(t, func(wireRequest) wireResponse { return wireResponse{Ok: true} })
	defer stop()

	r := NewTCPReader()
	if r.IsConnected() {
		t.Fatal("new TCPReader reports connected")
	}
	if err := r.Connect(context.Background(), host, port, time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !r.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	if err := r.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if r.IsConnected() {
		t.Fatal("IsConnected() = true after Disconnect")
	}
}

func TestTCPReaderConnectRefused(t *testing.T) {
	t.Parallel()

	r := NewTCPReader()
	err := r.Connect(context.Background(), "127.0.0.1", 1, time.Second)
	if err == nil {
		t.Fatal("Connect to a reserved/unused port succeeded, want error")
	}
	if r.LastErrorText() == "" {
		t.Error("LastErrorText() is empty after a failed Connect")
	}
}

func TestTCPReaderInventoryRoundTrip(t *testing.T) {
	t.Parallel()

	r := connectedReader(t, func(req wireRequest) wireResponse {
		if req.Command != "inventory" {
			t.Errorf("command = %q, want inventory", req.Command)
		}
		return wireResponse{Ok: true, Items: []wireInventory{
			{IDHex: "E2801160", RSSI: []wireRSSIItem{{Antenna: 1, RSSI: -40}}},
		}}
	})

	items, err := r.Inventory(context.Background(), 0x0001)
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	if len(items) != 1 || items[0].IDHex != "E2801160" {
		t.Fatalf("Inventory() = %+v, want one item with IDHex E2801160", items)
	}
	if len(items[0].RSSI) != 1 || items[0].RSSI[0].RSSI != -40 {
		t.Errorf("RSSI = %+v, want one sample of -40", items[0].RSSI)
	}

	if _, err := r.TagHandle(0); err != nil {
		t.Fatalf("TagHandle(0): %v", err)
	}
	if _, err := r.TagHandle(1); err == nil {
		t.Fatal("TagHandle(1) with one inventoried tag succeeded, want error")
	}
}

func TestTCPReaderInventoryNoTransponder(t *testing.T) {
	t.Parallel()

	r := connectedReader(t, func(wireRequest) wireResponse {
		return wireResponse{Ok: false, Error: "no transponder in field"}
	})

	_, err := r.Inventory(context.Background(), 0x0001)
	if err != ErrNoTransponder {
		t.Fatalf("Inventory() error = %v, want %v", err, ErrNoTransponder)
	}
}

func TestTCPReaderReadWriteBlocksRoundTrip(t *testing.T) {
	t.Parallel()

	wantData := "DEADBEEF"
	r := connectedReader(t, func(req wireRequest) wireResponse {
		switch req.Command {
		case "inventory":
			return wireResponse{Ok: true, Items: []wireInventory{{IDHex: "AABBCCDD"}}}
		case "readBlocks":
			return wireResponse{Ok: true, Data: wantData}
		case "writeBlocks":
			if req.Data != wantData {
				t.Errorf("writeBlocks Data = %q, want %q", req.Data, wantData)
			}
			return wireResponse{Ok: true}
		default:
			t.Errorf("unexpected command %q", req.Command)
			return wireResponse{Ok: false, Error: "unexpected command"}
		}
	})

	if _, err := r.Inventory(context.Background(), 0x0001); err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	handle, err := r.TagHandle(0)
	if err != nil {
		t.Fatalf("TagHandle(0): %v", err)
	}

	got, err := handle.ReadMultipleBlocks(context.Background(), BankUser, 0, 2, [4]byte{})
	if err != nil {
		t.Fatalf("ReadMultipleBlocks: %v", err)
	}
	gotHex := hexEncode(got)
	if gotHex != wantData {
		t.Errorf("ReadMultipleBlocks() = %s, want %s", gotHex, wantData)
	}

	data, err := hexDecode(wantData)
	if err != nil {
		t.Fatalf("hexDecode: %v", err)
	}
	if err := handle.WriteMultipleBlocks(context.Background(), BankUser, 0, 2, data, [4]byte{}); err != nil {
		t.Fatalf("WriteMultipleBlocks: %v", err)
	}
}

func TestTCPReaderReadBlocksCapturesISOError(t *testing.T) {
	t.Parallel()

	r := connectedReader(t, func(req wireRequest) wireResponse {
		switch req.Command {
		case "inventory":
			return wireResponse{Ok: true, Items: []wireInventory{{IDHex: "AABBCCDD"}}}
		case "readBlocks":
			return wireResponse{Ok: false, Error: "access denied", ISOError: 0x0F}
		default:
			return wireResponse{Ok: false, Error: "unexpected command " + req.Command}
		}
	})

	if _, err := r.Inventory(context.Background(), 0x0001); err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	handle, err := r.TagHandle(0)
	if err != nil {
		t.Fatalf("TagHandle(0): %v", err)
	}

	if _, err := handle.ReadMultipleBlocks(context.Background(), BankReserved, 0, 4, [4]byte{}); err == nil {
		t.Fatal("ReadMultipleBlocks with a denied response succeeded, want error")
	}
	if got := handle.LastISOError(); got != 0x0F {
		t.Errorf("LastISOError() = %d, want 0x0F", got)
	}
}

func TestTCPReaderLockRoundTrip(t *testing.T) {
	t.Parallel()

	var gotSpec LockSpec
	r := connectedReader(t, func(req wireRequest) wireResponse {
		switch req.Command {
		case "inventory":
			return wireResponse{Ok: true, Items: []wireInventory{{IDHex: "AABBCCDD"}}}
		case "lock":
			if req.Lock != nil {
				gotSpec = *req.Lock
			}
			return wireResponse{Ok: true}
		default:
			return wireResponse{Ok: false, Error: "unexpected command " + req.Command}
		}
	})

	if _, err := r.Inventory(context.Background(), 0x0001); err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	handle, err := r.TagHandle(0)
	if err != nil {
		t.Fatalf("TagHandle(0): %v", err)
	}

	spec := LockSpec{Kill: LockLock, Access: LockLock, EPC: LockLock, TID: LockUnchanged, User: LockUnchanged}
	if err := handle.Lock(context.Background(), spec, [4]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if gotSpec != spec {
		t.Errorf("server observed lock spec %+v, want %+v", gotSpec, spec)
	}
}

func TestHexEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	data := []byte{0x00, 0xFF, 0x10, 0xAB}
	encoded := hexEncode(data)
	decoded, err := hexDecode(encoded)
	if err != nil {
		t.Fatalf("hexDecode: %v", err)
	}
	if string(decoded) != string(data) {
		t.Errorf("round trip = %x, want %x", decoded, data)
	}
}

func TestHexDecodeRejectsOddLength(t *testing.T) {
	t.Parallel()

	if _, err := hexDecode("ABC"); err == nil {
		t.Fatal("hexDecode(odd-length) succeeded, want error")
	}
}
