package driver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bookwaves/feig-rfid-bridge/internal/driver"
)

func TestMockConnectDisconnect(t *testing.T) {
	t.Parallel()

	m := driver.NewMock()
	if m.IsConnected() {
		t.Fatal("new Mock reports connected")
	}

	if err := m.Connect(context.Background(), "10.0.0.1", 10001, time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !m.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if m.IsConnected() {
		t.Fatal("IsConnected() = true after Disconnect")
	}
}

func TestMockConnectFuncFailure(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("connection refused")
	m := driver.NewMock()
	m.ConnectFunc = func(context.Context, string, int, time.Duration) error { return wantErr }

	err := m.Connect(context.Background(), "10.0.0.1", 10001, time.Second)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Connect() error = %v, want %v", err, wantErr)
	}
	if m.IsConnected() {
		t.Fatal("IsConnected() = true after failed Connect")
	}
	if m.LastErrorText() != wantErr.Error() {
		t.Errorf("LastErrorText() = %q, want %q", m.LastErrorText(), wantErr.Error())
	}
}

func TestMockInventoryDefault(t *testing.T) {
	t.Parallel()

	m := driver.NewMock()
	m.Items = []driver.InventoryItem{
		{IDHex: "E2801160"},
	}
	m.Tags = []*driver.MockTagHandle{driver.NewMockTagHandle()}

	items, err := m.Inventory(context.Background(), 0x0001)
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	if len(items) != 1 || items[0].IDHex != "E2801160" {
		t.Fatalf("Inventory() = %+v, want one item with IDHex E2801160", items)
	}

	handle, err := m.TagHandle(0)
	if err != nil {
		t.Fatalf("TagHandle(0): %v", err)
	}
	if handle == nil {
		t.Fatal("TagHandle(0) returned nil handle")
	}
}

func TestMockTagHandleOutOfRange(t *testing.T) {
	t.Parallel()

	m := driver.NewMock()
	if _, err := m.TagHandle(0); err == nil {
		t.Fatal("TagHandle(0) on empty Mock succeeded, want error")
	}
}

func TestMockInventoryNoTransponder(t *testing.T) {
	t.Parallel()

	m := driver.NewMock()
	m.InventoryFunc = func(context.Context, uint16) ([]driver.InventoryItem, error) {
		return nil, driver.ErrNoTransponder
	}

	_, err := m.Inventory(context.Background(), 0x0001)
	if !errors.Is(err, driver.ErrNoTransponder) {
		t.Fatalf("Inventory() error = %v, want %v", err, driver.ErrNoTransponder)
	}
}

func TestMockTagHandleReadWriteRoundTrip(t *testing.T) {
	t.Parallel()

	h := driver.NewMockTagHandle()
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	if err := h.WriteMultipleBlocks(context.Background(), driver.BankUser, 0, 2, data, [4]byte{}); err != nil {
		t.Fatalf("WriteMultipleBlocks: %v", err)
	}

	got, err := h.ReadMultipleBlocks(context.Background(), driver.BankUser, 0, 2, [4]byte{})
	if err != nil {
		t.Fatalf("ReadMultipleBlocks: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("ReadMultipleBlocks() = %x, want %x", got, data)
	}
}

func TestMockTagHandleLockDeniesWrongPassword(t *testing.T) {
	t.Parallel()

	h := driver.NewMockTagHandle()
	pwd := [4]byte{0x11, 0x22, 0x33, 0x44}

	// Program the access password into the reserved bank (offset 4..8),
	// matching the Mock's own bookkeeping convention.
	pwBytes := make([]byte, 8)
	copy(pwBytes[4:8], pwd[:])
	if err := h.WriteMultipleBlocks(context.Background(), driver.BankReserved, 0, 4, pwBytes, [4]byte{}); err != nil {
		t.Fatalf("WriteMultipleBlocks (program pwd): %v", err)
	}

	if err := h.Lock(context.Background(), driver.LockSpec{EPC: driver.LockLock}, [4]byte{}); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if _, err := h.ReadMultipleBlocks(context.Background(), driver.BankEPC, 0, 2, [4]byte{}); err == nil {
		t.Fatal("ReadMultipleBlocks on locked bank with zero password succeeded, want error")
	}
	if _, err := h.ReadMultipleBlocks(context.Background(), driver.BankEPC, 0, 2, pwd); err != nil {
		t.Fatalf("ReadMultipleBlocks on locked bank with correct password: %v", err)
	}
}

func TestMockTagHandleLastISOError(t *testing.T) {
	t.Parallel()

	h := driver.NewMockTagHandle()
	h.SetLastISOError(0x0F)

	if got := h.LastISOError(); got != 0x0F {
		t.Errorf("LastISOError() = %d, want 0x0F", got)
	}
}

func TestMockEmitDispatchesToNotificationCallback(t *testing.T) {
	t.Parallel()

	m := driver.NewMock()
	received := make(chan driver.Event, 1)

	if err := m.StartNotification(func(ev driver.Event) { received <- ev }); err != nil {
		t.Fatalf("StartNotification: %v", err)
	}

	m.Emit(driver.Event{Kind: driver.EventTag, TagIDHex: "E2801160"})

	select {
	case ev := <-received:
		if ev.TagIDHex != "E2801160" {
			t.Errorf("Emit delivered TagIDHex = %q, want E2801160", ev.TagIDHex)
		}
	case <-time.After(time.Second):
		t.Fatal("Emit did not deliver event to notification callback")
	}

	if err := m.StopNotification(); err != nil {
		t.Fatalf("StopNotification: %v", err)
	}
}
