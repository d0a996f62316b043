package driver

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock is an in-memory, scriptable Reader implementation for exercising
// the session and protocol-engine layers without a physical Feig reader.
// Each field holding a *Func is optional; when nil, the method falls back
// to sensible default behavior driven by Items/backing tag memory so most
// tests only need to set the handful of hooks relevant to what they are
// testing.
type Mock struct {
	mu sync.Mutex

	connected bool
	lastErr   string

	// Items is the inventory result returned by the next Inventory call
	// that does not use InventoryFunc.
	Items []InventoryItem
	// Tags backs TagHandle by inventory index; tests populate it
	// alongside Items.
	Tags []*MockTagHandle

	ConnectFunc        func(ctx context.Context, addr string, port int, timeout time.Duration) error
	DisconnectFunc     func() error
	CloseFunc          func() error
	InventoryFunc      func(ctx context.Context, antennaMask uint16) ([]InventoryItem, error)
	StartNotifyFunc    func(callback func(Event)) error
	StopNotifyFunc     func() error
	StartListenerFunc  func(port int, bindAddr string, keepAlive bool, callback func(Event)) error
	StopListenerFunc   func() error

	notifyCallback   func(Event)
	listenerCallback func(Event)
}

// NewMock returns an unconnected Mock ready for scripting.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Connect(ctx context.Context, addr string, port int, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectFunc != nil {
		if err := m.ConnectFunc(ctx, addr, port, timeout); err != nil {
			m.lastErr = err.Error()
			return err
		}
	}
	m.connected = true
	return nil
}

func (m *Mock) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc()
	}
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Mock) LastErrorText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Mock) Inventory(ctx context.Context, antennaMask uint16) ([]InventoryItem, error) {
	if m.InventoryFunc != nil {
		return m.InventoryFunc(ctx, antennaMask)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Items, nil
}

func (m *Mock) TagHandle(i int) (TagHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.Tags) {
		return nil, fmt.Errorf("driver: mock tag handle index %d out of range", i)
	}
	return m.Tags[i], nil
}

func (m *Mock) StartNotification(callback func(Event)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartNotifyFunc != nil {
		if err := m.StartNotifyFunc(callback); err != nil {
			return err
		}
	}
	m.notifyCallback = callback
	return nil
}

func (m *Mock) StopNotification() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyCallback = nil
	if m.StopNotifyFunc != nil {
		return m.StopNotifyFunc()
	}
	return nil
}

func (m *Mock) StartListener(port int, bindAddr string, keepAlive bool, callback func(Event)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartListenerFunc != nil {
		if err := m.StartListenerFunc(port, bindAddr, keepAlive, callback); err != nil {
			return err
		}
	}
	m.listenerCallback = callback
	return nil
}

func (m *Mock) StopListener() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listenerCallback = nil
	if m.StopListenerFunc != nil {
		return m.StopListenerFunc()
	}
	return nil
}

// Emit delivers ev to whichever of the notify/listener callbacks is
// currently bound, for tests simulating an asynchronous tag event.
func (m *Mock) Emit(ev Event) {
	m.mu.Lock()
	cb := m.notifyCallback
	if cb == nil {
		cb = m.listenerCallback
	}
	m.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// MockTagHandle is a scriptable TagHandle backed by per-bank byte slices,
// so protocol-engine tests can exercise realistic write-then-read and
// lock/authentication sequences without hand-rolling every byte.
type MockTagHandle struct {
	mu sync.Mutex

	Banks        map[Bank][]byte
	AccessPwd    [4]byte
	Locked       map[Bank]bool
	lastISOError int

	ReadFunc  func(ctx context.Context, bank Bank, startWord, nWords int, password [4]byte) ([]byte, error)
	WriteFunc func(ctx context.Context, bank Bank, startWord, nWords int, data []byte, password [4]byte) error
	LockFunc  func(ctx context.Context, spec LockSpec, password [4]byte) error
}

// NewMockTagHandle returns a handle with zeroed Reserved/EPC/TID/User
// banks sized generously enough for the protocol engine's fixed-offset
// reads and writes.
func NewMockTagHandle() *MockTagHandle {
	return &MockTagHandle{
		Banks: map[Bank][]byte{
			BankReserved: make([]byte, 16),
			BankEPC:      make([]byte, 32),
			BankTID:      make([]byte, 16),
			BankUser:     make([]byte, 16),
		},
		Locked: make(map[Bank]bool),
	}
}

func (h *MockTagHandle) ReadMultipleBlocks(ctx context.Context, bank Bank, startWord, nWords int, password [4]byte) ([]byte, error) {
	if h.ReadFunc != nil {
		return h.ReadFunc(ctx, bank, startWord, nWords, password)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Locked[bank] && password != h.AccessPwd {
		return nil, fmt.Errorf("driver: mock read denied, access password mismatch")
	}
	buf := h.Banks[bank]
	start := startWord * 2
	end := start + nWords*2
	if end > len(buf) {
		return nil, fmt.Errorf("driver: mock bank %d read out of range", bank)
	}
	out := make([]byte, nWords*2)
	copy(out, buf[start:end])
	return out, nil
}

func (h *MockTagHandle) WriteMultipleBlocks(ctx context.Context, bank Bank, startWord, nWords int, data []byte, password [4]byte) error {
	if h.WriteFunc != nil {
		return h.WriteFunc(ctx, bank, startWord, nWords, data, password)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Locked[bank] && password != h.AccessPwd {
		return fmt.Errorf("driver: mock write denied, access password mismatch")
	}
	buf := h.Banks[bank]
	start := startWord * 2
	end := start + nWords*2
	if end > len(buf) {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
		h.Banks[bank] = buf
	}
	copy(buf[start:end], data)
	if bank == BankReserved {
		copy(h.AccessPwd[:], buf[4:8])
	}
	return nil
}

func (h *MockTagHandle) Lock(ctx context.Context, spec LockSpec, password [4]byte) error {
	if h.LockFunc != nil {
		return h.LockFunc(ctx, spec, password)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	apply := func(bank Bank, p LockParam) {
		switch p {
		case LockLock, LockPermanentLock:
			h.Locked[bank] = true
		case LockUnlock, LockPermanentUnlock:
			h.Locked[bank] = false
		case LockUnchanged:
		}
	}
	apply(BankReserved, spec.Access)
	apply(BankEPC, spec.EPC)
	apply(BankTID, spec.TID)
	apply(BankUser, spec.User)
	return nil
}

func (h *MockTagHandle) LastISOError() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastISOError
}

// SetLastISOError lets a test script an ISO error code to surface through
// LastISOError. The protocol engine's tag-write-failed errors do not
// include this code; they carry only the last driver error text.
func (h *MockTagHandle) SetLastISOError(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastISOError = code
}
