// Package driver defines the abstract reader-driver contract the session
// and protocol-engine layers consume. The vendor library is
// an impurity boundary: production code drives TCPReader (feigdriver.go),
// which speaks the bridge's own placeholder wire encoding rather than a
// vendor SDK, while tests inject Mock and exercise the protocol engine end-to-end
// without hardware.
package driver

import (
	"context"
	"errors"
	"time"
)

// Bank identifies a Gen-2 memory bank.
type Bank int

const (
	BankReserved Bank = iota
	BankEPC
	BankTID
	BankUser
)

// LockParam is a Gen-2 lock-command parameter value. Only Unchanged,
// Lock, and Unlock are ever issued by the protocol engine; PermanentLock
// and PermanentUnlock exist to make the driver interface complete.
type LockParam int

const (
	LockUnchanged LockParam = iota
	LockLock
	LockUnlock
	LockPermanentLock
	LockPermanentUnlock
)

// LockSpec is the five-field parameter vector accepted by TagHandle.Lock.
type LockSpec struct {
	Kill   LockParam
	Access LockParam
	EPC    LockParam
	TID    LockParam
	User   LockParam
}

// ErrNoTransponder is returned by Inventory when the driver reports "no
// transponder in field" as an error code; the protocol engine treats this
// identically to a zero-length inventory result.
var ErrNoTransponder = errors.New("driver: no transponder in field")

// InventoryItem is one tag observed by an Inventory call.
type InventoryItem struct {
	IDHex string
	RSSI  []RSSIItem
}

// RSSIItem is a single per-antenna signal-strength sample attached to an
// inventory item.
type RSSIItem struct {
	Antenna uint8
	RSSI    int32
}

// Reader is the connection-level contract for a single physical or
// virtual reader endpoint.
type Reader interface {
	Connect(ctx context.Context, addr string, port int, timeout time.Duration) error
	Disconnect() error
	Close() error
	IsConnected() bool
	LastErrorText() string

	// Inventory commands the reader over antennaMask and returns the
	// observed tags. A "no transponder" condition is reported as
	// ErrNoTransponder, not a zero-length slice with a nil error, so
	// callers can distinguish "commanded and found nothing" from "not
	// yet commanded" only by calling this method.
	Inventory(ctx context.Context, antennaMask uint16) ([]InventoryItem, error)

	// TagHandle returns a handle bound to inventory item i of the most
	// recent Inventory call.
	TagHandle(i int) (TagHandle, error)

	StartNotification(callback func(Event)) error
	StopNotification() error
	StartListener(port int, bindAddr string, keepAlive bool, callback func(Event)) error
	StopListener() error
}

// TagHandle is the per-tag operation surface returned by Reader.TagHandle.
type TagHandle interface {
	ReadMultipleBlocks(ctx context.Context, bank Bank, startWord, nWords int, password [4]byte) ([]byte, error)
	WriteMultipleBlocks(ctx context.Context, bank Bank, startWord, nWords int, data []byte, password [4]byte) error
	Lock(ctx context.Context, spec LockSpec, password [4]byte) error
	LastISOError() int
}

// EventKind discriminates asynchronous notification payloads.
type EventKind string

const (
	EventTag            EventKind = "TAG_EVENT"
	EventIdentification EventKind = "IDENTIFICATION_EVENT"
)

// Event is the raw payload delivered to a notification callback, prior to
// being wrapped as a reader.NotificationEvent and queued.
type Event struct {
	Kind            EventKind
	TagIDHex        string
	RSSI            []RSSIItem
	ReaderTimestamp time.Time
	ReaderType      string
	FirmwareVersion string
}
