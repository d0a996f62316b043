package reader

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bookwaves/feig-rfid-bridge/internal/driver"
)

const (
	connectTimeout       = 5 * time.Second
	maxReconnectAttempts = 3
)

// connectionErrorSubstrings and connectionErrorCodes implement the
// connection-error predicate: a driver error whose text
// matches any of these, case-insensitively, is a transient connection
// failure eligible for reconnect rather than a logical failure surfaced
// immediately.
var connectionErrorSubstrings = []string{
	"disconnected",
	"connection lost",
	"connection timeout",
	"transmit failed",
	"peer",
}

var connectionErrorCodes = []string{
	"-5012",
	"-5011",
	"-5010",
	"-1520",
}

func isConnectionError(text string) bool {
	lower := strings.ToLower(text)
	for _, s := range connectionErrorSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	for _, code := range connectionErrorCodes {
		if strings.Contains(text, code) {
			return true
		}
	}
	return false
}

// isNoTransponderError reports whether text is the driver's "no
// transponder in field" condition, which the inventory routine treats as
// a normal empty result rather than an error.
func isNoTransponderError(text string) bool {
	return strings.Contains(strings.ToLower(text), "no transponder")
}

type connState int

const (
	stateUninitialized connState = iota
	stateConnected
	stateBroken
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateConnected:
		return "connected"
	case stateBroken:
		return "broken"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DriverFactory constructs a fresh, unconnected driver.Reader. ManagedSession
// calls it once at first use and again every time it must tear down and
// rebuild the driver after a Broken transition.
type DriverFactory func() driver.Reader

// ManagedSession owns one reader's connection lifecycle: the underlying
// driver handle, its connection state machine, an optional notification
// listener, and the fair mutex serializing every protocol routine and
// notification callback against each other.
//
// The mutex is a plain sync.Mutex. Go's runtime switches a contended
// mutex into starvation mode after waiters have been blocked long enough,
// which gives the FIFO handoff callers rely on without a separate
// ticket-lock implementation.
type ManagedSession struct {
	cfg       Config
	newDriver DriverFactory
	logger    *slog.Logger
	queue     *NotificationQueue

	mu      sync.Mutex
	state   connState
	drv     driver.Reader
	metrics MetricsReporter

	listenerPort int
	notifyActive bool
}

// SessionOption configures optional ManagedSession parameters.
type SessionOption func(*ManagedSession)

// WithSessionMetrics attaches a MetricsReporter to the session. If mr is
// nil, the session keeps reporting to the no-op default.
func WithSessionMetrics(mr MetricsReporter) SessionOption {
	return func(s *ManagedSession) {
		if mr != nil {
			s.metrics = mr
		}
	}
}

// NewManagedSession constructs a session in the Uninitialized state. The
// driver is not constructed until first use.
func NewManagedSession(cfg Config, newDriver DriverFactory, logger *slog.Logger, opts ...SessionOption) *ManagedSession {
	s := &ManagedSession{
		cfg:       cfg,
		newDriver: newDriver,
		logger:    logger.With(slog.String("reader", cfg.Name)),
		state:     stateUninitialized,
		metrics:   defaultMetrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = NewNotificationQueue(logger.With(slog.String("reader", cfg.Name)), cfg.Name, s.metrics)
	return s
}

// Config returns the reader configuration this session owns.
func (s *ManagedSession) Config() Config { return s.cfg }

// Queue returns the session's notification event queue.
func (s *ManagedSession) Queue() *NotificationQueue { return s.queue }

// Execute serializes callers through the session's mutex and hands op the
// live driver handle, transparently reconnecting on classified connection
// errors.
func (s *ManagedSession) Execute(ctx context.Context, op func(driver.Reader) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeLocked(ctx, op)
}

func (s *ManagedSession) executeLocked(ctx context.Context, op func(driver.Reader) error) error {
	if s.state == stateClosed {
		return ErrSessionClosed
	}
	if s.state == stateBroken {
		if err := s.reconnectFromBrokenLocked(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrOperationFailed, err)
		}
	} else if s.state != stateConnected {
		if err := s.connectLocked(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrOperationFailed, err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		lastErr = op(s.drv)
		if lastErr == nil {
			return nil
		}
		if !isConnectionError(lastErr.Error()) {
			return lastErr
		}
		s.state = stateBroken
		s.metrics.SetSessionConnected(s.cfg.Name, false)
		s.logger.Debug("classified driver error as connection failure",
			"error", lastErr, "attempt", attempt)

		if attempt == maxReconnectAttempts {
			break
		}
		s.metrics.IncReconnectAttempt(s.cfg.Name)

		backoff := time.Duration(attempt) * time.Second
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ErrOperationInterrupted
		}

		if err := s.forceReconnectLocked(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrOperationFailed, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrOperationFailed, lastErr)
}

// connectLocked constructs the driver if absent and attempts a connect
// within the 5-second TCP timeout, transitioning to Connected or Broken.
func (s *ManagedSession) connectLocked(ctx context.Context) error {
	if s.drv == nil {
		s.drv = s.newDriver()
	}
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := s.drv.Connect(connectCtx, s.cfg.Address, s.cfg.Port, connectTimeout); err != nil {
		s.state = stateBroken
		s.metrics.SetSessionConnected(s.cfg.Name, false)
		return err
	}
	s.state = stateConnected
	s.metrics.SetSessionConnected(s.cfg.Name, true)
	return nil
}

// reconnectFromBrokenLocked recovers a session that entered Broken on a
// prior call, running up to maxReconnectAttempts full teardown-and-
// reconnect cycles with the same exponential backoff used when a
// connection error is classified mid-operation.
func (s *ManagedSession) reconnectFromBrokenLocked(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		if err := s.forceReconnectLocked(ctx); err != nil {
			lastErr = err
			if attempt == maxReconnectAttempts {
				break
			}
			s.metrics.IncReconnectAttempt(s.cfg.Name)
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ErrOperationInterrupted
			}
			continue
		}
		return nil
	}
	return lastErr
}

// forceReconnectLocked fully tears down the current driver and constructs
// a fresh one before reconnecting.
func (s *ManagedSession) forceReconnectLocked(ctx context.Context) error {
	if s.drv != nil {
		_ = s.drv.Disconnect()
		_ = s.drv.Close()
		s.drv = nil
	}
	return s.connectLocked(ctx)
}

// ForceReconnect tears down and reconnects the session's driver outside
// the retry ladder, for operator-triggered recovery.
func (s *ManagedSession) ForceReconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return ErrSessionClosed
	}
	return s.forceReconnectLocked(ctx)
}

// StartNotification binds a notification callback and starts a TCP
// listener on port, pushing delivered events onto the session's queue.
// It is idempotent-fail: calling it while already active returns false
// without disturbing the running listener.
func (s *ManagedSession) StartNotification(ctx context.Context, port int, listen NotificationListenerStarter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return false, ErrSessionClosed
	}
	if s.notifyActive {
		return false, nil
	}
	if s.state != stateConnected {
		if err := s.connectLocked(ctx); err != nil {
			return false, fmt.Errorf("%w: %v", ErrOperationFailed, err)
		}
	}

	callback := func(ev driver.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.queue.Push(toNotificationEvent(ev))
	}

	if err := s.drv.StartNotification(callback); err != nil {
		return false, fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}
	if err := listen(port, "0.0.0.0", true, callback); err != nil {
		_ = s.drv.StopNotification()
		return false, fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}
	s.listenerPort = port
	s.notifyActive = true
	return true, nil
}

// NotificationListenerStarter matches driver.Reader.StartListener's
// signature, let through as a parameter so session.go does not need to
// hold a reference to the notification_listener.go TCP accept loop
// directly; ManagedSession's caller (the registry) wires the two
// together.
type NotificationListenerStarter func(port int, bindAddr string, keepAlive bool, callback func(driver.Event)) error

// StopNotification reverses StartNotification, tolerating non-Ok driver
// returns with a logged warning.
func (s *ManagedSession) StopNotification() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.notifyActive {
		return
	}
	if s.drv != nil {
		if err := s.drv.StopListener(); err != nil {
			s.logger.Warn("stop listener returned non-ok", "error", err)
		}
		if err := s.drv.StopNotification(); err != nil {
			s.logger.Warn("stop notification returned non-ok", "error", err)
		}
	}
	s.notifyActive = false
	s.listenerPort = 0
}

// IsNotificationActive reports whether a notification listener is
// currently running for this session.
func (s *ManagedSession) IsNotificationActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifyActive
}

// ListenerPort returns the currently bound notification listener port, or
// 0 if notification mode is not active.
func (s *ManagedSession) ListenerPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenerPort
}

// IsConnected reports whether the session's connection state machine is
// currently in the Connected state.
func (s *ManagedSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateConnected
}

// ConnectionStatus renders the current state machine value for the HTTP
// readers listing.
func (s *ManagedSession) ConnectionStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.String()
}

// Close tears down the driver and the notification listener and moves the
// session to the terminal Closed state.
func (s *ManagedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return nil
	}
	if s.notifyActive && s.drv != nil {
		if err := s.drv.StopListener(); err != nil {
			s.logger.Warn("stop listener during close returned non-ok", "error", err)
		}
		if err := s.drv.StopNotification(); err != nil {
			s.logger.Warn("stop notification during close returned non-ok", "error", err)
		}
		s.notifyActive = false
	}
	var err error
	if s.drv != nil {
		_ = s.drv.Disconnect()
		err = s.drv.Close()
		s.drv = nil
	}
	s.state = stateClosed
	s.metrics.SetSessionConnected(s.cfg.Name, false)
	return err
}

func toNotificationEvent(ev driver.Event) NotificationEvent {
	out := NotificationEvent{
		Timestamp:       time.Now(),
		Kind:            EventKind(ev.Kind),
		TagIDHex:        ev.TagIDHex,
		ReaderType:      ev.ReaderType,
		FirmwareVersion: ev.FirmwareVersion,
	}
	for _, r := range ev.RSSI {
		out.RSSI = append(out.RSSI, RSSISample{Antenna: r.Antenna, RSSI: r.RSSI})
	}
	if !ev.ReaderTimestamp.IsZero() {
		ts := ev.ReaderTimestamp
		out.ReaderTimestamp = &ts
	}
	return out
}

// antennaMaskHex renders a mask the way the HTTP readers listing does:
// "0xNN".
func antennaMaskHex(mask uint16) string {
	return "0x" + strings.ToUpper(strconv.FormatUint(uint64(mask), 16))
}
