package reader_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bookwaves/feig-rfid-bridge/internal/driver"
	"github.com/bookwaves/feig-rfid-bridge/internal/reader"
)

func newTestConfig(name string) reader.Config {
	return reader.Config{Name: name, Address: "127.0.0.1", Port: 10001, Mode: reader.ModeHost, Antennas: []int{1}}
}

func TestSessionExecuteConnectsLazily(t *testing.T) {
	t.Parallel()

	var connectCalls int32
	m := driver.NewMock()
	m.ConnectFunc = func(context.Context, string, int, time.Duration) error {
		atomic.AddInt32(&connectCalls, 1)
		return nil
	}

	s := reader.NewManagedSession(newTestConfig("circ-1"), func() driver.Reader { return m }, discardLogger())

	if s.IsConnected() {
		t.Fatal("IsConnected() = true before first Execute")
	}

	err := s.Execute(context.Background(), func(driver.Reader) error { return nil })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !s.IsConnected() {
		t.Fatal("IsConnected() = false after successful Execute")
	}
	if atomic.LoadInt32(&connectCalls) != 1 {
		t.Errorf("Connect called %d times, want 1", connectCalls)
	}
}

func TestSessionExecutePassesThroughLogicalErrors(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("invalid media id")
	m := driver.NewMock()

	s := reader.NewManagedSession(newTestConfig("circ-1"), func() driver.Reader { return m }, discardLogger())

	err := s.Execute(context.Background(), func(driver.Reader) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("Execute() error = %v, want %v (non-connection errors pass through unwrapped)", err, wantErr)
	}
}

func TestSessionExecuteRetriesClassifiedConnectionErrors(t *testing.T) {
	t.Parallel()

	var attempts int32
	m := driver.NewMock()

	s := reader.NewManagedSession(newTestConfig("circ-1"), func() driver.Reader { return m }, discardLogger())

	err := s.Execute(context.Background(), func(driver.Reader) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("connection lost to peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestSessionExecuteExhaustsRetryLadder(t *testing.T) {
	t.Parallel()

	m := driver.NewMock()
	s := reader.NewManagedSession(newTestConfig("circ-1"), func() driver.Reader { return m }, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.Execute(ctx, func(driver.Reader) error {
		return errors.New("connection timeout -5012")
	})
	if !errors.Is(err, reader.ErrOperationFailed) {
		t.Fatalf("Execute() error = %v, want %v", err, reader.ErrOperationFailed)
	}
}

func TestSessionExecuteRecoversFromBrokenWithFullTeardown(t *testing.T) {
	t.Parallel()

	var constructs int32
	var connectAttempts int32
	newDriver := func() driver.Reader {
		atomic.AddInt32(&constructs, 1)
		m := driver.NewMock()
		m.ConnectFunc = func(context.Context, string, int, time.Duration) error {
			n := atomic.AddInt32(&connectAttempts, 1)
			if n < 3 {
				return errors.New("connection refused")
			}
			return nil
		}
		return m
	}

	s := reader.NewManagedSession(newTestConfig("circ-1"), newDriver, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// First Execute fails its initial connect (the first two connect
	// attempts are scripted to fail) and leaves the session Broken.
	err := s.Execute(ctx, func(driver.Reader) error {
		return errors.New("connection lost to peer")
	})
	if !errors.Is(err, reader.ErrOperationFailed) {
		t.Fatalf("first Execute() error = %v, want %v", err, reader.ErrOperationFailed)
	}
	constructsAfterFirst := atomic.LoadInt32(&constructs)

	// Re-entering Execute on an already-broken session must run its own
	// full teardown-and-reconnect ladder, not a single bare reconnect
	// attempt reusing the old driver handle.
	err = s.Execute(ctx, func(driver.Reader) error { return nil })
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !s.IsConnected() {
		t.Fatal("IsConnected() = false after recovering from Broken")
	}
	if got := atomic.LoadInt32(&constructs); got <= constructsAfterFirst+1 {
		t.Errorf("constructs after recovery = %d, want more than %d (multiple fresh drivers across the backoff ladder)", got, constructsAfterFirst+1)
	}
}

func TestSessionExecuteOnClosedSession(t *testing.T) {
	t.Parallel()

	m := driver.NewMock()
	s := reader.NewManagedSession(newTestConfig("circ-1"), func() driver.Reader { return m }, discardLogger())

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := s.Execute(context.Background(), func(driver.Reader) error { return nil })
	if !errors.Is(err, reader.ErrSessionClosed) {
		t.Fatalf("Execute() on closed session error = %v, want %v", err, reader.ErrSessionClosed)
	}
}

func TestSessionStartStopNotification(t *testing.T) {
	t.Parallel()

	m := driver.NewMock()
	s := reader.NewManagedSession(newTestConfig("circ-2"), func() driver.Reader { return m }, discardLogger())

	listen := func(port int, bindAddr string, keepAlive bool, callback func(driver.Event)) error {
		return nil
	}

	started, err := s.StartNotification(context.Background(), 9000, listen)
	if err != nil {
		t.Fatalf("StartNotification: %v", err)
	}
	if !started {
		t.Fatal("StartNotification() = false, want true")
	}
	if !s.IsNotificationActive() {
		t.Fatal("IsNotificationActive() = false after StartNotification")
	}
	if s.ListenerPort() != 9000 {
		t.Errorf("ListenerPort() = %d, want 9000", s.ListenerPort())
	}

	// Calling again while active is idempotent-fail: returns false, no error.
	started, err = s.StartNotification(context.Background(), 9001, listen)
	if err != nil {
		t.Fatalf("StartNotification (second call): %v", err)
	}
	if started {
		t.Fatal("StartNotification() while already active = true, want false")
	}

	s.StopNotification()
	if s.IsNotificationActive() {
		t.Fatal("IsNotificationActive() = true after StopNotification")
	}
}

func TestSessionNotificationEventReachesQueue(t *testing.T) {
	t.Parallel()

	m := driver.NewMock()
	s := reader.NewManagedSession(newTestConfig("circ-3"), func() driver.Reader { return m }, discardLogger())

	listen := func(port int, bindAddr string, keepAlive bool, callback func(driver.Event)) error {
		return nil
	}

	if _, err := s.StartNotification(context.Background(), 9002, listen); err != nil {
		t.Fatalf("StartNotification: %v", err)
	}

	m.Emit(driver.Event{Kind: driver.EventTag, TagIDHex: "E2801160"})

	events := s.Queue().PollAll()
	if len(events) != 1 {
		t.Fatalf("Queue() after Emit has %d events, want 1", len(events))
	}
	if events[0].TagIDHex != "E2801160" {
		t.Errorf("event TagIDHex = %q, want E2801160", events[0].TagIDHex)
	}
}
