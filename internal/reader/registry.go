package reader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bookwaves/feig-rfid-bridge/internal/driver"
	"github.com/bookwaves/feig-rfid-bridge/internal/tagcodec"
)

// listenerPortSeed is the first port handed out to a notification-mode
// session.
const listenerPortSeed = 20001

// Registry owns every configured reader's ManagedSession, keyed by
// reader name, plus the monotonically increasing listener-port
// allocator: a mutex-guarded map of sessions keyed by reader name, with
// a single Shutdown fan-out.
type Registry struct {
	mu            sync.RWMutex
	sessions      map[string]*ManagedSession
	engines       map[string]*Engine
	listenerStops map[string]func()
	nextPort      int
	passwords     *tagcodec.PasswordRegistry
	logger        *slog.Logger
	listenerFac   ListenerFactory
	metrics       MetricsReporter
}

// RegistryOption configures optional Registry parameters.
type RegistryOption func(*Registry)

// WithRegistryMetrics installs mr as the MetricsReporter for the registry
// and every session/engine it subsequently constructs.
func WithRegistryMetrics(mr MetricsReporter) RegistryOption {
	return func(r *Registry) {
		if mr != nil {
			r.metrics = mr
		}
	}
}

// ListenerFactory starts a TCP notification listener for a reader and
// returns a stop function. It is injected so Registry does not import
// net directly, keeping notification_listener.go as the one place that
// does.
type ListenerFactory func(ctx context.Context, port int, bindAddr string, keepAlive bool, onEvent func(driver.Event)) (stop func(), err error)

// NewRegistry constructs an empty registry.
func NewRegistry(passwords *tagcodec.PasswordRegistry, listenerFac ListenerFactory, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:      make(map[string]*ManagedSession),
		engines:       make(map[string]*Engine),
		listenerStops: make(map[string]func()),
		nextPort:      listenerPortSeed,
		passwords:     passwords,
		listenerFac:   listenerFac,
		logger:        logger,
		metrics:       defaultMetrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates and stores a ManagedSession for cfg, failing if a
// session with the same name already exists.
func (r *Registry) Register(cfg Config, newDriver DriverFactory) (*ManagedSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[cfg.Name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateSession, cfg.Name)
	}
	session := NewManagedSession(cfg, newDriver, r.logger, WithSessionMetrics(r.metrics))
	r.sessions[cfg.Name] = session
	r.engines[cfg.Name] = NewEngine(session, r.passwords, r.metrics, r.logger)
	return session, nil
}

// Get returns the named session and its protocol engine.
func (r *Registry) Get(name string) (*ManagedSession, *Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	return session, r.engines[name], nil
}

// All returns every registered session, in no particular order.
func (r *Registry) All() []*ManagedSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ManagedSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Names returns every registered reader name, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		out = append(out, name)
	}
	return out
}

// nextListenerPort returns and advances the shared listener-port counter.
func (r *Registry) nextListenerPort() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	port := r.nextPort
	r.nextPort++
	return port
}

// StartNotification allocates the next listener port and starts
// notification mode on the named session.
func (r *Registry) StartNotification(ctx context.Context, name string) (int, bool, error) {
	session, _, err := r.Get(name)
	if err != nil {
		return 0, false, err
	}
	port := r.nextListenerPort()

	starter := func(p int, bindAddr string, keepAlive bool, callback func(driver.Event)) error {
		stop, serr := r.listenerFac(ctx, p, bindAddr, keepAlive, callback)
		if serr != nil {
			return serr
		}
		r.mu.Lock()
		r.listenerStops[name] = stop
		r.mu.Unlock()
		return nil
	}
	started, err := session.StartNotification(ctx, port, starter)
	if err != nil || !started {
		return port, started, err
	}
	return port, true, nil
}

// StopNotification reverses StartNotification on the named session.
func (r *Registry) StopNotification(name string) error {
	session, _, err := r.Get(name)
	if err != nil {
		return err
	}
	session.StopNotification()
	r.mu.Lock()
	if stop, ok := r.listenerStops[name]; ok {
		stop()
		delete(r.listenerStops, name)
	}
	r.mu.Unlock()
	return nil
}

// Shutdown closes every registered session, fanning the shutdown out
// across all readers.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	sessions := make([]*ManagedSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
