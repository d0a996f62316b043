package reader

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/bookwaves/feig-rfid-bridge/internal/driver"
)

// keepAlivePeriod is the TCP keep-alive interval applied to accepted
// notification connections.
const keepAlivePeriod = 30 * time.Second

// NewTCPListenerFactory returns a ListenerFactory that opens a real
// net.TCPListener per reader and hands every accepted connection's
// decoded events to onEvent via callback.
func NewTCPListenerFactory(logger *slog.Logger) ListenerFactory {
	return func(ctx context.Context, port int, bindAddr string, keepAlive bool, onEvent func(driver.Event)) (func(), error) {
		lc := net.ListenConfig{}
		ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", bindAddr, port))
		if err != nil {
			return nil, fmt.Errorf("notification listener: listen on port %d: %w", port, err)
		}

		acceptCtx, cancel := context.WithCancel(ctx)
		go acceptLoop(acceptCtx, ln, keepAlive, onEvent, logger.With(slog.Int("port", port)))

		stop := func() {
			cancel()
			_ = ln.Close()
		}
		return stop, nil
	}
}

func acceptLoop(ctx context.Context, ln net.Listener, keepAlive bool, onEvent func(driver.Event), logger *slog.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Warn("notification listener accept failed", "error", err)
			return
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok && keepAlive {
			_ = tcpConn.SetKeepAlive(true)
			_ = tcpConn.SetKeepAlivePeriod(keepAlivePeriod)
		}
		go handleNotificationConn(ctx, conn, onEvent, logger)
	}
}

// handleNotificationConn decodes Feig reader event frames from conn and
// forwards each to onEvent until the connection closes or ctx is
// canceled. The wire framing of the vendor notification protocol is out
// of scope for the bridge's own codec family; production deployments bind
// this to the vendor SDK's own decoder instead of reimplementing it here.
func handleNotificationConn(ctx context.Context, conn net.Conn, onEvent func(driver.Event), logger *slog.Logger) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	decoder := newFrameDecoder(conn)
	for {
		ev, err := decoder.next()
		if err != nil {
			return
		}
		onEvent(ev)
	}
}
