// feig-rfid-bridge -- HTTP bridge between library applications and a fleet
// of Feig EPC Gen-2 UHF readers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"github.com/bookwaves/feig-rfid-bridge/internal/config"
	"github.com/bookwaves/feig-rfid-bridge/internal/driver"
	"github.com/bookwaves/feig-rfid-bridge/internal/httpapi"
	"github.com/bookwaves/feig-rfid-bridge/internal/metrics"
	"github.com/bookwaves/feig-rfid-bridge/internal/reader"
	"github.com/bookwaves/feig-rfid-bridge/internal/tagcodec"
	appversion "github.com/bookwaves/feig-rfid-bridge/internal/version"
)

// shutdownTimeout is the maximum time to wait for the HTTP server to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML); defaults to $CONFIG_FILE_PATH")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("feig-rfid-bridge starting",
		slog.String("version", appversion.Version),
		slog.String("http_addr", cfg.HTTP.Addr),
		slog.String("metrics_path", cfg.Metrics.Path),
		slog.Int("reader_count", len(cfg.Readers)),
	)

	collector := metrics.NewCollector(nil)

	passwords := tagcodec.NewPasswordRegistry(cfg.TagPasswords, logger)
	listenerFac := reader.NewTCPListenerFactory(logger)
	registry := reader.NewRegistry(passwords, listenerFac, logger, reader.WithRegistryMetrics(collector))
	defer func() {
		if err := registry.Shutdown(); err != nil {
			logger.Warn("registry shutdown returned error", slog.String("error", err.Error()))
		}
	}()

	for _, rc := range cfg.Readers {
		sessionCfg := reader.Config{
			Name:     rc.Name,
			Address:  rc.Address,
			Port:     rc.Port,
			Mode:     reader.Mode(rc.Mode),
			Antennas: rc.Antennas,
		}
		newDriver := func() driver.Reader { return driver.NewTCPReader() }
		if _, err := registry.Register(sessionCfg, newDriver); err != nil {
			logger.Error("failed to register reader", slog.String("reader", rc.Name), slog.String("error", err.Error()))
			return 1
		}
		logger.Info("reader registered",
			slog.String("reader", rc.Name),
			slog.String("address", rc.Address),
			slog.Int("port", rc.Port),
			slog.String("mode", rc.Mode),
		)
	}

	if err := runServers(cfg, registry, logger); err != nil {
		logger.Error("feig-rfid-bridge exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("feig-rfid-bridge stopped")
	return 0
}

// runServers starts the HTTP server under an errgroup with signal-aware
// shutdown.
func runServers(cfg *config.ServiceConfig, registry *reader.Registry, logger *slog.Logger) error {
	_, handler := httpapi.New(registry, cfg.DefaultTagFormat, cfg.Metrics.Path, logger)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
		return listenAndServe(gCtx, &lc, srv, cfg.HTTP.Addr)
	})

	g.Go(func() error {
		return runWatchdog(gCtx, logger)
	})

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, srv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

func gracefulShutdown(ctx context.Context, logger *slog.Logger, srv *http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// -------------------------------------------------------------------------
// Systemd Integration — sd_notify + watchdog
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// Config + Logger Setup
// -------------------------------------------------------------------------

func loadConfig(path string) (*config.ServiceConfig, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
