// Package httpapi implements the bridge's JSON REST surface over the
// reader registry and protocol engines, routed with go-chi/chi/v5.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookwaves/feig-rfid-bridge/internal/reader"
)

// Server is a thin adapter between the chi router and the reader
// registry: a small struct holding the domain owner and a logger, one
// method per endpoint.
type Server struct {
	registry         *reader.Registry
	logger           *slog.Logger
	defaultTagFormat string
}

// New constructs a Server and its chi router. metricsPath, if non-empty,
// mounts promhttp.Handler() at that path.
func New(registry *reader.Registry, defaultTagFormat string, metricsPath string, logger *slog.Logger) (*Server, http.Handler) {
	s := &Server{
		registry:         registry,
		defaultTagFormat: defaultTagFormat,
		logger:           logger.With(slog.String("component", "httpapi")),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/test", s.handleTest)
	r.Get("/readers", s.handleReaders)
	r.Get("/inventory/{name}", s.handleInventory)
	r.Post("/initialize/{name}", s.handleInitialize)
	r.Post("/edit/{name}", s.handleEdit)
	r.Post("/clear/{name}", s.handleClear)
	r.Post("/secure/{name}", s.handleSecure)
	r.Post("/unsecure/{name}", s.handleUnsecure)
	r.Get("/analyze/{name}", s.handleAnalyze)
	r.Post("/notification/start/{name}", s.handleNotificationStart)
	r.Post("/notification/stop/{name}", s.handleNotificationStop)
	r.Get("/notification/events/{name}", s.handleNotificationEvents)
	r.Get("/notification/status", s.handleNotificationStatus)

	if metricsPath != "" {
		r.Handle(metricsPath, promhttp.Handler())
	}

	return s, r
}

// requestLogger is a chi middleware logging method, path, status,
// duration, and request id for every request. A single wrapper is used
// because net/http handlers share no common entrypoint to log from.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		s.logger.Info("request",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("requestId", chimiddleware.GetReqID(req.Context())),
		)
	})
}

// envelope is the JSON success/failure wrapper every endpoint uses.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "status", status)
	} else {
		logger.Warn("request failed", "error", err, "status", status)
	}
	writeJSON(w, status, envelope{"success": false, "error": err.Error()})
}

func writeSuccess(w http.ResponseWriter, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Hello Feig!"))
}

func (s *Server) handleTest(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Test successful"))
}
