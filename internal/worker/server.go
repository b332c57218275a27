// Package worker exposes validation tasks to the host over HTTP.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/cv-validator/internal/metrics"
	"github.com/spigell/cv-validator/internal/validation"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8000"

	maxRequestBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Config configures the worker server.
type Config struct {
	Addr string
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Request is the body of POST /run.
type Request struct {
	Agent   string         `json:"agent"`
	Payload map[string]any `json:"payload"`
}

// Response is returned by POST /run.
type Response struct {
	Agent  string `json:"agent,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Server dispatches host requests to registered tasks.
type Server struct {
	addr     string
	registry *Registry
	logger   *zap.Logger
	metrics  *metrics.Metrics
	handler  http.Handler
}

// New creates a Server.
func New(cfg Config, registry *Registry, log *zap.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		addr:     addr,
		registry: registry,
		logger:   log,
		metrics:  m,
	}
	s.handler = s.routes(gatherer)

	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Post("/run", s.handleRun)

	return r
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting worker server",
			zap.String("addr", listener.Addr().String()),
			zap.Strings("agents", s.registry.Names()),
		)
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down worker server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req Request

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		s.respond(w, "", http.StatusBadRequest, Response{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	task, err := s.registry.Lookup(req.Agent)
	if err != nil {
		s.respond(w, "unknown", http.StatusNotFound, Response{Agent: req.Agent, Error: err.Error()})
		return
	}

	log := s.logger.With(
		zap.String("agent", req.Agent),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)

	result, err := task.Run(r.Context(), req.Payload)
	code := statusFor(err)

	resp := Response{Agent: req.Agent, Result: result}
	if err != nil {
		resp.Error = err.Error()
		if code == http.StatusInternalServerError {
			log.Error("task failed", zap.Error(err))
		} else {
			log.Warn("task rejected", zap.Int("code", code), zap.Error(err))
		}
	}

	s.respond(w, req.Agent, code, resp)
}

func statusFor(err error) int {
	var deliveryErr *validation.DeliveryError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, validation.ErrMissingSubmissionID):
		return http.StatusBadRequest
	case errors.As(err, &deliveryErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respond(w http.ResponseWriter, agent string, code int, resp Response) {
	s.metrics.RecordTask(agent, strconv.Itoa(code))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("writing response", zap.Error(err))
	}
}
