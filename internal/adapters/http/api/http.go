// Package api exposes pipeline health, metrics, stats and report queries over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
	"github.com/jules-maulard/clash-royale-analytics/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server wires HTTP routes.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	pairsHandler  *PairsHandler
}

// Option configures a Server.
type Option func(*Server)

// WithStats serves GET /stats from provider.
func WithStats(provider StatsProvider) Option {
	return func(s *Server) {
		if provider != nil {
			s.statsHandler = NewStatsHandler(provider)
		}
	}
}

// WithPairs serves GET /pairs from source.
func WithPairs(source PairsSource, maxLimit int) Option {
	return func(s *Server) {
		if source != nil {
			s.pairsHandler = NewPairsHandler(source, maxLimit)
		}
	}
}

// NewServer creates a server. /healthz and /metrics are always registered.
func NewServer(opts ...Option) *Server {
	s := &Server{healthHandler: NewHealthHandler()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	if s.statsHandler != nil {
		mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	}
	if s.pairsHandler != nil {
		mux.HandleFunc("/pairs", MetricsMiddleware(s.pairsHandler.HandleGetPairs, "pairs"))
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// ListenAndServe serves s on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string, log logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Join(ErrServe, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
