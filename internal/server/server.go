package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"farmScope/internal/model"
	"farmScope/internal/statscache"
)

// SnapshotSource exposes the cached stats.
type SnapshotSource interface {
	Snapshot() statscache.Snapshot
}

type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func New(addr string, cache SnapshotSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(cache, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func NewRouter(cache SnapshotSource, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(logger))
	r.Use(Logger(logger))
	r.Use(Metrics())

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", Health())
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", Stats(cache))
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

type statsResponse struct {
	UpdatedAt time.Time        `json:"updated_at"`
	Fresh     bool             `json:"fresh"`
	InFlight  bool             `json:"in_flight"`
	Pools     []poolStatResult `json:"pools"`
}

type poolStatResult struct {
	model.PairStat
	Error string `json:"error,omitempty"`
}

func Stats(cache SnapshotSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := cache.Snapshot()
		if snap.UpdatedAt.IsZero() {
			http.Error(w, `{"error":"no data available yet"}`, http.StatusServiceUnavailable)
			return
		}

		resp := statsResponse{
			UpdatedAt: snap.UpdatedAt.UTC(),
			Fresh:     snap.Fresh,
			InFlight:  snap.InFlight,
			Pools:     make([]poolStatResult, 0, len(snap.Stats)),
		}
		for _, s := range snap.Stats {
			p := poolStatResult{PairStat: s}
			if s.Err != nil {
				p.Error = s.Err.Error()
			}
			resp.Pools = append(resp.Pools, p)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
