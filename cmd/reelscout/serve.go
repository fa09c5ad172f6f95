package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-reelscout/infrastructure/middleware"
	"github.com/ahrav/go-reelscout/internal/application"
)

const shutdownGrace = 10 * time.Second

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /search and /metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, loader, err := bootstrap(ctx, flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Observability.ListenAddr = addr
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			deps := application.Deps{Logger: logger, Metrics: middleware.NewPrometheusMetrics(reg)}

			srv, err := newSearchServer(ctx, cfg, deps)
			if err != nil {
				return err
			}
			defer srv.Close()

			if loader.Path() != "" {
				stopWatch, err := loader.Watch(ctx, &cfg, func(v any) {
					srv.Reload(ctx, *v.(*application.Config))
				})
				if err != nil {
					logger.Warn().Err(err).Msg("config hot reload disabled")
				} else {
					defer stopWatch()
				}
			}

			return srv.ListenAndServe(ctx, cfg.Observability.ListenAddr, reg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides observability.listen_addr")
	return cmd
}

// searchServer answers HTTP searches with the current orchestrator. A
// config reload swaps the orchestrator without dropping requests.
type searchServer struct {
	deps   application.Deps
	logger zerolog.Logger

	current atomic.Pointer[application.Orchestrator]

	mu     sync.Mutex
	closer io.Closer
}

func newSearchServer(ctx context.Context, cfg application.Config, deps application.Deps) (*searchServer, error) {
	o, closer, err := application.Build(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	s := &searchServer{deps: deps, logger: deps.Logger.With().Str("component", "http").Logger(), closer: closer}
	s.current.Store(o)
	return s, nil
}

// Reload rebuilds the orchestrator from cfg. On failure the previous one
// keeps serving.
func (s *searchServer) Reload(ctx context.Context, cfg application.Config) {
	o, closer, err := application.Build(ctx, cfg, s.deps)
	if err != nil {
		s.logger.Warn().Err(err).Msg("reloaded config rejected, keeping previous pipeline")
		return
	}
	s.current.Store(o)

	s.mu.Lock()
	old := s.closer
	s.closer = closer
	s.mu.Unlock()
	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("release previous cache")
		}
	}
	s.logger.Info().Bool("live", o.Live()).Msg("pipeline rebuilt from reloaded config")
}

// Close releases the current cache.
func (s *searchServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// Handler routes /search, /metrics and /healthz.
func (s *searchServer) Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (s *searchServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	results := s.current.Load().Search(r.Context(), r.URL.Query().Get("q"))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		s.logger.Debug().Err(err).Msg("write search response")
	}
}

// ListenAndServe blocks until ctx is done, then shuts down gracefully.
func (s *searchServer) ListenAndServe(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Msg("server stopped")
	return nil
}
