// Package api serves scan results and restart requests over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"driftwatch/pkg/sdk/types"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// ScanCache is the read side of the scan cache plus its on-demand trigger.
type ScanCache interface {
	Cached() *types.ScanResult
	TriggerAsync()
	Postpone()
}

// Restarter starts a background restart batch.
type Restarter interface {
	Go(ctx context.Context, units []string) error
}

// RestartHistory lists stored restart timings.
type RestartHistory interface {
	ListRestarts(ctx context.Context, unit string, limit int) ([]types.RestartRecord, error)
}

type Deps struct {
	Cache ScanCache
	// Restarter is nil when restarts are disabled.
	Restarter Restarter
	History   RestartHistory
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

type Server struct {
	deps   Deps
	engine *gin.Engine
	log    *slog.Logger
}

func New(deps Deps) *Server {
	s := &Server{deps: deps, log: slog.With("component", "api")}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(accessLogMiddleware(s.log))

	r.GET("/health", s.health)
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	compose := r.Group("/compose")
	{
		compose.GET("", s.getScan)
		compose.POST("/scan", s.triggerScan)
		compose.GET("/outdated", s.getOutdated)
		compose.POST("/outdated/restart", s.restartOutdated)
		compose.GET("/restarts", s.listRestarts)
	}
	return r
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}
