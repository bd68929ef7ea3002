// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/rootd/internal/logging"
	"github.com/tomtom215/rootd/internal/middleware"
	"github.com/tomtom215/rootd/internal/supervisor"
)

// Server is the Control HTTP component of spec.md §4.4: a single HTTP/1.x
// listener bound to a Unix domain socket, dispatching requests against the
// Supervisor Set it was constructed with.
type Server struct {
	set        *supervisor.Set
	socketPath string
	perf       *middleware.PerformanceMonitor

	httpServer *http.Server
	listener   net.Listener
}

// NewServer returns a Server bound to socketPath (conventionally
// <root>/if/http per spec.md §6), not yet listening.
func NewServer(set *supervisor.Set, socketPath string) *Server {
	s := &Server{set: set, socketPath: socketPath, perf: middleware.NewPerformanceMonitor(1024)}
	s.httpServer = &http.Server{
		Handler:           interceptOptionsStar(s.buildRouter()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// interceptOptionsStar handles "OPTIONS * HTTP/1.1" ahead of chi's router:
// Go's net/http parses that request line into URL.Path == "*" rather than a
// routable path, so chi would otherwise 404 it (spec.md §4.4).
func interceptOptionsStar(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions && r.URL.Path == "*" {
			handleOptions(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve satisfies suture.Service: it binds the Unix socket, serves until
// ctx is canceled, and closes the listener on the way out. A stale socket
// file left behind by an unclean previous shutdown is removed first.
func (s *Server) Serve(ctx context.Context) error {
	if err := removeStaleSocket(s.socketPath); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("control: listen on %s: %w", s.socketPath, err)
	}
	s.listener = ln

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("control: shutdown did not complete cleanly")
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// String satisfies fmt.Stringer so suture logs a readable service name.
func (s *Server) String() string { return "control-http" }

func removeStaleSocket(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("control: stat %s: %w", path, err)
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("control: %s exists and is not a socket", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("control: remove stale socket %s: %w", path, err)
	}
	return nil
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// handleStats reports per-endpoint latency percentiles collected by the
// performance monitor, alongside the Prometheus counters exposed at
// /if/http/metrics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.perf.GetStats(), r.Method == http.MethodHead)
}
