// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package control

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/rootd/internal/middleware"
)

// buildRouter wires the chi mux and middleware stack: request id/logging,
// real IP, panic recovery, CORS, then rate limiting, then Prometheus
// instrumentation, ahead of the route handlers.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chiAdapt(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(240, time.Minute))
	r.Use(chiAdapt(middleware.PrometheusMetrics))
	r.Use(s.perf.Middleware)

	r.Get("/", s.handleIndex)
	r.Head("/", s.handleIndex)
	r.Get("/if/http/metrics", s.handleMetrics)
	r.Get("/if/http/stats", s.handleStats)
	// The OpenAPI document and its rendered docs are static payloads with
	// no Content-Length exactness requirement, unlike the command
	// endpoints below (spec.md §4.4), so gzip is safe to apply here.
	r.With(chiAdapt(middleware.Compression)).Get("/if/http/openapi.json", s.handleOpenAPI)
	r.With(chiAdapt(middleware.Compression)).Get("/if/http/docs/*", httpSwagger.Handler(httpSwagger.URL("/if/http/openapi.json")))
	r.HandleFunc("/{id}", s.handleService)

	return r
}

// chiAdapt lifts this package's func(http.HandlerFunc) http.HandlerFunc
// middleware shape onto chi's func(http.Handler) http.Handler convention.
func chiAdapt(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}
