// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

/*
Package middleware provides HTTP middleware components for the Control HTTP
server.

This package implements infrastructure middleware for compression, performance
monitoring, request ID tracking, and Prometheus metrics integration. These
components are composed with chi's CORS and rate-limiting middleware in
internal/control/router.go to form the control plane's full middleware stack.

Key Components:

  - Compression: Gzip compression for responses (no size threshold)
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

internal/control/router.go composes this package's middleware with chi's:

	r.Use(chiAdapt(middleware.RequestID))       // Layer 1: Request tracking
	r.Use(chimiddleware.RealIP)                 // Layer 2: Client IP
	r.Use(chimiddleware.Recoverer)              // Layer 3: Panic recovery
	r.Use(cors.Handler(...))                    // Layer 4: CORS headers
	r.Use(httprate.LimitByIP(240, time.Minute)) // Layer 5: Rate limiting
	r.Use(chiAdapt(middleware.PrometheusMetrics)) // Layer 6: Metrics
	r.Use(s.perf.Middleware)                    // Layer 7: Latency tracking

Usage Example - Compression:

	import "github.com/tomtom215/rootd/internal/middleware"

	// Wrap a static-payload handler with gzip compression
	r.With(chiAdapt(middleware.Compression)).Get("/if/http/openapi.json", handler)

	// Every response is compressed, whatever its size
	// Accept-Encoding: gzip header is required

Usage Example - Performance Monitoring:

	// Create performance monitor, keeping a window of the most recent samples
	perfMon := middleware.NewPerformanceMonitor(1024)

	// Wrap the router
	r.Use(perfMon.Middleware)

	// Get performance statistics
	for _, stat := range perfMon.GetStats() {
	    fmt.Printf("%s: p50=%d p95=%d p99=%d\n",
	        stat.Path, stat.P50Duration, stat.P95Duration, stat.P99Duration)
	}

Usage Example - Request ID:

	// Request ID middleware
	r.Use(chiAdapt(middleware.RequestID))

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := r.Context().Value(middleware.RequestIDKey).(string)
	    log.Printf("[%s] Processing request", requestID)
	}

Performance Characteristics:

  - Compression: 70-90% size reduction for JSON (text/json mime types)
  - Compression overhead: ~1-2ms for typical responses
  - Metrics overhead: <0.1ms per request
  - Request ID overhead: <0.01ms (UUID generation)
  - Performance monitor: RWMutex-guarded sliding window of latency samples

Compression Details:

The compression middleware:
  - Compresses every response, whatever its size or content type
  - Requires gzip in the request's Accept-Encoding header
  - Passes WebSocket upgrade requests through uncompressed
  - Sets Content-Encoding: gzip and removes Content-Length

Performance Monitor:

The performance monitor tracks:
  - Request count per endpoint
  - Latency percentiles (p50, p95, p99)
  - Rolling window of the most recent requests (size set by NewPerformanceMonitor)
  - Thread-safe concurrent access with RWMutex

Thread Safety:

All middleware components are thread-safe:
  - Compression uses per-request gzip writers
  - Performance monitor uses sync.RWMutex
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/control: Control HTTP handlers wrapped by this middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
