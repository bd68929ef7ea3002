// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package metrics exposes Prometheus instrumentation for the supervisor:
// per-service machine state, restart counts, breaker state, and Control
// HTTP request volume and latency. Scraped at GET /if/http/metrics.
package metrics
