// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package control

import (
	"net/http"
)

// openAPIDocument is a hand-authored description of the control plane's
// command surface, served at GET /if/http/openapi.json and rendered by
// swaggo/http-swagger at /if/http/docs/. This documents the open local
// endpoint; it adds no authentication and changes no behavior (spec.md §1's
// "authenticated remote control" Non-goal is about authentication, not
// documentation).
const openAPIDocument = `{
  "openapi": "3.0.3",
  "info": {
    "title": "rootd control plane",
    "description": "Local administrative HTTP interface for the rootd service supervisor.",
    "version": "1.0.0"
  },
  "paths": {
    "/": {
      "get": {
        "summary": "List every managed service and its current status",
        "responses": { "200": { "description": "id to status map" } }
      }
    },
    "/{id}": {
      "get": {
        "summary": "Full snapshot of one service, including live status and pid",
        "responses": {
          "200": { "description": "service snapshot" },
          "404": { "description": "unknown service id" }
        }
      },
      "post": {
        "summary": "Issue a command, update a service's definition, or create it",
        "description": "Query string carries the command verb as its first bare key (status, reload, normalize, disable, enable, restart, stop, start, interrupt, kill, sleep, hold, release). Body, if present, is a JSON update delta. Posting to an unknown id with a body creates the service.",
        "responses": {
          "200": { "description": "command result" },
          "201": { "description": "service created" },
          "400": { "description": "malformed body or unknown command" }
        }
      },
      "delete": {
        "summary": "Remove a service's on-disk definition",
        "responses": {
          "200": { "description": "removed" },
          "404": { "description": "unknown service id" },
          "409": { "description": "service has a running process" }
        }
      }
    },
    "/*": {
      "post": {
        "summary": "Apply a command to every managed service",
        "responses": { "200": { "description": "id to result map" } }
      }
    }
  }
}
`

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	// Content-Length is left for net/http to compute: the Compression
	// middleware wrapping this route may gzip-encode the body, which
	// changes its length and strips any length set ahead of time.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(openAPIDocument))
}
