// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package control

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rootd/internal/logging"
	"github.com/tomtom215/rootd/internal/rooterr"
)

// writeJSON serializes body and writes it with an exact Content-Length and
// Content-Type: application/json, honoring spec.md §4.4's response framing
// and the request's Connection header. A HEAD request shares the response
// line and headers of the corresponding GET but its body is omitted by the
// caller (isHead controls that).
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any, isHead bool) {
	payload, err := json.Marshal(body)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("control: failed to marshal response body")
		payload = []byte(`{"error":"internal error"}`)
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	if wantsClose(r) {
		w.Header().Set("Connection", "close")
	}
	w.WriteHeader(status)
	if isHead {
		return
	}
	_, _ = w.Write(payload)
}

// wantsClose implements "respect Connection: close request header; default
// to close": only an explicit keep-alive request header keeps the
// connection open past this response.
func wantsClose(r *http.Request) bool {
	return !strings.EqualFold(r.Header.Get("Connection"), "keep-alive")
}

// errorResponse is the JSON body of every non-2xx control response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps err to the spec.md §7 status-code table and writes a
// uniform JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, err error, isHead bool) {
	status, msg := classifyError(err)
	writeJSON(w, r, status, errorResponse{Error: msg}, isHead)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, rooterr.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, rooterr.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, rooterr.ErrProtocol):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, rooterr.ErrConfig):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, rooterr.ErrChildSpawn):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, rooterr.ErrPolicyExceeded):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, rooterr.ErrIO):
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
