// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package control

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/rootd/internal/critlog"
	"github.com/tomtom215/rootd/internal/machine"
	"github.com/tomtom215/rootd/internal/rooterr"
	"github.com/tomtom215/rootd/internal/store"
)

const wildcardID = "*"

// maxBodyBytes bounds request body accumulation (spec.md §5 suspension
// point (i)); the control plane's bodies are small JSON update deltas, so a
// generous but finite cap guards against a misbehaving client.
const maxBodyBytes = 1 << 20

// serviceStatus is the per-id projection returned by GET /.
type serviceStatus struct {
	Status string `json:"status"`
}

// serviceDetail is the per-id projection returned by GET /<id>: the full
// on-disk snapshot plus the machine's live status and pid (spec.md §4.4).
type serviceDetail struct {
	store.Snapshot
	Status string `json:"status"`
	PID    int    `json:"pid"`
}

// handleIndex implements GET/HEAD / : 200, body is a map of id -> status.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	isHead := r.Method == http.MethodHead
	out := make(map[string]serviceStatus)
	for id, m := range s.set.Snapshot() {
		out[id] = serviceStatus{Status: string(m.Snapshot().Status)}
	}
	writeJSON(w, r, http.StatusOK, out, isHead)
}

// handleService dispatches GET/HEAD/POST/DELETE for a single service id
// (or the "*" wildcard on POST), per spec.md §4.4's URL/method mapping.
func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	isHead := r.Method == http.MethodHead

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleGet(w, r, id, isHead)
	case http.MethodPost:
		s.handlePost(w, r, id)
	case http.MethodDelete:
		s.handleDelete(w, r, id)
	default:
		w.Header().Set("Allow", "GET,HEAD,POST,DELETE")
		writeJSON(w, r, http.StatusMethodNotAllowed, errorResponse{Error: fmt.Sprintf("method %s not allowed", r.Method)}, isHead)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, id string, isHead bool) {
	m, ok := s.set.Lookup(id)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %q", rooterr.ErrNotFound, id), isHead)
		return
	}
	svcStore := store.New(s.set.ServicePath(id))
	cfg, err := svcStore.Load()
	if err != nil {
		writeError(w, r, err, isHead)
		return
	}
	snap := m.Snapshot()
	detail := serviceDetail{Snapshot: cfg.ToSnapshot(), Status: string(snap.Status), PID: snap.PID}
	writeJSON(w, r, http.StatusOK, detail, isHead)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request, id string) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err, false)
		return
	}

	if id == wildcardID {
		s.handleWildcard(w, r, body)
		return
	}

	m, ok := s.set.Lookup(id)
	if !ok {
		s.handleCreate(w, r, id, body)
		return
	}

	if len(body) > 0 {
		if err := s.applyUpdate(id, body); err != nil {
			writeError(w, r, err, false)
			return
		}
	}

	pq := parseCommandQuery(r.URL.RawQuery)
	if !pq.present {
		writeJSON(w, r, http.StatusOK, map[string]string{"result": "updated"}, false)
		return
	}
	if !knownCommands[pq.command] {
		writeError(w, r, fmt.Errorf("%w: UNKNOWN SERVICE OPERATION", rooterr.ErrProtocol), false)
		return
	}

	svcStore := store.New(s.set.ServicePath(id))
	result, err := dispatchCommand(r.Context(), pq.command, m, svcStore)
	if err != nil {
		writeError(w, r, err, false)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"result": result}, false)
}

// handleCreate implements "POST /<id> with body, unknown id: create
// service from JSON delta" in the exact mutation order spec.md §4.4
// prescribes: (a) prepare on disk, (b) apply update, (c) store, (d)
// dispatch machine, (e) reply 201.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, id string, body []byte) {
	svcStore := store.New(s.set.ServicePath(id))
	if err := svcStore.Prepare(); err != nil {
		writeError(w, r, err, false)
		return
	}

	cfg, err := svcStore.Load()
	if err != nil {
		writeError(w, r, err, false)
		return
	}

	if len(body) > 0 {
		fields, err := decodeDelta(body)
		if err != nil {
			writeError(w, r, err, false)
			return
		}
		cfg, err = store.Update(cfg, fields)
		if err != nil {
			writeError(w, r, err, false)
			return
		}
	}

	if err := svcStore.Store(cfg); err != nil {
		writeError(w, r, err, false)
		return
	}

	m := machine.New(svcStore, s.set.Logger())
	s.set.Dispatch(m)
	_ = s.set.Logger().Record(r.Context(), svcStore.Route(), critlog.Event{Service: id, Type: critlog.EventCreated})

	pq := parseCommandQuery(r.URL.RawQuery)
	if pq.present && knownCommands[pq.command] {
		if _, err := dispatchCommand(r.Context(), pq.command, m, svcStore); err != nil {
			writeError(w, r, err, false)
			return
		}
	} else if cfg.Actuation == store.Enabled {
		m.ActuateOnBoot(r.Context())
	}

	writeJSON(w, r, http.StatusCreated, serviceDetail{
		Snapshot: cfg.ToSnapshot(),
		Status:   string(m.Snapshot().Status),
		PID:      m.Snapshot().PID,
	}, false)
}

func (s *Server) applyUpdate(id string, body []byte) error {
	svcStore := store.New(s.set.ServicePath(id))
	cfg, err := svcStore.Load()
	if err != nil {
		return err
	}
	fields, err := decodeDelta(body)
	if err != nil {
		return err
	}
	cfg, err = store.Update(cfg, fields)
	if err != nil {
		return err
	}
	return svcStore.Store(cfg)
}

func decodeDelta(body []byte) (map[string]any, error) {
	if err := validateUpdateDelta(body); err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body: %w", rooterr.ErrProtocol, err)
	}
	return fields, nil
}

// handleWildcard implements spec.md §4.4's "*" fan-out: the command is
// applied to every managed service and the response maps each id to its
// individual result (or error message).
func (s *Server) handleWildcard(w http.ResponseWriter, r *http.Request, body []byte) {
	pq := parseCommandQuery(r.URL.RawQuery)
	if !pq.present || !knownCommands[pq.command] {
		writeError(w, r, fmt.Errorf("%w: UNKNOWN SERVICE OPERATION", rooterr.ErrProtocol), false)
		return
	}

	results := make(map[string]string)
	for id, m := range s.set.Snapshot() {
		if len(body) > 0 {
			if err := s.applyUpdate(id, body); err != nil {
				results[id] = err.Error()
				continue
			}
		}
		svcStore := store.New(s.set.ServicePath(id))
		result, err := dispatchCommand(r.Context(), pq.command, m, svcStore)
		if err != nil {
			results[id] = err.Error()
			continue
		}
		results[id] = result
	}
	writeJSON(w, r, http.StatusOK, results, false)
}

// handleDelete implements DELETE /<id>: void the service, 409 if running.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := s.set.Lookup(id); !ok {
		writeError(w, r, fmt.Errorf("%w: %q", rooterr.ErrNotFound, id), false)
		return
	}
	if err := s.set.Destroy(r.Context(), id); err != nil {
		if errors.Is(err, rooterr.ErrConflict) {
			writeJSON(w, r, http.StatusConflict, errorResponse{Error: "running services may not be removed"}, false)
			return
		}
		writeError(w, r, err, false)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"result": "removed"}, false)
}

// handleOptions implements "OPTIONS *": 204 with an Allow header, handled
// ahead of chi's router since Go's net/http parses "OPTIONS * HTTP/1.1"
// into URL.Path == "*" rather than a routable path.
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET,HEAD,POST,DELETE")
	if wantsClose(r) {
		w.Header().Set("Connection", "close")
	}
	w.WriteHeader(http.StatusNoContent)
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	limited := io.LimitReader(r.Body, maxBodyBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: reading request body: %w", rooterr.ErrProtocol, err)
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("%w: request body exceeds %d bytes", rooterr.ErrProtocol, maxBodyBytes)
	}
	return data, nil
}
