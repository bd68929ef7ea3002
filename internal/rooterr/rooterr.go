// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package rooterr defines the sentinel error kinds shared across the
// supervisor so the Control HTTP layer can translate a failure into the
// right status code with errors.Is / errors.As instead of string matching.
package rooterr

import "errors"

var (
	// ErrConfig means the on-disk service definition is missing or malformed.
	ErrConfig = errors.New("config error")

	// ErrIO means a filesystem operation on a service directory failed.
	ErrIO = errors.New("io error")

	// ErrChildSpawn means os/exec failed to start the service's executable.
	ErrChildSpawn = errors.New("spawn error")

	// ErrPolicyExceeded means the restart attempt budget has been exhausted
	// and the Service Machine has entered the exits state.
	ErrPolicyExceeded = errors.New("restart policy exceeded")

	// ErrProtocol means the Control HTTP request was malformed (unknown
	// command or unparseable body).
	ErrProtocol = errors.New("protocol error")

	// ErrConflict means the requested operation cannot proceed given the
	// service's current state (e.g. delete while running).
	ErrConflict = errors.New("conflict")

	// ErrNotFound means the referenced service id has no directory.
	ErrNotFound = errors.New("not found")
)
