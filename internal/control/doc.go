// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package control implements the Control HTTP component of spec.md §4.4: a
// single HTTP/1.x server bound to a local Unix domain socket that maps
// GET/POST/DELETE/OPTIONS requests against service ids to commands issued
// to the Supervisor Set and its managed Service Machines.
package control
