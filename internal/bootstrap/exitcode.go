// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package bootstrap

// Exit codes for the cmd/rootctl commands, per spec.md §6.
const (
	ExitOK             = 0
	ExitUsage          = 64 // EX_USAGE
	ExitConfig         = 78 // EX_CONFIG: daemon set root not initialized
	ExitAlreadyRunning = 128
	ExitNotRunning     = 128
	ExitUnimplemented  = 254
)
