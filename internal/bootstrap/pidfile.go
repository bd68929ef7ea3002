// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package bootstrap implements the peripheral lifecycle commands around a
// Daemon Set root: boot (detach and exec the supervisor), halt (signal a
// running one), setup (initialize an empty root), and the offline
// configure mutations, mirrored by cmd/rootctl.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/tomtom215/rootd/internal/rooterr"
)

// EnvRootDirectory is the environment variable naming a Daemon Set root,
// shared with internal/supervisor.EnvRootDirectory and internal/bootconfig.
const EnvRootDirectory = "FAULT_DAEMON_DIRECTORY"

// pidPath is the pidfile spec.md §3/§6 keeps at the Daemon Set root.
func pidPath(root string) string {
	return filepath.Join(root, "pid")
}

// LoadPID reads the pidfile at root, returning 0 if it is absent, empty, or
// does not parse as a positive integer — mirroring the original's
// "invalid pidfile means not running" tolerance.
func LoadPID(root string) (int, error) {
	raw, err := os.ReadFile(pidPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: read pid file: %w", rooterr.ErrIO, err)
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, nil
	}
	return pid, nil
}

// StorePID writes pid to root's pidfile. pid == 0 clears it.
func StorePID(root string, pid int) error {
	if pid == 0 {
		err := os.Remove(pidPath(root))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: remove pid file: %w", rooterr.ErrIO, err)
		}
		return nil
	}
	data := []byte(strconv.Itoa(pid) + "\n")
	if err := os.WriteFile(pidPath(root), data, 0o644); err != nil {
		return fmt.Errorf("%w: write pid file: %w", rooterr.ErrIO, err)
	}
	return nil
}

// IsRunning reports whether pid refers to a live process, using the
// signal-0 probe the original implementation relies on.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
