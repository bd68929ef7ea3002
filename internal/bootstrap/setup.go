// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/rootd/internal/store"
)

// ErrAlreadyInitialized means Setup was asked to initialize a root that
// already has a consistent Config Store.
var ErrAlreadyInitialized = errors.New("daemon set already initialized")

// Setup implements `rootctl setup`: initializes an empty Daemon Set root.
// It creates the root's own Config Store skeleton, enables its actuation so
// a future `rootctl boot` starts it without further configuration, points
// its invocation plan at rootdBinary, and creates the daemons/ subdirectory
// the Supervisor Set scans on boot.
func Setup(root, rootdBinary string) error {
	rootStore := store.New(root)
	if rootStore.IsConsistent() {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, root)
	}

	if err := rootStore.Prepare(); err != nil {
		return err
	}

	cfg, err := rootStore.Load()
	if err != nil {
		return err
	}
	cfg.Actuation = store.Enabled
	cfg.Plan.Executable = &rootdBinary

	if err := rootStore.Store(cfg); err != nil {
		return err
	}

	daemonsDir := filepath.Join(root, "daemons")
	if err := os.MkdirAll(daemonsDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", daemonsDir, err)
	}

	return nil
}
