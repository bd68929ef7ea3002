// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package main is the entry point for rootd, the service supervisor.
//
// # Application Architecture
//
// rootd initializes components in the following order:
//
//  1. Configuration: load the root directory, socket path, and policy
//     overrides from environment variables and an optional config file
//     (Koanf v2)
//  2. Logging: structured zerolog output, level and format from config
//  3. Supervisor tree: the three-layer suture tree (root/control/machines)
//  4. Supervisor Set: scans the daemon set root, dispatches one Service
//     Machine per consistent service directory, actuates the enabled ones
//  5. Control HTTP: the Unix-socket administrative listener, added to the
//     tree's control layer
//  6. Signal handling: SIGINT/SIGTERM cancel the shared context, which the
//     tree and every machine shut down against
//
// # Configuration
//
// Environment variables (see internal/bootconfig):
//   - FAULT_DAEMON_DIRECTORY: the daemon set root
//   - ROOTD_SOCKET_PATH: Control HTTP socket path override
//   - ROOTD_LOG_LEVEL, ROOTD_LOG_FORMAT: logging
//   - ROOTD_CONFIG_PATH: YAML config file override
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/rootd/internal/bootconfig"
	"github.com/tomtom215/rootd/internal/control"
	"github.com/tomtom215/rootd/internal/critlog"
	"github.com/tomtom215/rootd/internal/logging"
	"github.com/tomtom215/rootd/internal/supervisor"
)

func main() {
	cfg, err := bootconfig.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})

	logging.Info().
		Str("root", cfg.Root.Directory).
		Str("socket", cfg.Root.SocketPath).
		Msg("starting rootd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewTree(slogLogger, supervisor.TreeConfig{
		ShutdownTimeout: 10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	log := critlog.NewLogger()
	set, err := supervisor.NewSet(tree, log, cfg.Root.Directory)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor set")
	}

	if err := set.Boot(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to boot daemon set")
	}
	logging.Info().Msg("daemon set booted")

	controlServer := control.NewServer(set, cfg.Root.SocketPath)
	tree.AddControlService(controlServer)
	logging.Info().Str("socket", cfg.Root.SocketPath).Msg("control http service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		set.Terminate(ctx)
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	logging.Info().Msg("rootd stopped gracefully")
}
