// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

/*
Package supervisor implements the Supervisor Set: the root controller that
owns every managed service's Service Machine using suture v4 for the
goroutine-presence layer, while each Machine's own breaker-driven loop
supervises its child process.

# Overview

The supervision tree organizes services into three layers for failure
isolation:

	Root ("rootd")
	├── Control ("control")
	│   └── Control HTTP listener
	└── Machines ("machines")
	    └── one Service Machine per entry in daemons/

A crash recovered from one machine's goroutine never takes the HTTP
listener down with it, and vice versa.

# Usage Example

Basic setup in main.go:

	import (
	    "log/slog"
	    "github.com/tomtom215/rootd/internal/supervisor"
	)

	func main() {
	    logger := slog.Default()
	    config := supervisor.DefaultTreeConfig()

	    tree, err := supervisor.NewTree(logger, config)
	    if err != nil {
	        log.Fatal(err)
	    }

	    set, err := supervisor.NewSet(tree, critlog.NewLogger(), rootPath)
	    if err != nil {
	        log.Fatal(err)
	    }

	    ctx, cancel := context.WithCancel(context.Background())
	    if err := set.Boot(ctx); err != nil {
	        log.Fatal(err)
	    }

	    tree.AddControlService(controlServer)

	    if err := tree.Serve(ctx); err != nil {
	        log.Printf("Supervisor stopped: %v", err)
	    }
	}

# Configuration

The TreeConfig controls restart behavior for the machines/control layers
themselves (not the child processes they in turn supervise, which follow
the Service Machine's own retry/backoff policy):

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,          // Failures before backoff
	    FailureDecay:     30.0,         // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

# Service Interface

Every suture.Service (the Control HTTP listener, every machine.Machine)
implements:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: service stopped cleanly, will not be restarted
  - Return error: service crashed, will be restarted
  - Context canceled: shutdown requested, return promptly

# Termination

Canceling the context passed to Tree.Serve cascades into every machine's
Serve, which signals its child with SIGTERM and blocks until it is reaped
before returning — so Tree.Serve returns once every managed child process
has exited, or once the tree's ShutdownTimeout has elapsed for a machine
that has not yet returned (suture then stops waiting on it).
Set.Terminate additionally signals every machine directly, for callers that
want the signal sent without waiting on the full tree shutdown.

# Debugging Shutdown Issues

If services don't stop within the timeout:

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("Service didn't stop: %v", svc)
	}
*/
package supervisor
