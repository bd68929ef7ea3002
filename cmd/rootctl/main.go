// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package main is rootctl, the peripheral CLI around a Daemon Set root:
// boot, halt, setup, and configure. It never talks to a running
// supervisor's Control HTTP interface; every mutation goes straight to the
// filesystem via internal/store, the same as the original implementation's
// bin/boot.py, bin/halt.py, bin/setup.py, and bin/configure.py.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/rootd/internal/bootstrap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return bootstrap.ExitUsage
	}

	switch argv[0] {
	case "boot":
		return cmdBoot(argv[1:])
	case "halt":
		return cmdHalt(argv[1:])
	case "setup":
		return cmdSetup(argv[1:])
	case "configure":
		return cmdConfigure(argv[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		return bootstrap.ExitUsage
	}
}

const usage = `usage: rootctl <command> [args]

Commands:
  boot [root]                          start the detached supervisor
  halt [root]                          signal a running supervisor to stop
  setup [root]                         initialize an empty daemon set root
  configure <id> <subcommand> [args]   offline mutation of a service

configure subcommands:
  create [executable [params...]]
  void
  enable
  disable
  env-add NAME1 VALUE1 [NAME2 VALUE2 ...]
  env-del NAME1 [NAME2 ...]
  report
`

// resolveRoot returns args[0] if present, else $FAULT_DAEMON_DIRECTORY, else
// ~/.fault/rootd — the same precedence internal/bootconfig applies to the
// supervisor binary itself.
func resolveRoot(args []string) (string, []string) {
	if len(args) > 0 {
		return args[0], args[1:]
	}
	if env := os.Getenv(bootstrap.EnvRootDirectory); env != "" {
		return env, args
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", args
	}
	return filepath.Join(home, ".fault", "rootd"), args
}

func cmdBoot(args []string) int {
	root, _ := resolveRoot(args)
	if err := bootstrap.Boot(root); err != nil {
		fmt.Fprintf(os.Stderr, "rootctl boot: %v\n", err)
		return exitCodeFor(err)
	}
	return bootstrap.ExitOK
}

func cmdHalt(args []string) int {
	root, _ := resolveRoot(args)
	if err := bootstrap.Halt(root); err != nil {
		fmt.Fprintf(os.Stderr, "rootctl halt: %v\n", err)
		return exitCodeFor(err)
	}
	return bootstrap.ExitOK
}

func cmdSetup(args []string) int {
	root, _ := resolveRoot(args)
	self, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rootctl setup: resolve own path: %v\n", err)
		return bootstrap.ExitUsage
	}
	rootdBinary := filepath.Join(filepath.Dir(self), "rootd")
	if err := bootstrap.Setup(root, rootdBinary); err != nil {
		fmt.Fprintf(os.Stderr, "rootctl setup: %v\n", err)
		return exitCodeFor(err)
	}
	return bootstrap.ExitOK
}

func cmdConfigure(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return bootstrap.ExitUsage
	}
	id := args[0]
	rest := args[1:]

	root := os.Getenv(bootstrap.EnvRootDirectory)
	if root == "" {
		if home, err := os.UserHomeDir(); err == nil {
			root = filepath.Join(home, ".fault", "rootd")
		}
	}
	servicePath := filepath.Join(root, "daemons", id)

	command := "report"
	params := rest
	if len(rest) > 0 {
		command = rest[0]
		params = rest[1:]
	}

	var err error
	switch command {
	case "create":
		err = bootstrap.Create(servicePath, params)
	case "void":
		err = bootstrap.Void(servicePath)
	case "enable":
		err = bootstrap.SetActuation(servicePath, true)
	case "disable":
		err = bootstrap.SetActuation(servicePath, false)
	case "env-add":
		err = bootstrap.EnvAdd(servicePath, params)
	case "env-del":
		err = bootstrap.EnvDel(servicePath, params)
	case "report":
		var report string
		report, err = bootstrap.Report(servicePath)
		if err == nil {
			fmt.Fprint(os.Stderr, report)
			return bootstrap.ExitUsage
		}
	default:
		fmt.Fprintf(os.Stderr, "rootctl configure: unknown subcommand %q\n", command)
		return bootstrap.ExitUsage
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "rootctl configure: %v\n", err)
		return exitCodeFor(err)
	}
	return bootstrap.ExitOK
}

// exitCodeFor maps a bootstrap error to one of spec.md §6's exit codes.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, bootstrap.ErrNotInitialized), errors.Is(err, bootstrap.ErrAlreadyInitialized):
		return bootstrap.ExitConfig
	case errors.Is(err, bootstrap.ErrAlreadyRunning), errors.Is(err, bootstrap.ErrNotRunning):
		return bootstrap.ExitAlreadyRunning
	case errors.Is(err, bootstrap.ErrUsage), errors.Is(err, bootstrap.ErrServiceExists), errors.Is(err, bootstrap.ErrServiceMissing):
		return bootstrap.ExitUsage
	default:
		return bootstrap.ExitConfig
	}
}
