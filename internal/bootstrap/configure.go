// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/rootd/internal/store"
)

// ErrServiceExists means Create was asked to create a service directory
// that is already present.
var ErrServiceExists = errors.New("service directory already exists")

// ErrServiceMissing means a configure command targeted a service directory
// that does not exist.
var ErrServiceMissing = errors.New("service directory does not exist")

// Create implements `rootctl configure <id> create [executable [params...]]`:
// it initializes the service directory disabled, optionally recording the
// executable and its argv, and voids the directory again if storing fails
// partway through (mirroring configure.py's command_create rollback).
func Create(servicePath string, argv []string) (err error) {
	svcStore := store.New(servicePath)
	if svcStore.IsConsistent() {
		return fmt.Errorf("%w: %s", ErrServiceExists, servicePath)
	}

	if err := svcStore.Prepare(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = svcStore.Void()
		}
	}()

	cfg, err := svcStore.Load()
	if err != nil {
		return err
	}
	cfg.Actuation = store.Disabled

	if len(argv) > 0 {
		exe := argv[0]
		cfg.Plan.Executable = &exe
		cfg.Plan.Argv = append([]string(nil), argv[1:]...)
	}

	return svcStore.Store(cfg)
}

// Void implements `rootctl configure <id> void`: removes a service
// directory outright, without the running-process conflict check the
// Control HTTP delete path enforces (offline mutation, spec.md §4.5).
func Void(servicePath string) error {
	svcStore := store.New(servicePath)
	if !svcStore.IsConsistent() {
		return fmt.Errorf("%w: %s", ErrServiceMissing, servicePath)
	}
	return svcStore.Void()
}

// SetActuation implements `rootctl configure <id> enable|disable`.
func SetActuation(servicePath string, enabled bool) error {
	svcStore := store.New(servicePath)
	if !svcStore.IsConsistent() {
		return fmt.Errorf("%w: %s", ErrServiceMissing, servicePath)
	}
	cfg, err := svcStore.Load()
	if err != nil {
		return err
	}
	cfg.Actuation = store.Actuation(enabled)
	return svcStore.Store(cfg)
}

// EnvAdd implements `rootctl configure <id> env-add NAME1 VALUE1 ...`:
// pairs is a flat, even-length list of name/value arguments. A name
// already present in the plan's environment is replaced, preserving its
// position; new names are appended.
func EnvAdd(servicePath string, pairs []string) error {
	if len(pairs)%2 != 0 {
		return fmt.Errorf("%w: env-add requires NAME VALUE pairs", ErrUsage)
	}

	svcStore := store.New(servicePath)
	if !svcStore.IsConsistent() {
		return fmt.Errorf("%w: %s", ErrServiceMissing, servicePath)
	}
	cfg, err := svcStore.Load()
	if err != nil {
		return err
	}

	for i := 0; i < len(pairs); i += 2 {
		name, value := pairs[i], pairs[i+1]
		replaced := false
		for j := range cfg.Plan.Env {
			if cfg.Plan.Env[j].Name == name {
				cfg.Plan.Env[j].Value = &value
				replaced = true
				break
			}
		}
		if !replaced {
			cfg.Plan.Env = append(cfg.Plan.Env, store.EnvPair{Name: name, Value: &value})
		}
	}

	return svcStore.Store(cfg)
}

// EnvDel implements `rootctl configure <id> env-del NAME1 NAME2 ...`.
func EnvDel(servicePath string, names []string) error {
	svcStore := store.New(servicePath)
	if !svcStore.IsConsistent() {
		return fmt.Errorf("%w: %s", ErrServiceMissing, servicePath)
	}
	cfg, err := svcStore.Load()
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := cfg.Plan.Env[:0]
	for _, e := range cfg.Plan.Env {
		if !drop[e.Name] {
			kept = append(kept, e)
		}
	}
	cfg.Plan.Env = kept

	return svcStore.Store(cfg)
}

// ErrUsage signals a malformed configure invocation (exit EX_USAGE).
var ErrUsage = errors.New("usage error")

// Report implements `rootctl configure <id> report` (or the bare
// `rootctl configure <id>` default): a human-readable summary of the
// service's stored definition, written to the returned string by the
// caller. The original writes this to standard error and exits 64; the
// exit code is the caller's concern, not this function's.
func Report(servicePath string) (string, error) {
	svcStore := store.New(servicePath)
	if !svcStore.IsConsistent() {
		return "", fmt.Errorf("%w: %s", ErrServiceMissing, servicePath)
	}
	cfg, err := svcStore.Load()
	if err != nil {
		return "", err
	}

	exe := "(unset)"
	if cfg.Plan.Executable != nil {
		exe = *cfg.Plan.Executable
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Service: %s\n", cfg.ID)
	fmt.Fprintf(&b, "Actuation: %s\n", cfg.Actuation)
	fmt.Fprintf(&b, "Directory: %s\n", cfg.Route)
	fmt.Fprintf(&b, "Command: %s %s\n", exe, strings.Join(cfg.Plan.Argv, " "))
	if len(cfg.Plan.Env) > 0 {
		fmt.Fprintf(&b, "Environment:\n")
		for _, e := range cfg.Plan.Env {
			value := "(unset)"
			if e.Value != nil {
				value = *e.Value
			}
			fmt.Fprintf(&b, "\t%s=%s\n", e.Name, value)
		}
	}
	if cfg.Abstract != nil && *cfg.Abstract != "" {
		fmt.Fprintf(&b, "Abstract: %s\n", *cfg.Abstract)
	}

	return b.String(), nil
}
