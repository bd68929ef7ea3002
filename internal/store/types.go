// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package store implements the on-disk Config Store: one directory per
// service underneath a Daemon Set root, holding an invocation plan, an
// actuation flag, and an optional abstract. It also defines the invocation
// plan's text codec.
package store

// Actuation records whether a service should be running (enabled) or left
// stopped (disabled) across supervisor restarts.
type Actuation bool

const (
	Enabled  Actuation = true
	Disabled Actuation = false
)

// EnvPair is one entry of an invocation plan's environment section. A nil
// Value means "unset this variable" rather than "set it to empty".
type EnvPair struct {
	Name  string
	Value *string
}

// Plan is the parsed invocation plan: the executable, its argv, and the
// environment delta applied on top of the supervisor's own environment.
type Plan struct {
	Executable *string
	Argv       []string
	Env        []EnvPair
}

// Config is a service's full on-disk definition, as loaded from or about
// to be written to its Service Directory.
type Config struct {
	ID        string
	Route     string
	Plan      Plan
	Abstract  *string
	Actuation Actuation
}

// Snapshot is the externally visible projection of a Config, returned by
// Config.ToSnapshot and serialized by the Control HTTP layer.
type Snapshot struct {
	ID         string   `json:"id"`
	Route      string   `json:"route"`
	Executable *string  `json:"executable,omitempty"`
	Argv       []string `json:"argv,omitempty"`
	Env        []EnvKV  `json:"environment,omitempty"`
	Abstract   *string  `json:"abstract,omitempty"`
	Enabled    bool     `json:"enabled"`
}

// EnvKV is the JSON-facing form of an EnvPair; Value is omitted (not just
// empty) to distinguish "unset" from "set to empty string".
type EnvKV struct {
	Name  string  `json:"name"`
	Value *string `json:"value,omitempty"`
}

func (c *Config) snapshot() Snapshot {
	env := make([]EnvKV, len(c.Plan.Env))
	for i, e := range c.Plan.Env {
		env[i] = EnvKV{Name: e.Name, Value: e.Value}
	}
	return Snapshot{
		ID:         c.ID,
		Route:      c.Route,
		Executable: c.Plan.Executable,
		Argv:       c.Plan.Argv,
		Env:        env,
		Abstract:   c.Abstract,
		Enabled:    bool(c.Actuation),
	}
}
