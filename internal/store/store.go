// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tomtom215/rootd/internal/rooterr"
)

// Store is the on-disk Config Store for one service directory. It owns no
// in-memory cache: every operation re-reads or re-writes the filesystem, so
// the Control HTTP layer and a Service Machine never observe stale state
// from one another beyond whatever serialization the caller provides (see
// spec.md §5: mutations to a given service's Config Store are serialized by
// the caller, not by Store itself).
type Store struct {
	id    string
	route string
}

// New returns a Store rooted at route, whose service id is the directory's
// basename. The id is never persisted inside the directory; renaming route
// renames the service (spec.md §3).
func New(route string) *Store {
	return &Store{id: filepath.Base(route), route: route}
}

func (s *Store) ID() string    { return s.id }
func (s *Store) Route() string { return s.route }

// Exists reports whether route exists, regardless of type.
func (s *Store) Exists() bool {
	_, err := os.Lstat(s.route)
	return err == nil
}

// IsConsistent implements the consistency witness of spec.md §8 property 3:
// route must be a directory containing actuation.txt (file), if/ containing
// invocation.txt (file), and critical.log (file).
func (s *Store) IsConsistent() bool {
	if !isDir(s.route) {
		return false
	}
	if !isDir(filepath.Join(s.route, "if")) {
		return false
	}
	for _, rel := range []string{"actuation.txt", "critical.log", filepath.Join("if", "invocation.txt")} {
		if !isFile(filepath.Join(s.route, rel)) {
			return false
		}
	}
	return true
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Prepare idempotently creates the directory skeleton: route/, route/if/,
// an empty route/if/invocation.txt, route/actuation.txt=disabled, and an
// empty route/critical.log — the minimum layout IsConsistent requires.
func (s *Store) Prepare() error {
	if err := os.MkdirAll(filepath.Join(s.route, "if"), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", rooterr.ErrIO, s.route, err)
	}

	invPath := filepath.Join(s.route, "if", "invocation.txt")
	if !isFile(invPath) {
		if err := writeAtomic(invPath, []byte(SerializePlan(Plan{}))); err != nil {
			return err
		}
	}

	actPath := filepath.Join(s.route, "actuation.txt")
	if !isFile(actPath) {
		if err := writeAtomic(actPath, []byte(Disabled.String()+"\n")); err != nil {
			return err
		}
	}

	critPath := filepath.Join(s.route, "critical.log")
	if !isFile(critPath) {
		f, err := os.OpenFile(critPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("%w: create %s: %w", rooterr.ErrIO, critPath, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("%w: close %s: %w", rooterr.ErrIO, critPath, err)
		}
	}

	return nil
}

// Load reads actuation.txt, if/invocation.txt, and abstract.txt (if
// present) into a Config. Missing abstract.txt is not an error; a missing
// actuation.txt or invocation.txt on what is otherwise a consistent
// directory surfaces as rooterr.ErrConfig (CorruptState).
func (s *Store) Load() (Config, error) {
	cfg := Config{ID: s.id, Route: s.route}

	actRaw, err := os.ReadFile(filepath.Join(s.route, "actuation.txt"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: read actuation.txt: %w", rooterr.ErrConfig, err)
	}
	act, err := ParseActuation(string(actRaw))
	if err != nil {
		return Config{}, err
	}
	cfg.Actuation = act

	invRaw, err := os.ReadFile(filepath.Join(s.route, "if", "invocation.txt"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: read if/invocation.txt: %w", rooterr.ErrConfig, err)
	}
	plan, err := ParsePlan(string(invRaw))
	if err != nil {
		return Config{}, err
	}
	cfg.Plan = plan

	absRaw, err := os.ReadFile(filepath.Join(s.route, "abstract.txt"))
	if err == nil {
		abstract := trimText(string(absRaw))
		if abstract != "" {
			cfg.Abstract = &abstract
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("%w: read abstract.txt: %w", rooterr.ErrConfig, err)
	}

	return cfg, nil
}

func trimText(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

// Store durably writes the invocation plan and actuation flag, and the
// abstract when set. Each file is written via write-to-temp-in-same-
// directory then rename, so a crash mid-write never leaves a torn file
// (spec.md §4.1, §9).
func (s *Store) Store(cfg Config) error {
	invPath := filepath.Join(s.route, "if", "invocation.txt")
	if err := writeAtomic(invPath, []byte(SerializePlan(cfg.Plan))); err != nil {
		return err
	}

	actPath := filepath.Join(s.route, "actuation.txt")
	if err := writeAtomic(actPath, []byte(cfg.Actuation.String()+"\n")); err != nil {
		return err
	}

	if cfg.Abstract != nil {
		absPath := filepath.Join(s.route, "abstract.txt")
		if err := writeAtomic(absPath, []byte(*cfg.Abstract)); err != nil {
			return err
		}
	}

	return nil
}

// ToSnapshot returns the externally visible projection of cfg, suitable for
// JSON serialization by the Control HTTP layer.
func (cfg Config) ToSnapshot() Snapshot { return cfg.snapshot() }

// Update replaces whichever of {executable, parameters, environment,
// abstract, actuation} are present as keys in fields; keys absent from
// fields leave the corresponding Config field untouched (spec.md §4.1).
// fields is the generic map produced by decoding a JSON update delta, so
// presence (not zero-valuedness) is what is tested.
func Update(cfg Config, fields map[string]any) (Config, error) {
	out := cfg

	if raw, ok := fields["executable"]; ok {
		if raw == nil {
			out.Plan.Executable = nil
		} else {
			str, ok := raw.(string)
			if !ok {
				return cfg, fmt.Errorf("%w: executable must be a string or null", rooterr.ErrProtocol)
			}
			out.Plan.Executable = &str
		}
	}

	if raw, ok := fields["parameters"]; ok {
		argv, err := toStringSlice(raw)
		if err != nil {
			return cfg, fmt.Errorf("%w: parameters: %w", rooterr.ErrProtocol, err)
		}
		out.Plan.Argv = argv
	}

	if raw, ok := fields["environment"]; ok {
		env, err := toEnvSlice(raw)
		if err != nil {
			return cfg, fmt.Errorf("%w: environment: %w", rooterr.ErrProtocol, err)
		}
		out.Plan.Env = env
	}

	if raw, ok := fields["abstract"]; ok {
		if raw == nil {
			out.Abstract = nil
		} else {
			str, ok := raw.(string)
			if !ok {
				return cfg, fmt.Errorf("%w: abstract must be a string or null", rooterr.ErrProtocol)
			}
			out.Abstract = &str
		}
	}

	if raw, ok := fields["actuation"]; ok {
		str, ok := raw.(string)
		if !ok {
			return cfg, fmt.Errorf("%w: actuation must be a string", rooterr.ErrProtocol)
		}
		act, err := ParseActuation(str)
		if err != nil {
			return cfg, err
		}
		out.Actuation = act
	}

	return out, nil
}

func toStringSlice(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array")
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		str, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("expected an array of strings")
		}
		out = append(out, str)
	}
	return out, nil
}

func toEnvSlice(raw any) ([]EnvPair, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array")
	}
	out := make([]EnvPair, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an array of {name, value} objects")
		}
		name, ok := m["name"].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("environment entry missing non-empty name")
		}
		pair := EnvPair{Name: name}
		if v, present := m["value"]; present && v != nil {
			str, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("environment value must be a string or null")
			}
			pair.Value = &str
		}
		out = append(out, pair)
	}
	return out, nil
}

// Void recursively removes route. It is the caller's responsibility to
// enforce spec.md §3's delete-while-running conflict before calling Void.
func (s *Store) Void() error {
	if err := os.RemoveAll(s.route); err != nil {
		return fmt.Errorf("%w: remove %s: %w", rooterr.ErrIO, s.route, err)
	}
	return nil
}

// writeAtomic durably writes data to path: write to a temp file in the
// same directory, fsync it, rename over path, then best-effort fsync the
// containing directory (spec.md §9).
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp in %s: %w", rooterr.ErrIO, dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %w", rooterr.ErrIO, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: fsync %s: %w", rooterr.ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %w", rooterr.ErrIO, tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s to %s: %w", rooterr.ErrIO, tmpName, path, err)
	}

	if dirf, err := os.Open(dir); err == nil {
		_ = dirf.Sync() // best-effort; not all platforms require this for durability
		_ = dirf.Close()
	}

	return nil
}

// ServiceRoutes enumerates the basenames of every subdirectory directly
// under root (spec.md §8 property 2). Regular files are ignored.
func ServiceRoutes(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", rooterr.ErrIO, root, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
