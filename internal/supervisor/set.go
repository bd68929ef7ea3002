// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/rootd/internal/critlog"
	"github.com/tomtom215/rootd/internal/machine"
	"github.com/tomtom215/rootd/internal/rooterr"
	"github.com/tomtom215/rootd/internal/store"
)

// Errors for Set.
var (
	ErrMachineAlreadyExists = errors.New("machine already exists in supervisor")
	ErrMachineNotFound      = errors.New("machine is not managed by this supervisor")
	ErrNilTree              = errors.New("supervisor tree cannot be nil")
)

// EnvRootDirectory is the environment variable a booted Set exports to every
// child process's environment (spec.md §6) when unset by the caller.
const EnvRootDirectory = "FAULT_DAEMON_DIRECTORY"

// managedMachine holds the bookkeeping Set needs to add to or remove a
// Service Machine from the machines layer of the supervision tree.
type managedMachine struct {
	token   suture.ServiceToken
	machine *machine.Machine
}

// Set owns the in-memory mapping from service id to Service Machine. It is
// the root controller of spec.md §4.3: it scans the daemon set on boot,
// dispatches a machine per consistent service directory, and carries the
// process-wide termination protocol.
type Set struct {
	tree *Tree
	log  *critlog.Logger

	rootPath   string
	daemonsDir string

	mu       sync.RWMutex
	machines map[string]*managedMachine
}

// NewSet returns a Set rooted at rootPath (the Daemon Set directory of
// spec.md §3). tree must already be constructed; rootPath's daemons/
// subdirectory is scanned by Boot.
func NewSet(tree *Tree, log *critlog.Logger, rootPath string) (*Set, error) {
	if tree == nil {
		return nil, ErrNilTree
	}
	return &Set{
		tree:       tree,
		log:        log,
		rootPath:   rootPath,
		daemonsDir: filepath.Join(rootPath, "daemons"),
		machines:   make(map[string]*managedMachine),
	}, nil
}

// Boot implements spec.md §4.3 `boot`: prepares the root's own on-disk
// artifacts (actuation.txt, if/invocation.txt, critical.log, pid), exports
// FAULT_DAEMON_DIRECTORY if the caller hasn't, then reads daemons/,
// constructs one Service Machine per consistent subdirectory, dispatches
// each, and enqueues `invoke` for those with actuation=enabled.
func (s *Set) Boot(ctx context.Context) error {
	rootStore := store.New(s.rootPath)
	if err := rootStore.Prepare(); err != nil {
		return fmt.Errorf("preparing daemon set root %s: %w", s.rootPath, err)
	}
	if _, err := rootStore.Load(); err != nil {
		return fmt.Errorf("loading daemon set root %s: %w", s.rootPath, err)
	}

	if _, set := os.LookupEnv(EnvRootDirectory); !set {
		_ = os.Setenv(EnvRootDirectory, s.rootPath)
	}

	if err := os.MkdirAll(s.daemonsDir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", rooterr.ErrIO, s.daemonsDir, err)
	}

	pid := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(filepath.Join(s.rootPath, "pid"), []byte(pid), 0o644); err != nil {
		return fmt.Errorf("%w: writing pid file: %w", rooterr.ErrIO, err)
	}

	if err := os.Chdir(s.rootPath); err != nil {
		return fmt.Errorf("%w: chdir %s: %w", rooterr.ErrIO, s.rootPath, err)
	}

	_ = s.log.Record(ctx, s.rootPath, critlog.Event{Service: "rootd", Type: critlog.EventBoot, Detail: "started root daemon"})

	ids, err := store.ServiceRoutes(s.daemonsDir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", s.daemonsDir, err)
	}

	for _, id := range ids {
		svcStore := store.New(filepath.Join(s.daemonsDir, id))
		if !svcStore.IsConsistent() {
			continue
		}

		m := machine.New(svcStore, s.log)
		s.Dispatch(m)

		cfg, err := svcStore.Load()
		if err != nil {
			continue
		}
		if cfg.Actuation == store.Enabled {
			m.ActuateOnBoot(ctx)
		}
	}

	return nil
}

// Dispatch implements spec.md §4.3 `dispatch`: registers and starts a new
// machine in the machines layer. It is idempotent on id.
func (s *Set) Dispatch(m *machine.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.machines[m.ID()]; exists {
		return
	}

	token := s.tree.AddMachineService(m)
	s.machines[m.ID()] = &managedMachine{token: token, machine: m}
}

// ServicePath returns the on-disk directory a service id would occupy
// under this Daemon Set's daemons/ directory, whether or not it exists yet.
func (s *Set) ServicePath(id string) string {
	return filepath.Join(s.daemonsDir, id)
}

// Logger returns the critical.log writer shared by every machine this Set
// dispatches, so callers outside the package (Control HTTP's create path)
// can log against a service's directory with the same instance.
func (s *Set) Logger() *critlog.Logger {
	return s.log
}

// Lookup returns the machine managing id, or (nil, false).
func (s *Set) Lookup(id string) (*machine.Machine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.machines[id]
	if !ok {
		return nil, false
	}
	return e.machine, true
}

// Snapshot returns every managed id mapped to its machine, a point-in-time
// copy safe to range over without holding the Set's lock.
func (s *Set) Snapshot() map[string]*machine.Machine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*machine.Machine, len(s.machines))
	for id, e := range s.machines {
		out[id] = e.machine
	}
	return out
}

// Create implements the Config Store side of a POST-to-nonexistent-id
// service creation (spec.md §4.4): prepares the service directory, then
// dispatches a machine for it. Returns the new Store so the caller can
// apply an update delta before storing it.
func (s *Set) Create(id string) (*store.Store, error) {
	s.mu.RLock()
	_, exists := s.machines[id]
	s.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %q", ErrMachineAlreadyExists, id)
	}

	svcStore := store.New(filepath.Join(s.daemonsDir, id))
	if err := svcStore.Prepare(); err != nil {
		return nil, err
	}

	m := machine.New(svcStore, s.log)
	s.Dispatch(m)
	_ = s.log.Record(context.Background(), svcStore.Route(), critlog.Event{Service: id, Type: critlog.EventCreated})

	return svcStore, nil
}

// Destroy implements spec.md §3's destroy rule and §4.4's DELETE handler:
// a machine with a live child refuses removal with a conflict; otherwise the
// machine is removed from the machines layer and its directory is voided.
func (s *Set) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	e, exists := s.machines[id]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrMachineNotFound, id)
	}
	if e.machine.Snapshot().Status == machine.Executed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q has a running process", rooterr.ErrConflict, id)
	}
	delete(s.machines, id)
	s.mu.Unlock()

	if err := s.tree.RemoveMachine(e.token, 10*time.Second); err != nil {
		return fmt.Errorf("removing machine %q: %w", id, err)
	}

	svcStore := store.New(filepath.Join(s.daemonsDir, id))
	_ = s.log.Record(ctx, svcStore.Route(), critlog.Event{Service: id, Type: critlog.EventVoided})
	return svcStore.Void()
}

// Terminate implements spec.md §4.3 `terminate`: signals every managed
// machine to stop its child. It does not itself wait for the children to
// exit; the caller cancels the shared context driving the supervision tree
// (see Tree.Serve) and Machine.Serve's own shutdown path blocks until its
// child is reaped, so the tree's Serve returns once every machine has
// finished or the tree's ShutdownTimeout has elapsed for it.
func (s *Set) Terminate(ctx context.Context) {
	for _, m := range s.Snapshot() {
		_, _ = m.Terminate(ctx)
	}
}
