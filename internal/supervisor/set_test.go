// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/rootd/internal/critlog"
	"github.com/tomtom215/rootd/internal/machine"
	"github.com/tomtom215/rootd/internal/rooterr"
	"github.com/tomtom215/rootd/internal/store"
)

func strp(s string) *string { return &s }

func unsetEnvForTest(t *testing.T, key string) {
	t.Helper()
	prev, had := os.LookupEnv(key)
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() {
		if had {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})
}

func newTestSet(t *testing.T, root string) (*Set, *Tree) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "daemons"), 0o755))

	tree, err := NewTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	require.NoError(t, err)

	set, err := NewSet(tree, critlog.NewLogger(), root)
	require.NoError(t, err)

	return set, tree
}

func TestBootDispatchesConsistentServicesOnly(t *testing.T) {
	unsetEnvForTest(t, EnvRootDirectory)

	root := t.TempDir()
	daemonsDir := filepath.Join(root, "daemons")
	require.NoError(t, os.MkdirAll(daemonsDir, 0o755))

	good := store.New(filepath.Join(daemonsDir, "good"))
	require.NoError(t, good.Prepare())
	require.NoError(t, good.Store(store.Config{
		Plan:      store.Plan{Executable: strp("/bin/sleep"), Argv: []string{"5"}},
		Actuation: store.Enabled,
	}))

	require.NoError(t, os.MkdirAll(filepath.Join(daemonsDir, "incomplete"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(daemonsDir, "notes.txt"), []byte("x"), 0o644))

	tree, err := NewTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	require.NoError(t, err)
	set, err := NewSet(tree, critlog.NewLogger(), root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tree.Serve(ctx)

	require.NoError(t, set.Boot(ctx))

	snap := set.Snapshot()
	require.Len(t, snap, 1)
	_, ok := snap["good"]
	require.True(t, ok)

	require.Equal(t, root, os.Getenv(EnvRootDirectory))

	pidRaw, err := os.ReadFile(filepath.Join(root, "pid"))
	require.NoError(t, err)
	require.NotEmpty(t, pidRaw)
}

func TestCreateThenDestroy(t *testing.T) {
	root := t.TempDir()
	set, tree := newTestSet(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tree.Serve(ctx)

	svcStore, err := set.Create("newsvc")
	require.NoError(t, err)
	require.True(t, svcStore.Exists())

	_, ok := set.Lookup("newsvc")
	require.True(t, ok)

	require.NoError(t, set.Destroy(ctx, "newsvc"))
	require.False(t, svcStore.Exists())

	_, ok = set.Lookup("newsvc")
	require.False(t, ok)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	root := t.TempDir()
	set, tree := newTestSet(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tree.Serve(ctx)

	_, err := set.Create("dup")
	require.NoError(t, err)

	_, err = set.Create("dup")
	require.ErrorIs(t, err, ErrMachineAlreadyExists)
}

func TestDestroyConflictsWhenRunning(t *testing.T) {
	root := t.TempDir()
	set, tree := newTestSet(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tree.Serve(ctx)

	svcStore, err := set.Create("svc")
	require.NoError(t, err)
	require.NoError(t, svcStore.Store(store.Config{
		Plan:      store.Plan{Executable: strp("/bin/sleep"), Argv: []string{"5"}},
		Actuation: store.Enabled,
	}))

	m, ok := set.Lookup("svc")
	require.True(t, ok)

	started, err := m.Invoke(ctx)
	require.NoError(t, err)
	require.True(t, started)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && m.Snapshot().Status != machine.Executed {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, machine.Executed, m.Snapshot().Status)

	err = set.Destroy(ctx, "svc")
	require.ErrorIs(t, err, rooterr.ErrConflict)

	_, err = m.Terminate(ctx)
	require.NoError(t, err)
}

func TestDestroyUnknownIDIsNotFound(t *testing.T) {
	root := t.TempDir()
	set, tree := newTestSet(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tree.Serve(ctx)

	err := set.Destroy(ctx, "ghost")
	require.ErrorIs(t, err, ErrMachineNotFound)
}

func TestTerminateSignalsEveryMachine(t *testing.T) {
	root := t.TempDir()
	set, tree := newTestSet(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tree.Serve(ctx)

	svcStore, err := set.Create("svc")
	require.NoError(t, err)
	require.NoError(t, svcStore.Store(store.Config{
		Plan:      store.Plan{Executable: strp("/bin/sleep"), Argv: []string{"5"}},
		Actuation: store.Disabled,
	}))

	m, ok := set.Lookup("svc")
	require.True(t, ok)
	_, err = m.Invoke(ctx)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && m.Snapshot().Status != machine.Executed {
		time.Sleep(5 * time.Millisecond)
	}

	set.Terminate(ctx)

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && m.Snapshot().Status != machine.Terminated {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, machine.Terminated, m.Snapshot().Status)
}
