// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package critlog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAppendsAndCloses(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger()

	require.NoError(t, l.Record(context.Background(), dir, Event{Service: "web", Type: EventInvoked, Detail: "pid=123"}))
	require.NoError(t, l.Record(context.Background(), dir, Event{Service: "web", Type: EventExited, Detail: "status=0"}))

	data, err := os.ReadFile(filepath.Join(dir, "critical.log"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "invoked")
	require.Contains(t, lines[1], "exited")
}

func TestRecordSanitizesNewlines(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger()

	require.NoError(t, l.Record(context.Background(), dir, Event{Service: "web", Type: EventControlled, Detail: "line1\nline2"}))

	data, err := os.ReadFile(filepath.Join(dir, "critical.log"))
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "\n"))
}
