// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActuationProjection(t *testing.T) {
	require.Equal(t, "enabled", Enabled.String())
	require.Equal(t, "disabled", Disabled.String())
}

func TestParseActuationCaseInsensitive(t *testing.T) {
	for _, raw := range []string{"enabled", "ENABLED", "Enabled\n", "  enabled  "} {
		act, err := ParseActuation(raw)
		require.NoError(t, err)
		require.Equal(t, Enabled, act)
	}

	act, err := ParseActuation("disabled\n")
	require.NoError(t, err)
	require.Equal(t, Disabled, act)
}

func TestParseActuationRejectsUnknown(t *testing.T) {
	_, err := ParseActuation("maybe")
	require.Error(t, err)
}
