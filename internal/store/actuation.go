// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package store

import (
	"fmt"
	"strings"

	"github.com/tomtom215/rootd/internal/rooterr"
)

// String projects an Actuation to the ASCII token stored in actuation.txt:
// actuates(true) == "enabled", actuates(false) == "disabled" (spec.md §8
// property 4).
func (a Actuation) String() string {
	if a {
		return "enabled"
	}
	return "disabled"
}

// ParseActuation decodes an actuation.txt payload: a single ASCII token,
// case-insensitive, optionally followed by trailing whitespace/newline.
func ParseActuation(raw string) (Actuation, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	switch token {
	case "enabled":
		return Enabled, nil
	case "disabled":
		return Disabled, nil
	default:
		return Disabled, fmt.Errorf("%w: unrecognized actuation token %q", rooterr.ErrConfig, raw)
	}
}
