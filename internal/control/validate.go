// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package control

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rootd/internal/rooterr"
	"github.com/tomtom215/rootd/internal/validation"
)

// updateDeltaShape mirrors the JSON update delta body accepted by POST
// handlers (spec.md §4.1 `update`, §4.4 create-from-delta). It exists only
// to give go-playground/validator a typed struct to validate the body's
// coarse shape against before the fields are handed to store.Update, which
// performs the field-by-field decode against the looser map[string]any it
// actually needs (some fields, like environment value, are intentionally
// nullable in a way a validator tag can't express cleanly).
type updateDeltaShape struct {
	Executable  *string              `json:"executable" validate:"omitempty"`
	Parameters  []string             `json:"parameters" validate:"omitempty,dive,required"`
	Environment []envPairShape       `json:"environment" validate:"omitempty,dive"`
	Abstract    *string              `json:"abstract" validate:"omitempty"`
	Actuation   *string              `json:"actuation" validate:"omitempty,oneof=enabled disabled Enabled Disabled"`
}

type envPairShape struct {
	Name  string  `json:"name" validate:"required"`
	Value *string `json:"value" validate:"omitempty"`
}

// validateUpdateDelta unmarshals the raw request body into updateDeltaShape
// and runs it through validation.ValidateStruct, surfacing a
// rooterr.ErrProtocol on violation. It is a best-effort shape check: any
// key in the body that is absent from updateDeltaShape's json tags is
// ignored by json.Unmarshal rather than rejected, matching §4.1 `update`'s
// "fields not present are untouched" semantics (unknown keys are simply
// inert, not an error).
func validateUpdateDelta(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	var shape updateDeltaShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return fmt.Errorf("%w: %w", rooterr.ErrProtocol, err)
	}
	if verr := validation.ValidateStruct(&shape); verr != nil {
		return fmt.Errorf("%w: %s", rooterr.ErrProtocol, verr.Error())
	}
	return nil
}
