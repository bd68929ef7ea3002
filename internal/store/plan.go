// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/rootd/internal/rooterr"
)

// sx-plan is the text format of if/invocation.txt: three newline-delimited
// sections, each introduced by a literal tag line, holding the environment
// delta, the executable path, and the argument vector in that order.
const (
	tagEnv  = "@env"
	tagExe  = "@exe"
	tagArgv = "@argv"
)

// ErrMalformedPlan is wrapped into rooterr.ErrConfig when if/invocation.txt
// does not parse as a well-formed sx-plan.
var ErrMalformedPlan = errors.New("malformed invocation plan")

// ParsePlan decodes the sx-plan text format produced by SerializePlan.
// An empty input yields a zero-value Plan (no executable, no argv, no env),
// matching the original's "data is falsy" short-circuit.
func ParsePlan(data string) (Plan, error) {
	if strings.TrimSpace(data) == "" {
		return Plan{}, nil
	}

	lines := strings.Split(data, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var plan Plan
	section := ""
	sawExe := false

	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		switch line {
		case tagEnv, tagExe, tagArgv:
			section = line
			continue
		}

		switch section {
		case tagEnv:
			pair, err := parseEnvLine(line)
			if err != nil {
				return Plan{}, fmt.Errorf("%w: %w: line %d: %w", rooterr.ErrConfig, ErrMalformedPlan, i+1, err)
			}
			plan.Env = append(plan.Env, pair)
		case tagExe:
			if sawExe {
				return Plan{}, fmt.Errorf("%w: %w: line %d: duplicate executable line", rooterr.ErrConfig, ErrMalformedPlan, i+1)
			}
			sawExe = true
			if line != "" {
				exe := line
				plan.Executable = &exe
			}
		case tagArgv:
			plan.Argv = append(plan.Argv, line)
		default:
			return Plan{}, fmt.Errorf("%w: %w: line %d: data outside of a section", rooterr.ErrConfig, ErrMalformedPlan, i+1)
		}
	}

	return plan, nil
}

// parseEnvLine decodes one @env line. "NAME=value" sets NAME to value
// (possibly empty); a bare "-NAME" (no '=') records an explicit unset.
func parseEnvLine(line string) (EnvPair, error) {
	if line == "" {
		return EnvPair{}, fmt.Errorf("empty environment line")
	}
	if strings.HasPrefix(line, "-") {
		name := line[1:]
		if name == "" {
			return EnvPair{}, fmt.Errorf("empty environment variable name")
		}
		return EnvPair{Name: name, Value: nil}, nil
	}
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return EnvPair{}, fmt.Errorf("environment line missing '=': %q", line)
	}
	name := line[:idx]
	if name == "" {
		return EnvPair{}, fmt.Errorf("empty environment variable name")
	}
	value := line[idx+1:]
	return EnvPair{Name: name, Value: &value}, nil
}

// SerializePlan encodes a Plan to the sx-plan text format. The output is
// always newline-terminated and deterministic: re-parsing it yields a Plan
// field-by-field equal to the input, and re-serializing the parse result
// reproduces the same bytes (the round-trip law of spec.md §8 property 1).
func SerializePlan(plan Plan) string {
	var b strings.Builder

	b.WriteString(tagEnv)
	b.WriteByte('\n')
	for _, e := range plan.Env {
		if e.Value == nil {
			b.WriteByte('-')
			b.WriteString(e.Name)
		} else {
			b.WriteString(e.Name)
			b.WriteByte('=')
			b.WriteString(*e.Value)
		}
		b.WriteByte('\n')
	}

	b.WriteString(tagExe)
	b.WriteByte('\n')
	if plan.Executable != nil {
		b.WriteString(*plan.Executable)
		b.WriteByte('\n')
	}

	b.WriteString(tagArgv)
	b.WriteByte('\n')
	for _, a := range plan.Argv {
		b.WriteString(a)
		b.WriteByte('\n')
	}

	return b.String()
}
