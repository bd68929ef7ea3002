// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package control

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/rootd/internal/machine"
	"github.com/tomtom215/rootd/internal/rooterr"
	"github.com/tomtom215/rootd/internal/store"
)

// Command is one of the closed set of verbs the control plane accepts as
// the bare first key of a POST's query string (spec.md §4.4). It is a
// closed enumeration dispatched through a table, not method lookup by
// name, per spec.md §9's "polymorphic web handlers" design note.
type Command string

const (
	CmdStatus    Command = "status"
	CmdReload    Command = "reload"
	CmdNormalize Command = "normalize"
	CmdDisable   Command = "disable"
	CmdEnable    Command = "enable"
	CmdRestart   Command = "restart"
	CmdStop      Command = "stop"
	CmdStart     Command = "start"
	CmdInterrupt Command = "interrupt"
	CmdKill      Command = "kill"
	CmdSleep     Command = "sleep"
	CmdHold      Command = "hold"
	CmdRelease   Command = "release"
)

// knownCommands is the closed set; a verb that is not a key of this map is
// rejected with "UNKNOWN SERVICE OPERATION" per spec.md §4.4.
var knownCommands = map[Command]bool{
	CmdStatus: true, CmdReload: true, CmdNormalize: true, CmdDisable: true,
	CmdEnable: true, CmdRestart: true, CmdStop: true, CmdStart: true,
	CmdInterrupt: true, CmdKill: true, CmdSleep: true, CmdHold: true, CmdRelease: true,
}

// parsedQuery is the result of splitting a POST's raw query string into the
// bare command verb (the first key, value ignored) and its parameters (every
// subsequent key=value pair). net/url's Values is a map and loses key order,
// so the raw query is parsed by hand to recover "first key" per spec.md
// §4.4 ("the query-string verb, first bare key; subsequent keys are
// parameters").
type parsedQuery struct {
	command Command
	present bool
	params  map[string]string
}

func parseCommandQuery(rawQuery string) parsedQuery {
	pq := parsedQuery{params: map[string]string{}}
	if rawQuery == "" {
		return pq
	}
	for i, seg := range strings.Split(rawQuery, "&") {
		if seg == "" {
			continue
		}
		key := seg
		val := ""
		if idx := strings.IndexByte(seg, '='); idx >= 0 {
			key = seg[:idx]
			val = seg[idx+1:]
		}
		if uk, err := url.QueryUnescape(key); err == nil {
			key = uk
		}
		if uv, err := url.QueryUnescape(val); err == nil {
			val = uv
		}
		if i == 0 {
			pq.command = Command(strings.ToLower(key))
			pq.present = true
			continue
		}
		pq.params[key] = val
	}
	return pq
}

// dispatchCommand runs cmd against m, consulting the service's on-disk
// actuation where a command's semantics depend on it: stop/interrupt/kill
// set InhibitRecovery from whether the service is presently actuated, and
// normalize takes it as the target state; restart sets InhibitOnce without
// consulting it (spec.md §4.4).
func dispatchCommand(ctx context.Context, cmd Command, m *machine.Machine, svcStore *store.Store) (string, error) {
	actuates := func() bool {
		cfg, err := svcStore.Load()
		return err == nil && bool(cfg.Actuation)
	}

	switch cmd {
	case CmdStatus:
		return string(m.Snapshot().Status), nil
	case CmdReload:
		return m.Reload(ctx)
	case CmdNormalize:
		return m.Normalize(ctx, actuates())
	case CmdDisable:
		return toggleActuation(svcStore, store.Disabled)
	case CmdEnable:
		return toggleActuation(svcStore, store.Enabled)
	case CmdRestart:
		return m.Restart(ctx)
	case CmdStop:
		return m.Stop(ctx, actuates())
	case CmdStart:
		return m.Start(ctx)
	case CmdInterrupt:
		return m.InterruptCommand(ctx, actuates())
	case CmdKill:
		return m.KillCommand(ctx, actuates())
	case CmdSleep, CmdHold:
		return m.Suspend(ctx)
	case CmdRelease:
		return m.Continue(ctx)
	default:
		return "", fmt.Errorf("%w: UNKNOWN SERVICE OPERATION", rooterr.ErrProtocol)
	}
}

// toggleActuation implements enable/disable: it only rewrites actuation.txt,
// leaving the machine's running state untouched (spec.md §4.4).
func toggleActuation(svcStore *store.Store, act store.Actuation) (string, error) {
	cfg, err := svcStore.Load()
	if err != nil {
		return "", err
	}
	cfg.Actuation = act
	if err := svcStore.Store(cfg); err != nil {
		return "", err
	}
	if act == store.Enabled {
		return "service enabled", nil
	}
	return "service disabled", nil
}
