// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package critlog writes the append-only critical.log kept in a service's
// directory. Unlike a buffered event sink, the file is opened, appended to,
// and closed on every call — it is never held open across the lifetime of
// the supervised process, so a service directory can be relocated or
// inspected at any time without coordinating with a live writer.
package critlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tomtom215/rootd/internal/logging"
)

// EventType categorizes a critical.log entry.
type EventType string

const (
	EventInvoked    EventType = "invoked"
	EventExited     EventType = "exited"
	EventSignaled   EventType = "signaled"
	EventRecovered  EventType = "recovered"
	EventExits      EventType = "exits"
	EventEnabled    EventType = "enabled"
	EventDisabled   EventType = "disabled"
	EventCreated    EventType = "created"
	EventVoided     EventType = "voided"
	EventControlled EventType = "controlled"
	EventBoot       EventType = "boot"
)

// Event is a single critical.log entry for one service.
type Event struct {
	Timestamp time.Time
	Service   string
	Type      EventType
	Detail    string
}

// Logger appends Events to a service's critical.log file. It holds no file
// descriptor between calls: Record opens the file, writes one line, and
// closes it before returning.
type Logger struct {
	// mu serializes concurrent writers targeting the same route so lines
	// never interleave mid-write.
	mu sync.Mutex
}

// NewLogger returns a Logger. A Logger has no per-service state; one
// instance can be shared by every machine in a Supervisor Set.
func NewLogger() *Logger {
	return &Logger{}
}

// Record appends ev to <route>/critical.log.
func (l *Logger) Record(ctx context.Context, route string, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	line := fmt.Sprintf("%s %s %s %s\n",
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		ev.Service,
		ev.Type,
		sanitize(ev.Detail),
	)

	path := filepath.Join(route, "critical.log")

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("route", route).Msg("critical.log open failed")
		return fmt.Errorf("critlog: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("critlog: write %s: %w", path, err)
	}
	return f.Close()
}

// sanitize strips newlines from detail so a single log line never spans
// more than one physical line of the file.
func sanitize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' || c == '\r' {
			out = append(out, ' ')
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return "-"
	}
	return string(out)
}
