// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package machine implements the Service Machine: the per-service state
// machine that owns one child process, invokes it, observes its exit, and
// applies the restart/backoff policy of spec.md §4.2.
package machine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/rootd/internal/critlog"
	"github.com/tomtom215/rootd/internal/logging"
	"github.com/tomtom215/rootd/internal/metrics"
	"github.com/tomtom215/rootd/internal/rooterr"
	"github.com/tomtom215/rootd/internal/store"
)

// Status is one of the Service Machine's five states.
type Status string

const (
	Terminated Status = "terminated"
	Executed   Status = "executed"
	Waiting    Status = "waiting"
	Exits      Status = "exits"
	Exception  Status = "exception"
)

// Inhibit is the tri-state auto-restart control of spec.md §4.2/§9.
type Inhibit int

const (
	// Normal means restart iff the service's actuation is enabled.
	Normal Inhibit = iota
	// InhibitOnce permits exactly one explicit restart even while
	// disabled, then reverts to Normal.
	InhibitOnce
	// Permanent means never restart regardless of actuation.
	Permanent
)

// Policy constants from spec.md §4.2.
const (
	MinimumRuntime  = 16 * time.Second
	RetryWait       = 2 * time.Second
	MaximumAttempts = 8
)

// errShortLivedExit is fed into the circuit breaker to count a failed
// attempt; it never escapes the package.
var errShortLivedExit = errors.New("service exited before minimum runtime")

// ExitEvent records one observed child termination.
type ExitEvent struct {
	Time   time.Time
	Status string
}

// Clock abstracts time.Now so tests can control wasRunning/good-run
// behavior deterministically (spec.md §9: "use a monotonic clock").
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Snapshot is the lock-free-readable projection of a Machine's state,
// refreshed after every mutation so Control HTTP GETs never block behind
// the machine's serialized command channel.
type Snapshot struct {
	Status     Status
	PID        int
	ExitEvents int
	Inhibit    Inhibit
}

// Machine supervises one service's child process. All mutation of its
// status, exit-event buffer, and inhibit flag happens on the single
// goroutine running Serve, which is the Go rendering of spec.md §5's
// serialization requirement: a single reader on a channel needs no mutex.
type Machine struct {
	id    string
	store *store.Store
	log   *critlog.Logger
	clock Clock

	cmds   chan func()
	closed chan struct{}

	mu   sync.RWMutex
	snap Snapshot

	// Fields below are touched only from the Serve goroutine.
	status      Status
	process     *exec.Cmd
	pid         int
	lastInvoke  time.Time
	exitEvents  []ExitEvent
	inhibit     Inhibit
	terminating bool
	breaker     *gobreaker.CircuitBreaker[struct{}]
}

// New constructs a Machine for the service backed by svcStore. log may be
// shared across every machine in a Supervisor Set (it is stateless besides
// a write-serializing mutex).
func New(svcStore *store.Store, log *critlog.Logger) *Machine {
	m := &Machine{
		id:     svcStore.ID(),
		store:  svcStore,
		log:    log,
		clock:  realClock{},
		cmds:   make(chan func()),
		closed: make(chan struct{}),
		status: Terminated,
	}
	m.breaker = newBreaker(m.id)
	m.publishSnapshot()
	return m
}

// WithClock overrides the machine's time source; intended for tests.
func (m *Machine) WithClock(c Clock) *Machine {
	m.clock = c
	return m
}

func newBreaker(id string) *gobreaker.CircuitBreaker[struct{}] {
	name := "service:" + id
	metrics.ServiceBreakerState.WithLabelValues(id).Set(0)
	metrics.ServiceConsecutiveFailures.WithLabelValues(id).Set(0)

	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		// Timeout is set far in the future so the breaker never
		// auto-probes back to half-open; reaching StateOpen is exactly
		// the `exits` state, left for an explicit admin command.
		Timeout: 365 * 24 * time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= MaximumAttempts
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.WithComponent("machine").Info().
				Str("service", id).Str("from", from.String()).Str("to", to.String()).
				Msg("restart budget state transition")
			metrics.ServiceBreakerState.WithLabelValues(id).Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// ID returns the service identifier this machine supervises.
func (m *Machine) ID() string { return m.id }

// String satisfies fmt.Stringer so suture logs a readable service name.
func (m *Machine) String() string { return "machine:" + m.id }

// Snapshot returns a point-in-time, lock-free-readable view of the
// machine's state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

func (m *Machine) publishSnapshot() {
	pid := 0
	if m.process != nil {
		pid = m.pid
	}
	snap := Snapshot{Status: m.status, PID: pid, ExitEvents: len(m.exitEvents), Inhibit: m.inhibit}
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
	metrics.SetServiceState(m.id, string(m.status))
	metrics.ServiceConsecutiveFailures.WithLabelValues(m.id).Set(float64(m.breaker.Counts().ConsecutiveFailures))
}

// Serve runs the machine's command loop until ctx is canceled, satisfying
// suture.Service. On cancellation it signals the child (if any) to
// terminate and blocks until the child has been reaped before returning,
// matching spec.md §5's shutdown ordering.
func (m *Machine) Serve(ctx context.Context) error {
	defer close(m.closed)
	for {
		select {
		case <-ctx.Done():
			m.terminating = true
			if m.process != nil {
				m.sendSignal(syscall.SIGTERM)
				m.exitEvents = nil
			} else {
				m.status = Terminated
			}
			m.publishSnapshot()
			return m.drainUntilReaped()
		case fn := <-m.cmds:
			fn()
		}
	}
}

func (m *Machine) drainUntilReaped() error {
	for m.process != nil {
		fn := <-m.cmds
		fn()
	}
	return nil
}

// submit enqueues fn onto the machine's serialized command loop and waits
// for it to run, returning its result. It is the boundary every exported,
// externally-triggered operation crosses to get onto the single goroutine
// that owns this machine's mutable state.
func (m *Machine) submit(fn func() (string, error)) (string, error) {
	type result struct {
		s string
		e error
	}
	resp := make(chan result, 1)
	wrapped := func() {
		s, e := fn()
		resp <- result{s, e}
	}

	select {
	case m.cmds <- wrapped:
	case <-m.closed:
		return "", fmt.Errorf("%w: service %q is no longer running", rooterr.ErrConflict, m.id)
	}

	select {
	case r := <-resp:
		return r.s, r.e
	case <-m.closed:
		return "", fmt.Errorf("%w: service %q terminated mid-command", rooterr.ErrConflict, m.id)
	}
}

// Invoke forks/execs the child per the currently stored invocation plan.
// It is a no-op (returns false, nil) if the machine is already executed.
func (m *Machine) Invoke(ctx context.Context) (bool, error) {
	ok := false
	_, err := m.submit(func() (string, error) {
		var invokeErr error
		ok, invokeErr = m.invokeLocked(ctx)
		return "", invokeErr
	})
	return ok, err
}

func (m *Machine) invokeLocked(ctx context.Context) (bool, error) {
	if m.status == Executed || m.terminating {
		return false, nil
	}

	cfg, err := m.store.Load()
	if err != nil {
		m.status = Exception
		m.publishSnapshot()
		return false, fmt.Errorf("%w: loading config for %q: %w", rooterr.ErrChildSpawn, m.id, err)
	}

	if cfg.Plan.Executable == nil || *cfg.Plan.Executable == "" {
		return false, nil
	}

	critPath := filepath.Join(cfg.Route, "critical.log")
	logFD, err := os.OpenFile(critPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		m.status = Exception
		m.publishSnapshot()
		return false, fmt.Errorf("%w: opening critical.log for %q: %w", rooterr.ErrChildSpawn, m.id, err)
	}
	defer logFD.Close()

	cmd := exec.Command(*cfg.Plan.Executable, cfg.Plan.Argv...)
	cmd.Dir = cfg.Route
	cmd.Stderr = logFD
	cmd.Stdout = os.Stdout
	cmd.Env = mergeEnvironment(cfg.Plan.Env, m.id)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		m.status = Exception
		m.publishSnapshot()
		_ = m.log.Record(ctx, cfg.Route, critlog.Event{Service: m.id, Type: critlog.EventExits, Detail: err.Error()})
		return false, fmt.Errorf("%w: starting %q: %w", rooterr.ErrChildSpawn, m.id, err)
	}

	m.status = Executed
	m.process = cmd
	m.pid = cmd.Process.Pid
	m.lastInvoke = m.clock.Now()
	m.publishSnapshot()
	_ = m.log.Record(ctx, cfg.Route, critlog.Event{
		Service: m.id, Type: critlog.EventInvoked,
		Detail: fmt.Sprintf("pid=%d exe=%s", m.pid, *cfg.Plan.Executable),
	})

	go m.waitForExit(ctx, cmd)

	return true, nil
}

// mergeEnvironment builds the child's environment: the supervisor's own
// environment, overlaid with the plan's entries (a nil Value unsets the
// name), then SERVICE_NAME=<id> (spec.md §4.2).
func mergeEnvironment(pairs []store.EnvPair, id string) []string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for _, p := range pairs {
		if p.Value == nil {
			delete(env, p.Name)
		} else {
			env[p.Name] = *p.Value
		}
	}
	env["SERVICE_NAME"] = id

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// waitForExit blocks for the child's termination and reports it back onto
// the machine's serialized command channel, per spec.md §9's reaper design.
func (m *Machine) waitForExit(ctx context.Context, cmd *exec.Cmd) {
	waitErr := cmd.Wait()
	report := func() { m.onChildExit(ctx, cmd, waitErr) }

	select {
	case m.cmds <- report:
	case <-m.closed:
	}
}

func (m *Machine) onChildExit(ctx context.Context, cmd *exec.Cmd, waitErr error) {
	if m.process == cmd {
		m.process = nil
	}

	now := m.clock.Now()
	runtime := now.Sub(m.lastInvoke)
	status := describeExit(waitErr)

	if m.status != Exception {
		m.status = Terminated
	}
	m.exitEvents = append(m.exitEvents, ExitEvent{Time: now, Status: status})
	m.publishSnapshot()
	metrics.RecordInvocation(m.id, runtime)

	route := m.store.Route()
	_ = m.log.Record(ctx, route, critlog.Event{Service: m.id, Type: critlog.EventExited, Detail: status})

	if m.terminating || m.inhibit == Permanent {
		return
	}

	cfg, err := m.store.Load()
	actuates := err == nil && bool(cfg.Actuation)

	switch {
	case actuates:
		m.again(ctx, route)
	case m.inhibit == InhibitOnce:
		m.inhibit = Normal
		m.again(ctx, route)
	}
}

func describeExit(waitErr error) string {
	if waitErr == nil {
		return "exit=0"
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return fmt.Sprintf("exit=%d", exitErr.ExitCode())
	}
	return "error=" + waitErr.Error()
}

// wasRunning implements spec.md §4.2: true iff the most recent invocation
// stayed up for at least MinimumRuntime before its last recorded exit.
func (m *Machine) wasRunning() bool {
	if len(m.exitEvents) == 0 {
		return false
	}
	last := m.exitEvents[len(m.exitEvents)-1]
	return last.Time.Sub(m.lastInvoke) >= MinimumRuntime
}

// again applies the restart/backoff policy after an observed exit
// (spec.md §4.2, §8 properties 5 and 6).
func (m *Machine) again(ctx context.Context, route string) {
	if m.wasRunning() {
		m.exitEvents = nil
		_, _ = m.breaker.Execute(func() (struct{}, error) { return struct{}{}, nil })
		_, _ = m.invokeLocked(ctx)
		return
	}

	_, err := m.breaker.Execute(func() (struct{}, error) { return struct{}{}, errShortLivedExit })
	if errors.Is(err, gobreaker.ErrOpenState) || m.breaker.State() == gobreaker.StateOpen {
		m.inhibit = Permanent
		m.status = Exits
		m.publishSnapshot()
		_ = m.log.Record(ctx, route, critlog.Event{
			Service: m.id, Type: critlog.EventExits,
			Detail: fmt.Sprintf("attempts=%d", MaximumAttempts),
		})
		return
	}

	m.status = Waiting
	m.publishSnapshot()
	m.scheduleRetry(ctx)
}

func (m *Machine) scheduleRetry(ctx context.Context) {
	time.AfterFunc(RetryWait, func() {
		fn := func() { _, _ = m.invokeLocked(ctx) }
		select {
		case m.cmds <- fn:
		case <-m.closed:
		}
	})
}

func (m *Machine) sendSignal(sig syscall.Signal) error {
	if m.process == nil {
		return fmt.Errorf("%w: %q has no running process", rooterr.ErrConflict, m.id)
	}
	if err := syscall.Kill(-m.pid, sig); err != nil {
		return fmt.Errorf("%w: signal %v to %q: %w", rooterr.ErrIO, sig, m.id, err)
	}
	return nil
}

// Terminate sends SIGTERM to the child's process group and clears the
// exit-event buffer (spec.md §4.2 `terminate`).
func (m *Machine) Terminate(ctx context.Context) (string, error) {
	return m.submit(func() (string, error) {
		if m.process == nil {
			return "terminate ineffective: not running", nil
		}
		m.exitEvents = nil
		if err := m.sendSignal(syscall.SIGTERM); err != nil {
			return "", err
		}
		return "daemon signalled to terminate", nil
	})
}

// Interrupt sends SIGINT and clears the exit-event buffer.
func (m *Machine) Interrupt(ctx context.Context) (string, error) {
	return m.submit(func() (string, error) {
		if m.status != Executed {
			return "interrupt ineffective when not running", nil
		}
		m.exitEvents = nil
		if err := m.sendSignal(syscall.SIGINT); err != nil {
			return "", err
		}
		return "daemon signalled to interrupt", nil
	})
}

// Kill sends SIGKILL and clears the exit-event buffer.
func (m *Machine) Kill(ctx context.Context) (string, error) {
	return m.submit(func() (string, error) {
		if m.status != Executed {
			return "kill ineffective when not running", nil
		}
		m.exitEvents = nil
		if err := m.sendSignal(syscall.SIGKILL); err != nil {
			return "", err
		}
		return "kill issued to service process", nil
	})
}

// Suspend sends SIGSTOP to the child's process group.
func (m *Machine) Suspend(ctx context.Context) (string, error) {
	return m.submit(func() (string, error) {
		if m.status != Executed {
			return "cannot signal service when not running", nil
		}
		if err := m.sendSignal(syscall.SIGSTOP); err != nil {
			return "", err
		}
		return "service signalled to pause", nil
	})
}

// Continue sends SIGCONT to the child's process group.
func (m *Machine) Continue(ctx context.Context) (string, error) {
	return m.submit(func() (string, error) {
		if m.status != Executed {
			return "cannot signal service when not running", nil
		}
		if err := m.sendSignal(syscall.SIGCONT); err != nil {
			return "", err
		}
		return "service signalled to continue", nil
	})
}

// Reload sends SIGHUP to the child process (not its group: spec.md §6
// lists SIGHUP as delivered to the child, the others to the group).
func (m *Machine) Reload(ctx context.Context) (string, error) {
	return m.submit(func() (string, error) {
		if m.status != Executed {
			return "reload ineffective when service is not running", nil
		}
		if m.process == nil || m.process.Process == nil {
			return "", fmt.Errorf("%w: %q has no running process", rooterr.ErrConflict, m.id)
		}
		if err := m.process.Process.Signal(syscall.SIGHUP); err != nil {
			return "", fmt.Errorf("%w: SIGHUP to %q: %w", rooterr.ErrIO, m.id, err)
		}
		return "daemon signalled to reload using SIGHUP", nil
	})
}

// Start invokes the daemon unless already running, ignoring actuation. From
// the exits state it first replaces the breaker and clears the permanent
// inhibit, so the restart budget starts afresh.
func (m *Machine) Start(ctx context.Context) (string, error) {
	return m.submit(func() (string, error) {
		if m.status == Executed {
			return "already running", nil
		}
		if m.status == Exits {
			m.breaker = newBreaker(m.id)
			m.inhibit = Normal
			m.exitEvents = nil
		}
		ok, err := m.invokeLocked(ctx)
		if err != nil {
			return "", err
		}
		if !ok {
			return "invoke ineffective", nil
		}
		return "invoked", nil
	})
}

// Stop inhibits auto-restart (per actuation) and signals SIGTERM.
func (m *Machine) Stop(ctx context.Context, actuates bool) (string, error) {
	return m.submit(func() (string, error) {
		if actuates {
			m.inhibit = Permanent
		} else {
			m.inhibit = Normal
		}
		m.publishSnapshot()
		if m.status != Executed {
			return "stop ineffective when not running", nil
		}
		if err := m.sendSignal(syscall.SIGTERM); err != nil {
			return "", err
		}
		return "daemon signalled to terminate", nil
	})
}

// Restart permits exactly one more auto-restart and signals SIGTERM.
func (m *Machine) Restart(ctx context.Context) (string, error) {
	return m.submit(func() (string, error) {
		if m.status != Executed {
			return "restart ineffective when not running", nil
		}
		m.inhibit = InhibitOnce
		m.publishSnapshot()
		if err := m.sendSignal(syscall.SIGTERM); err != nil {
			return "", err
		}
		return "daemon signalled to restart", nil
	})
}

// InterruptCommand and KillCommand additionally apply the inhibit
// adjustment the HTTP control commands specify (spec.md §4.4), distinct
// from the bare signal-only Interrupt/Kill above used by administrative
// signal-only operations.
func (m *Machine) InterruptCommand(ctx context.Context, actuates bool) (string, error) {
	return m.submit(func() (string, error) {
		if actuates {
			m.inhibit = Permanent
		} else {
			m.inhibit = Normal
		}
		m.publishSnapshot()
		if m.status != Executed {
			return "interrupt ineffective when not running", nil
		}
		if err := m.sendSignal(syscall.SIGINT); err != nil {
			return "", err
		}
		return "daemon signalled to interrupt", nil
	})
}

func (m *Machine) KillCommand(ctx context.Context, actuates bool) (string, error) {
	return m.submit(func() (string, error) {
		if actuates {
			m.inhibit = Permanent
		} else {
			m.inhibit = Normal
		}
		m.publishSnapshot()
		if m.status != Executed {
			return "kill ineffective when not running", nil
		}
		if err := m.sendSignal(syscall.SIGKILL); err != nil {
			return "", err
		}
		return "kill issued to service process", nil
	})
}

// Normalize brings the machine into agreement with actuates: invokes if
// enabled-and-not-running, stops if disabled-and-running, otherwise
// reports "ineffective" (spec.md §4.4 `normalize`).
func (m *Machine) Normalize(ctx context.Context, actuates bool) (string, error) {
	if actuates && m.Snapshot().Status != Executed {
		return m.submit(func() (string, error) {
			if m.status == Executed {
				return "ineffective", nil
			}
			m.inhibit = InhibitOnce
			ok, err := m.invokeLocked(ctx)
			if err != nil {
				return "", err
			}
			if !ok {
				return "ineffective", nil
			}
			return "invoked", nil
		})
	}
	if !actuates && m.Snapshot().Status == Executed {
		return m.Stop(ctx, actuates)
	}
	return "ineffective", nil
}

// ActuateOnBoot dispatches the initial invoke for an enabled service
// during Supervisor Set boot (spec.md §4.3 `boot`).
func (m *Machine) ActuateOnBoot(ctx context.Context) {
	_, _ = m.Invoke(ctx)
}
