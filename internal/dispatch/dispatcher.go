package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/am43-core/internal/am43"
	"github.com/nerrad567/am43-core/internal/device"
	"github.com/nerrad567/am43-core/internal/discovery"
	"github.com/nerrad567/am43-core/internal/link"
)

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sessions opens scoped links to drives.
// *link.Dialer satisfies this interface.
type Sessions interface {
	WithLink(ctx context.Context, addr link.Address, fn func(*link.Link) error) error
}

// Prober checks that drives are visible before a dispatch.
// *discovery.Probe satisfies this interface.
type Prober interface {
	Run(ctx context.Context, expected []link.Address) discovery.Report
}

// Observer is notified once per completed dispatch.
// Observer errors are logged and never change the result.
type Observer interface {
	ObserveDispatch(ctx context.Context, res *Result) error
}

// Request is an action against a target, as received from a caller.
type Request struct {
	Action Action
	Target Target

	// Source names the caller, e.g. "api" or "schedule:<name>".
	Source string
}

// State is a step in one drive's session.
type State string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateExecuting     State = "executing"
	StateDisconnecting State = "disconnecting"
	StateDone          State = "done"
)

// Stats holds dispatcher statistics.
type Stats struct {
	Dispatches    uint64
	DevicesTotal  uint64
	DevicesFailed uint64
	LastDispatch  time.Time
}

// Dispatcher runs actions against drives.
//
// Drives are processed one at a time and dispatches are serialised: the
// radio holds a single connection. A failure on one drive is recorded in
// its outcome and processing continues with the next drive.
//
// Thread Safety: all methods are safe for concurrent use.
type Dispatcher struct {
	resolver Resolver
	sessions Sessions
	logger   Logger

	mu sync.Mutex // held for the whole of one dispatch

	hooksMu   sync.RWMutex
	prober    Prober
	observers []Observer

	dispatches    atomic.Uint64
	devicesTotal  atomic.Uint64
	devicesFailed atomic.Uint64
	lastDispatch  atomic.Int64
}

// NewDispatcher creates a dispatcher.
//
// Parameters:
//   - resolver: Expands targets into drives (usually *device.Registry)
//   - sessions: Opens links to drives (usually *link.Dialer)
//   - logger: Logger instance (nil for none)
func NewDispatcher(resolver Resolver, sessions Sessions, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		resolver: resolver,
		sessions: sessions,
		logger:   logger,
	}
}

// SetProber sets the pre-dispatch discovery check. nil disables it.
func (d *Dispatcher) SetProber(p Prober) {
	d.hooksMu.Lock()
	defer d.hooksMu.Unlock()
	d.prober = p
}

// AddObserver registers an observer for completed dispatches.
func (d *Dispatcher) AddObserver(o Observer) {
	if o == nil {
		return
	}
	d.hooksMu.Lock()
	defer d.hooksMu.Unlock()
	d.observers = append(d.observers, o)
}

// Stats returns dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	var last time.Time
	if ns := d.lastDispatch.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Dispatches:    d.dispatches.Load(),
		DevicesTotal:  d.devicesTotal.Load(),
		DevicesFailed: d.devicesFailed.Load(),
		LastDispatch:  last,
	}
}

// Execute validates and runs a request.
//
// The target is resolved before any drive is contacted; an unknown group or
// device is returned as a validation error. When a prober is set it runs
// first and its findings are advisory only.
//
// Parameters:
//   - ctx: Cancels the dispatch between drives
//   - req: Action, target and caller
//
// Returns:
//   - *Result: Per-drive outcomes in declaration order
//   - error: A validation error (see IsValidation); drive failures are
//     reported in the result, never here
func (d *Dispatcher) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Action.IsZero() {
		return nil, ErrInvalidAction
	}
	targets, err := Resolve(d.resolver, req.Target)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.hooksMu.RLock()
	prober := d.prober
	d.hooksMu.RUnlock()
	if prober != nil && len(targets) > 0 {
		addrs := make([]link.Address, len(targets))
		for i, t := range targets {
			addrs[i] = t.Address
		}
		prober.Run(ctx, addrs)
	}

	res := d.run(ctx, req.Action, targets)
	res.Target = req.Target
	res.Source = req.Source
	d.notify(ctx, res)
	return res, nil
}

// Dispatch runs action against targets, which must already be resolved.
// Every target gets exactly one outcome, in order.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, targets []device.Device) *Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := d.run(ctx, action, targets)
	res.Target = Target{Kind: TargetExplicit}
	d.notify(ctx, res)
	return res
}

func (d *Dispatcher) run(ctx context.Context, action Action, targets []device.Device) *Result {
	res := &Result{
		ID:        uuid.NewString(),
		Action:    action,
		StartedAt: time.Now().UTC(),
		Outcomes:  make([]Outcome, 0, len(targets)),
	}

	d.logger.Info("dispatch started",
		"dispatch_id", res.ID,
		"action", action.String(),
		"devices", len(targets),
	)

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			res.Outcomes = append(res.Outcomes, Outcome{
				Device: target,
				Reason: ReasonCancelled,
				Err:    errors.Join(ErrCancelled, err),
			})
			continue
		}
		res.Outcomes = append(res.Outcomes, d.session(ctx, action, target))
	}

	res.CompletedAt = time.Now().UTC()

	failed := res.Failed()
	d.dispatches.Add(1)
	d.devicesTotal.Add(uint64(len(res.Outcomes)))
	d.devicesFailed.Add(uint64(failed)) //nolint:gosec // count is non-negative
	d.lastDispatch.Store(res.CompletedAt.UnixNano())

	d.logger.Info("dispatch completed",
		"dispatch_id", res.ID,
		"action", action.String(),
		"status", res.Status(),
		"devices", len(res.Outcomes),
		"failed", failed,
		"duration", res.CompletedAt.Sub(res.StartedAt),
	)
	return res
}

// session drives one target from connect to disconnect.
func (d *Dispatcher) session(ctx context.Context, action Action, target device.Device) Outcome {
	out := Outcome{Device: target}
	start := time.Now()

	d.transition(target, StateConnecting)
	err := d.sessions.WithLink(ctx, target.Address, func(l *link.Link) error {
		d.transition(target, StateConnected)
		d.transition(target, StateExecuting)
		defer d.transition(target, StateDisconnecting)
		return d.execute(ctx, l, action, target, &out)
	})

	out.Duration = time.Since(start)
	if err != nil {
		out.Err = err
		out.Reason = reasonFor(ctx, err)
	} else {
		out.Succeeded = true
	}

	d.transition(target, StateDone, "succeeded", out.Succeeded, "reason", out.Reason)
	return out
}

// execute sends the action's frames over an open link. A failed write ends
// the session; frames after it are not sent.
func (d *Dispatcher) execute(ctx context.Context, l *link.Link, action Action, target device.Device, out *Outcome) error {
	var acc *am43.Accumulator
	if action.Kind() == KindStatus {
		if !l.SupportsRead() {
			d.logger.Warn("no reads allowed on characteristic", deviceAttrs(target)...)
			return ErrReadNotSupported
		}
		acc = am43.NewAccumulator()
		defer func() {
			out.Status = acc.Snapshot()
			acc.Reset()
		}()
	}

	for _, cmd := range action.Commands() {
		if _, err := l.SendCommand(ctx, cmd, acc); err != nil {
			d.logger.Warn("command write failed",
				append(deviceAttrs(target), "command", cmd.String(), "error", err)...,
			)
			return err
		}
		d.logger.Info("command written",
			append(deviceAttrs(target), "command", cmd.String())...,
		)
	}

	if acc != nil {
		snap := acc.Snapshot()
		attrs := append(deviceAttrs(target),
			"battery", optional(snap.Battery),
			"position", optional(snap.Position),
			"light", optional(snap.Light),
		)
		if snap.Complete() {
			d.logger.Info("status collected", attrs...)
		} else {
			d.logger.Warn("status incomplete", attrs...)
		}
	}
	return nil
}

func (d *Dispatcher) transition(target device.Device, state State, extra ...any) {
	args := append(deviceAttrs(target), "state", string(state))
	d.logger.Debug("device session", append(args, extra...)...)
}

// notify hands the result to every observer. Observers run detached from
// ctx cancellation so a cancelled dispatch is still recorded.
func (d *Dispatcher) notify(ctx context.Context, res *Result) {
	d.hooksMu.RLock()
	observers := append([]Observer(nil), d.observers...)
	d.hooksMu.RUnlock()

	octx := context.WithoutCancel(ctx)
	for _, o := range observers {
		if err := o.ObserveDispatch(octx, res); err != nil {
			d.logger.Error("dispatch observer failed", "dispatch_id", res.ID, "error", err)
		}
	}
}

func reasonFor(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return ReasonCancelled
	case errors.Is(err, ErrReadNotSupported):
		return ReasonReadNotSupported
	case errors.Is(err, link.ErrConnectionFailed):
		return ReasonConnectionFailed
	case errors.Is(err, link.ErrWriteNotAcknowledged):
		return ReasonNotAcknowledged
	case errors.Is(err, link.ErrWriteFailed), errors.Is(err, link.ErrClosed):
		return ReasonWriteFailed
	case errors.Is(err, link.ErrProtocol):
		return ReasonProtocolError
	default:
		return ReasonError
	}
}

func deviceAttrs(target device.Device) []any {
	return []any{
		"device", target.Name,
		"address", target.Address.String(),
		"group", target.Group,
	}
}

// optional renders a nil pointer as "absent" in logs.
func optional[T any](v *T) any {
	if v == nil {
		return "absent"
	}
	return *v
}

var _ Sessions = (*link.Dialer)(nil)
var _ Resolver = (*device.Registry)(nil)
