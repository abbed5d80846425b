package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/am43-core/internal/am43"
)

// Default link timings.
const (
	// DefaultConnectAttempts is the number of connection attempts per drive.
	DefaultConnectAttempts = 10

	// DefaultConnectDelay is the pause between connection attempts.
	DefaultConnectDelay = 2 * time.Second

	// DefaultNotifyTimeout bounds the wait for a notification after a
	// report request.
	DefaultNotifyTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds a single characteristic write.
	DefaultWriteTimeout = 5 * time.Second
)

// Options configures a Dialer.
type Options struct {
	// ConnectAttempts is the total number of connection attempts.
	// Default: 10.
	ConnectAttempts int

	// ConnectDelay is the fixed pause between attempts.
	// Default: 2 seconds.
	ConnectDelay time.Duration

	// NotifyTimeout bounds the wait for a notification.
	// Default: 10 seconds.
	NotifyTimeout time.Duration

	// WriteTimeout bounds a single write.
	// Default: 5 seconds.
	WriteTimeout time.Duration
}

// DefaultOptions returns the standard link timings.
func DefaultOptions() Options {
	return Options{
		ConnectAttempts: DefaultConnectAttempts,
		ConnectDelay:    DefaultConnectDelay,
		NotifyTimeout:   DefaultNotifyTimeout,
		WriteTimeout:    DefaultWriteTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = d.ConnectAttempts
	}
	if o.ConnectDelay < 0 {
		o.ConnectDelay = d.ConnectDelay
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = d.NotifyTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	return o
}

// Stats holds operational statistics for a Dialer and the links it opened.
type Stats struct {
	ConnectsTotal   uint64
	ConnectFailures uint64 // Drives unreachable after every attempt
	AttemptsTotal   uint64
	FramesTx        uint64
	WritesRejected  uint64 // Writes without a write acknowledgment
	NotificationsRx uint64
	NotifyTimeouts  uint64
	OpenLinks       int64
	LastActivity    time.Time
}

// Dialer opens links to drives over a Transport.
type Dialer struct {
	transport Transport
	opts      Options

	logger   Logger
	loggerMu sync.RWMutex

	connectsTotal   atomic.Uint64
	connectFailures atomic.Uint64
	attemptsTotal   atomic.Uint64
	framesTx        atomic.Uint64
	writesRejected  atomic.Uint64
	notificationsRx atomic.Uint64
	notifyTimeouts  atomic.Uint64
	openLinks       atomic.Int64
	lastActivity    atomic.Int64
}

// NewDialer creates a Dialer over transport. Zero option fields take the
// defaults.
func NewDialer(transport Transport, opts Options) *Dialer {
	return &Dialer{
		transport: transport,
		opts:      opts.withDefaults(),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the dialer and its links.
func (d *Dialer) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	defer d.loggerMu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

func (d *Dialer) log() Logger {
	d.loggerMu.RLock()
	defer d.loggerMu.RUnlock()
	return d.logger
}

// Transport returns the underlying transport.
func (d *Dialer) Transport() Transport {
	return d.transport
}

// Options returns the effective options.
func (d *Dialer) Options() Options {
	return d.opts
}

// Stats returns current operational statistics.
func (d *Dialer) Stats() Stats {
	var last time.Time
	if ts := d.lastActivity.Load(); ts > 0 {
		last = time.Unix(ts, 0)
	}
	return Stats{
		ConnectsTotal:   d.connectsTotal.Load(),
		ConnectFailures: d.connectFailures.Load(),
		AttemptsTotal:   d.attemptsTotal.Load(),
		FramesTx:        d.framesTx.Load(),
		WritesRejected:  d.writesRejected.Load(),
		NotificationsRx: d.notificationsRx.Load(),
		NotifyTimeouts:  d.notifyTimeouts.Load(),
		OpenLinks:       d.openLinks.Load(),
		LastActivity:    last,
	}
}

func (d *Dialer) touch() {
	d.lastActivity.Store(time.Now().Unix())
}

// Connect opens a link to addr, retrying up to ConnectAttempts times with
// ConnectDelay between attempts.
//
// Parameters:
//   - ctx: Cancels pending attempts
//   - addr: Drive address
//
// Returns:
//   - *Link: Open link, to be closed by the caller
//   - error: ErrConnectionFailed wrapping the retry result's error
func (d *Dialer) Connect(ctx context.Context, addr Address) (*Link, error) {
	var conn Conn
	policy := RetryPolicy{Attempts: d.opts.ConnectAttempts, Delay: d.opts.ConnectDelay}

	result := Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		d.attemptsTotal.Add(1)
		c, err := d.transport.Connect(ctx, addr)
		if err != nil {
			d.log().Warn("connect attempt failed",
				"address", addr,
				"attempt", attempt,
				"of", policy.Attempts,
				"error", err,
			)
			return err
		}
		conn = c
		return nil
	})

	if !result.OK() {
		d.connectFailures.Add(1)
		d.log().Error("unable to connect to drive",
			"address", addr,
			"attempts", result.Attempts,
			"outcome", result.Outcome.String(),
			"error", result.Err,
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, addr, result.Err)
	}

	d.connectsTotal.Add(1)
	d.openLinks.Add(1)
	d.touch()
	d.log().Debug("connected to drive", "address", addr, "attempts", result.Attempts)

	return &Link{dialer: d, conn: conn, addr: addr}, nil
}

// WithLink connects to addr, runs fn and closes the link on every exit path.
// A connection failure is returned without calling fn.
// A disconnect failure is logged and does not change the returned error.
func (d *Dialer) WithLink(ctx context.Context, addr Address, fn func(*Link) error) error {
	l, err := d.Connect(ctx, addr)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := l.Close(); cerr != nil {
			d.log().Warn("disconnect failed", "address", addr, "error", cerr)
		}
	}()
	return fn(l)
}

// Link is an open session with one drive.
type Link struct {
	dialer *Dialer
	conn   Conn
	addr   Address

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// Address returns the drive address.
func (l *Link) Address() Address {
	return l.addr
}

// SupportsRead reports whether the control characteristic can be read.
func (l *Link) SupportsRead() bool {
	if rs, ok := l.conn.(ReadSupporter); ok {
		return rs.SupportsRead()
	}
	return true
}

// SendCommand writes cmd to the drive.
//
// The command succeeds only when the transport reports a write
// acknowledgment. When acc is non-nil and the write succeeded, SendCommand
// waits up to the notify timeout for the drive's next notification and
// merges it into acc. A missing notification is not an error.
//
// Notifications already queued before the write are merged into acc first.
//
// Parameters:
//   - ctx: Bounds the write and the notification wait
//   - cmd: Command to send
//   - acc: Status accumulator, or nil to skip the notification wait
//
// Returns:
//   - bool: True when the write was acknowledged
//   - error: ErrProtocol, ErrWriteFailed, ErrWriteNotAcknowledged or ErrClosed
func (l *Link) SendCommand(ctx context.Context, cmd am43.Command, acc *am43.Accumulator) (bool, error) {
	if l.closed.Load() {
		return false, ErrClosed
	}

	frame, err := cmd.Encode()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	if acc != nil {
		l.drain(acc)
	}

	opts := l.dialer.opts
	writeCtx, cancel := context.WithTimeout(ctx, opts.WriteTimeout)
	ack, err := l.conn.Write(writeCtx, frame)
	cancel()
	l.dialer.touch()
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrWriteFailed, l.addr, err)
	}
	l.dialer.framesTx.Add(1)

	l.dialer.log().Debug("frame written",
		"address", l.addr,
		"frame", am43.Hex(frame),
		"ack", string(ack),
	)

	if ack != AckWrite {
		l.dialer.writesRejected.Add(1)
		return false, fmt.Errorf("%w: %s: ack %q", ErrWriteNotAcknowledged, l.addr, ack)
	}

	if acc != nil {
		l.await(ctx, opts.NotifyTimeout, acc)
	}
	return true, nil
}

// await blocks until one notification arrives, the timeout elapses or ctx
// ends.
func (l *Link) await(ctx context.Context, timeout time.Duration, acc *am43.Accumulator) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame, ok := <-l.conn.Notifications():
		if ok {
			l.consume(frame, acc)
		}
	case <-timer.C:
		l.dialer.notifyTimeouts.Add(1)
		l.dialer.log().Debug("no notification before timeout", "address", l.addr, "timeout", timeout)
	case <-ctx.Done():
	}
}

// drain merges notifications already queued on the connection.
func (l *Link) drain(acc *am43.Accumulator) {
	for {
		select {
		case frame, ok := <-l.conn.Notifications():
			if !ok {
				return
			}
			l.consume(frame, acc)
		default:
			return
		}
	}
}

func (l *Link) consume(frame []byte, acc *am43.Accumulator) {
	l.dialer.notificationsRx.Add(1)
	n, err := acc.Consume(frame)
	if err != nil {
		l.dialer.log().Warn("discarding notification",
			"address", l.addr,
			"frame", am43.Hex(frame),
			"error", err,
		)
		return
	}
	l.dialer.log().Debug("notification received", "address", l.addr, "notification", n.String())
}

// Close disconnects from the drive. Safe to call more than once; only the
// first call reaches the transport.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.closeErr = l.conn.Close()
		l.dialer.openLinks.Add(-1)
		l.dialer.log().Debug("disconnected from drive", "address", l.addr)
	})
	if l.closeErr != nil && !errors.Is(l.closeErr, ErrClosed) {
		return l.closeErr
	}
	return nil
}
