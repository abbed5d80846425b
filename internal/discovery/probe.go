package discovery

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/am43-core/internal/link"
)

// Default probe timings.
const (
	DefaultAttempts    = 2
	DefaultDelay       = 2 * time.Second
	DefaultScanTimeout = 10 * time.Second
)

// errMissing marks an attempt that completed but did not see every drive.
var errMissing = errors.New("discovery: drives missing from scan")

// Scanner lists the drives currently advertising.
// Every link.Transport satisfies this interface.
type Scanner interface {
	Scan(ctx context.Context, timeout time.Duration) ([]link.Address, error)
}

// Restarter resets the radio stack between attempts when drives are missing.
type Restarter func(ctx context.Context) error

// Logger defines the logging interface used by the Probe.
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

// Options configures a Probe.
type Options struct {
	// Attempts is the number of scans. Default: 2.
	Attempts int

	// Delay is the pause between scans. Default: 2 seconds.
	Delay time.Duration

	// ScanTimeout bounds one scan. Default: 10 seconds.
	ScanTimeout time.Duration

	// Restart is called after a scan that missed drives, before the next
	// attempt. nil skips it.
	Restart Restarter
}

// Report is the advisory result of a probe.
type Report struct {
	Found     []link.Address `json:"found"`
	Missing   []link.Address `json:"missing"`
	Attempts  int            `json:"attempts"`
	Complete  bool           `json:"complete"`
	Error     string         `json:"error,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
}

// Probe scans for configured drives before a dispatch.
//
// A probe never fails a dispatch: missing drives and scan errors are logged
// and reported, and the caller proceeds regardless.
type Probe struct {
	scanner Scanner
	opts    Options
	logger  Logger

	mu   sync.Mutex
	last Report
}

// NewProbe creates a probe over scanner. Zero option fields take the
// defaults.
func NewProbe(scanner Scanner, opts Options, logger Logger) *Probe {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay < 0 {
		opts.Delay = DefaultDelay
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Probe{scanner: scanner, opts: opts, logger: logger}
}

// Run scans until every expected drive is seen or the attempts are used up.
//
// Parameters:
//   - ctx: Cancels pending scans
//   - expected: Addresses of the configured drives
//
// Returns:
//   - Report: Found and missing drives from the last completed scan
func (p *Probe) Run(ctx context.Context, expected []link.Address) Report {
	var report Report
	policy := link.RetryPolicy{Attempts: p.opts.Attempts, Delay: p.opts.Delay}

	p.logger.Info("scanning for drives", "expected", len(expected))

	result := link.Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		seen, err := p.scanner.Scan(ctx, p.opts.ScanTimeout)
		if err != nil {
			p.logger.Warn("scan failed", "attempt", attempt, "error", err)
			return fmt.Errorf("scan: %w", err)
		}

		report.Found, report.Missing = partition(expected, seen)
		for _, addr := range report.Found {
			p.logger.Debug("drive found", "address", addr)
		}
		if len(report.Missing) == 0 {
			return nil
		}

		for _, addr := range report.Missing {
			p.logger.Warn("drive not found on scan", "address", addr, "attempt", attempt)
		}
		if attempt < policy.Attempts && p.opts.Restart != nil {
			p.logger.Info("restarting radio stack before next scan")
			if rerr := p.opts.Restart(ctx); rerr != nil {
				p.logger.Error("radio restart failed", "error", rerr)
			}
		}
		return fmt.Errorf("%w: %d of %d", errMissing, len(report.Missing), len(expected))
	})

	report.Attempts = result.Attempts
	report.Complete = result.OK()
	report.CheckedAt = time.Now().UTC()
	if result.Err != nil {
		report.Error = result.Err.Error()
	}
	if report.Found == nil && report.Missing == nil {
		// No scan completed.
		report.Missing = slices.Clone(expected)
	}

	if report.Complete {
		p.logger.Info("every configured drive found", "drives", len(report.Found))
	} else {
		p.logger.Warn("not every configured drive found, continuing anyway",
			"found", len(report.Found),
			"missing", len(report.Missing),
			"error", result.Err,
		)
	}

	p.mu.Lock()
	p.last = report
	p.mu.Unlock()
	return report
}

// Last returns the most recent report.
func (p *Probe) Last() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// partition splits expected into addresses present in seen and the rest,
// preserving order.
func partition(expected, seen []link.Address) (found, missing []link.Address) {
	found = []link.Address{}
	missing = []link.Address{}
	for _, addr := range expected {
		if slices.Contains(seen, addr) {
			found = append(found, addr)
		} else {
			missing = append(missing, addr)
		}
	}
	return found, missing
}

// CommandRestarter returns a Restarter running argv, for example
// ["systemctl", "restart", "bluetooth"]. An empty argv returns nil.
func CommandRestarter(argv []string) Restarter {
	if len(argv) == 0 {
		return nil
	}
	argv = slices.Clone(argv)
	return func(ctx context.Context) error {
		out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput() //nolint:gosec // argv comes from the operator's config
		if err != nil {
			return fmt.Errorf("running %s: %w (output: %s)", argv[0], err, out)
		}
		return nil
	}
}
