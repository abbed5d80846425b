package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/am43-core/internal/dispatch"
)

// DefaultJobTimeout bounds a single scheduled dispatch.
const DefaultJobTimeout = 10 * time.Minute

// Executor runs dispatch requests.
// *dispatch.Dispatcher satisfies this interface.
type Executor interface {
	Execute(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

// Logger defines the logging interface used by the Scheduler.
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

// Ensure the dispatcher can back a Scheduler.
var _ Executor = (*dispatch.Dispatcher)(nil)

// Entry describes a registered job.
type Entry struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Action   string    `json:"action"`
	Target   string    `json:"target"`
	Next     time.Time `json:"next"`
	LastRun  time.Time `json:"last_run"`
	LastOK   bool      `json:"last_ok"`
}

type job struct {
	Job
	id      cron.EntryID
	lastRun time.Time
	lastOK  bool
}

// Scheduler runs jobs through an Executor.
//
// Thread Safety: all methods are safe for concurrent use.
type Scheduler struct {
	cron     *cron.Cron
	executor Executor
	logger   Logger
	timeout  time.Duration

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewScheduler creates a scheduler. Jobs added before Start begin firing
// once Start is called.
//
// Parameters:
//   - executor: Runs each job's request (usually *dispatch.Dispatcher)
//   - logger: Logger instance (nil for none)
func NewScheduler(executor Executor, logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		cron:     cron.New(),
		executor: executor,
		logger:   logger,
		timeout:  DefaultJobTimeout,
		jobs:     make(map[string]*job),
	}
}

// SetJobTimeout bounds each scheduled dispatch. Non-positive values are
// ignored.
func (s *Scheduler) SetJobTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// Add registers j.
//
// Returns:
//   - error: ErrInvalidSchedule, ErrInvalidJob or ErrDuplicateJob
func (s *Scheduler) Add(j Job) error {
	if j.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidJob)
	}
	if j.Request.Action.IsZero() {
		return fmt.Errorf("%w: %s: %w", ErrInvalidJob, j.Name, dispatch.ErrInvalidAction)
	}
	sched, err := ParseSchedule(j.Schedule)
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, j.Name)
	}

	entry := &job{Job: j}
	entry.id = s.cron.Schedule(sched, cron.FuncJob(func() {
		s.fire(entry)
	}))
	s.jobs[j.Name] = entry
	s.order = append(s.order, j.Name)

	s.logger.Info("schedule added",
		"name", j.Name,
		"schedule", j.Schedule,
		"action", j.Request.Action.String(),
		"target", j.Request.Target.String(),
	)
	return nil
}

// Start begins firing jobs. ctx bounds every job run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow runs the named job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*dispatch.Result, error) {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, entry)
}

// Entries lists registered jobs in the order they were added.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		j := s.jobs[name]
		out = append(out, Entry{
			Name:     j.Name,
			Schedule: j.Schedule,
			Action:   j.Request.Action.String(),
			Target:   j.Request.Target.String(),
			Next:     s.cron.Entry(j.id).Next,
			LastRun:  j.lastRun,
			LastOK:   j.lastOK,
		})
	}
	return out
}

// fire runs a job from the cron goroutine.
func (s *Scheduler) fire(entry *job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		s.logger.Debug("scheduler stopped, skipping job", "name", entry.Name)
		return
	}
	//nolint:errcheck // failures are logged by run
	s.run(ctx, entry)
}

func (s *Scheduler) run(ctx context.Context, entry *job) (*dispatch.Result, error) {
	s.mu.Lock()
	timeout := s.timeout
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := s.executor.Execute(runCtx, entry.Request)

	ok := err == nil && res.Succeeded()
	s.mu.Lock()
	entry.lastRun = start
	entry.lastOK = ok
	s.mu.Unlock()

	switch {
	case err != nil:
		s.logger.Error("scheduled dispatch rejected", "name", entry.Name, "error", err)
		return nil, fmt.Errorf("running %s: %w", entry.Name, err)
	case !ok:
		s.logger.Warn("scheduled dispatch failed",
			"name", entry.Name,
			"dispatch_id", res.ID,
			"failed", res.Failed(),
			"duration", time.Since(start),
		)
	default:
		s.logger.Info("scheduled dispatch completed",
			"name", entry.Name,
			"dispatch_id", res.ID,
			"duration", time.Since(start),
		)
	}
	return res, nil
}
