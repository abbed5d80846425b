package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/am43-core/internal/dispatch"
	"github.com/nerrad567/am43-core/internal/infrastructure/config"
)

// Job is a dispatch request run on a schedule.
type Job struct {
	Name     string
	Schedule string
	Request  dispatch.Request
}

// JobFromConfig builds a job from a schedules entry of the config file.
//
// Returns:
//   - Job: With Request.Source set to "schedule:<name>"
//   - error: ErrInvalidJob or ErrInvalidSchedule describing the problem
func JobFromConfig(cfg config.ScheduleConfig) (Job, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return Job{}, fmt.Errorf("%w: name is required", ErrInvalidJob)
	}

	action, err := dispatch.ParseAction(cfg.Action)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %s: %w", ErrInvalidJob, name, err)
	}

	target := dispatch.Target{Kind: dispatch.TargetKind(strings.ToLower(cfg.Target.Kind)), Name: cfg.Target.Name}
	if target.Kind == "" {
		target.Kind = dispatch.TargetAll
	}
	if err := target.Validate(); err != nil {
		return Job{}, fmt.Errorf("%w: %s: %w", ErrInvalidJob, name, err)
	}

	if _, err := ParseSchedule(cfg.Cron); err != nil {
		return Job{}, fmt.Errorf("%s: %w", name, err)
	}

	return Job{
		Name:     name,
		Schedule: cfg.Cron,
		Request: dispatch.Request{
			Action: action,
			Target: target,
			Source: "schedule:" + name,
		},
	}, nil
}

// ParseSchedule parses a cron expression or descriptor, falling back to a
// positive Go duration for fixed intervals.
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSchedule)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(spec); err == nil {
		return sched, nil
	}

	d, err := time.ParseDuration(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a cron expression or duration", ErrInvalidSchedule, spec)
	}
	if d <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive: %q", ErrInvalidSchedule, spec)
	}
	return interval(d), nil
}

// interval fires every d. Unlike cron.Every it keeps sub-second precision.
type interval time.Duration

func (i interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}
