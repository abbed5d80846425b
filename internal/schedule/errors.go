package schedule

import "errors"

var (
	// ErrInvalidSchedule is returned for a schedule that is neither a cron
	// expression nor a positive duration.
	ErrInvalidSchedule = errors.New("schedule: invalid schedule")

	// ErrInvalidJob is returned for a job with a bad name, action or target.
	ErrInvalidJob = errors.New("schedule: invalid job")

	// ErrDuplicateJob is returned when a job name is already registered.
	ErrDuplicateJob = errors.New("schedule: duplicate job")

	// ErrUnknownJob is returned by RunNow for an unregistered name.
	ErrUnknownJob = errors.New("schedule: unknown job")
)
