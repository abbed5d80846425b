package dispatch

import (
	"errors"

	"github.com/nerrad567/am43-core/internal/device"
)

// Domain errors for the dispatch package.
//
// Request validation errors are rejected before any drive is contacted.
// Use IsValidation to classify them, including the registry's unknown
// group and device errors:
//
//	if dispatch.IsValidation(err) {
//	    // reject the request
//	}
var (
	// ErrInvalidAction is returned for an unrecognised action token or an
	// out-of-range position.
	ErrInvalidAction = errors.New("dispatch: invalid action")

	// ErrMethodMismatch is returned when the request method does not match
	// the action (getStatus requires PUT, every other action GET).
	ErrMethodMismatch = errors.New("dispatch: method not allowed for action")

	// ErrInvalidTarget is returned for an unknown target kind or a missing
	// target name.
	ErrInvalidTarget = errors.New("dispatch: invalid target")

	// ErrReadNotSupported is recorded when a drive's control characteristic
	// cannot be read, so no status can be collected.
	ErrReadNotSupported = errors.New("dispatch: characteristic does not support reads")

	// ErrCancelled is recorded for drives skipped because the dispatch was
	// cancelled.
	ErrCancelled = errors.New("dispatch: cancelled")
)

// IsValidation reports whether err rejects a request before dispatch.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrMethodMismatch) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, device.ErrUnknownGroup) ||
		errors.Is(err, device.ErrUnknownDevice)
}
