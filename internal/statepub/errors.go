package statepub

import "errors"

var (
	// ErrNotConnected is returned when the broker connection is down.
	ErrNotConnected = errors.New("statepub: mqtt not connected")

	// ErrPublishFailed is returned when one or more messages could not be
	// published.
	ErrPublishFailed = errors.New("statepub: publish failed")
)
