package link

import "errors"

// Domain errors for the link package.
var (
	// ErrConnectionFailed is returned when a drive could not be reached
	// after every connection attempt.
	ErrConnectionFailed = errors.New("link: connection failed")

	// ErrRetryExhausted is carried by a RetryResult whose attempts all failed.
	ErrRetryExhausted = errors.New("link: retry attempts exhausted")

	// ErrWriteFailed is returned when the transport could not write a frame.
	ErrWriteFailed = errors.New("link: write failed")

	// ErrWriteNotAcknowledged is returned when a write completed but the
	// acknowledgment was not a write response.
	ErrWriteNotAcknowledged = errors.New("link: write not acknowledged")

	// ErrProtocol is returned when a command cannot be framed.
	ErrProtocol = errors.New("link: protocol error")

	// ErrClosed is returned when using a link after Close.
	ErrClosed = errors.New("link: closed")

	// ErrInvalidAddress is returned when an address string is not a
	// hardware address.
	ErrInvalidAddress = errors.New("link: invalid address")

	// ErrDeviceNotFound is returned by transports that know no peripheral
	// with the requested address.
	ErrDeviceNotFound = errors.New("link: device not found")

	// ErrDeviceBusy is returned when a peripheral already has an open
	// connection.
	ErrDeviceBusy = errors.New("link: device busy")

	// ErrGatewayTimeout is returned when the BLE gateway does not answer a
	// request in time.
	ErrGatewayTimeout = errors.New("link: gateway timeout")

	// ErrGatewayRejected is returned when the BLE gateway answers a request
	// with an error.
	ErrGatewayRejected = errors.New("link: gateway rejected request")

	// ErrNotStarted is returned when a transport is used before Start.
	ErrNotStarted = errors.New("link: transport not started")
)
