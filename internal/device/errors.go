package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrUnknownGroup) {
//	    // handle not found case
//	}
var (
	// ErrUnknownGroup is returned when a group name is not configured.
	ErrUnknownGroup = errors.New("device: unknown group")

	// ErrUnknownDevice is returned when a device name matches no configured
	// device in any group.
	ErrUnknownDevice = errors.New("device: unknown device")

	// ErrInvalidFile is returned when the devices file is not a mapping of
	// groups to device mappings.
	ErrInvalidFile = errors.New("device: invalid devices file")

	// ErrInvalidName is returned when a group or device name is empty or
	// cannot appear in a URL path segment.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidAddress is returned when a device address is not a hardware
	// address.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrDuplicateAddress is returned when two devices share an address.
	ErrDuplicateAddress = errors.New("device: duplicate address")

	// ErrDuplicateName is returned when a group or a device within a group
	// is declared twice.
	ErrDuplicateName = errors.New("device: duplicate name")
)
