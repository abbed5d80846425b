package am43

import "errors"

// Domain errors for the AM43 protocol package.
var (
	// ErrPayloadTooLong is returned when a command payload does not fit in
	// the single length byte of a frame.
	ErrPayloadTooLong = errors.New("am43: payload too long")

	// ErrMalformedFrame is returned when a received frame is too short to
	// carry the value its id announces.
	ErrMalformedFrame = errors.New("am43: malformed frame")

	// ErrBadChecksum is returned when a frame's trailing checksum does not
	// match the XOR of the preceding bytes.
	ErrBadChecksum = errors.New("am43: checksum mismatch")

	// ErrBadStartByte is returned when a frame does not begin with 0x9A.
	ErrBadStartByte = errors.New("am43: bad start byte")
)
