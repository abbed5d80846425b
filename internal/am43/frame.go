package am43

import (
	"fmt"
	"strings"
)

// Frame layout constants.
const (
	// FrameStart is the first byte of every AM43 frame.
	FrameStart byte = 0x9A

	// MaxPayloadLen is the largest payload a single length byte can describe.
	MaxPayloadLen = 255

	// frameOverhead is start + id + len + checksum.
	frameOverhead = 4
)

// Message identifiers.
const (
	// IDMove moves the blind to an absolute position.
	IDMove byte = 0x0D

	// IDStop halts a blind that is moving.
	IDStop byte = 0x0A

	// IDBattery requests or reports the battery level.
	IDBattery byte = 0xA2

	// IDLight requests or reports the light sensor level.
	IDLight byte = 0xAA

	// IDPosition requests or reports the current position.
	IDPosition byte = 0xA7

	// IDPosition2 and IDPosition3 are position related reports some
	// firmware revisions push. They carry no value we use.
	IDPosition2 byte = 0xA8
	IDPosition3 byte = 0xA9
)

// Fixed payload bytes.
const (
	// StopPayload is the only payload byte accepted by IDStop.
	StopPayload byte = 0xCC

	// ReportRequestPayload asks the drive to push a report notification.
	ReportRequestPayload byte = 0x01
)

// Position bounds in percent. 0 is fully open, 100 fully closed.
const (
	PositionOpen   uint8 = 0
	PositionClosed uint8 = 100
)

// Command is an outgoing AM43 message before framing.
type Command struct {
	// ID is the message identifier (IDMove, IDStop, ...).
	ID byte

	// Payload is the message body. At most MaxPayloadLen bytes.
	Payload []byte
}

// MoveCommand builds a move-to-position command.
func MoveCommand(percent uint8) Command {
	return Command{ID: IDMove, Payload: []byte{percent}}
}

// StopCommand builds a stop command.
func StopCommand() Command {
	return Command{ID: IDStop, Payload: []byte{StopPayload}}
}

// BatteryRequest asks the drive for a battery report.
func BatteryRequest() Command {
	return Command{ID: IDBattery, Payload: []byte{ReportRequestPayload}}
}

// LightRequest asks the drive for a light sensor report.
func LightRequest() Command {
	return Command{ID: IDLight, Payload: []byte{ReportRequestPayload}}
}

// PositionRequest asks the drive for a position report.
func PositionRequest() Command {
	return Command{ID: IDPosition, Payload: []byte{ReportRequestPayload}}
}

// Encode frames the command. See Encode.
func (c Command) Encode() ([]byte, error) {
	return Encode(c.ID, c.Payload)
}

// String returns a human-readable representation of the command.
func (c Command) String() string {
	return fmt.Sprintf("Command{ID:%02X, Payload:%X}", c.ID, c.Payload)
}

// Encode builds a wire frame for the given id and payload.
//
// The output layout is:
//
//	Byte 0:     0x9A
//	Byte 1:     id
//	Byte 2:     len(payload)
//	Byte 3..n:  payload
//	Byte n+1:   XOR of bytes 0..n
//
// Parameters:
//   - id: Message identifier
//   - payload: Message body (at most 255 bytes)
//
// Returns:
//   - []byte: Encoded frame ready to write to the characteristic
//   - error: ErrPayloadTooLong if the payload exceeds 255 bytes
func Encode(id byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLong, len(payload), MaxPayloadLen)
	}

	frame := make([]byte, 0, len(payload)+frameOverhead)
	frame = append(frame, FrameStart, id, byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, Checksum(frame))
	return frame, nil
}

// Checksum returns the running XOR of data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// VerifyFrame checks the start byte, declared length and checksum of a
// complete frame.
func VerifyFrame(frame []byte) error {
	if len(frame) < frameOverhead {
		return fmt.Errorf("%w: too short (%d bytes, need at least %d)", ErrMalformedFrame, len(frame), frameOverhead)
	}
	if frame[0] != FrameStart {
		return fmt.Errorf("%w: got %02X", ErrBadStartByte, frame[0])
	}
	if want := int(frame[2]) + frameOverhead; len(frame) != want {
		return fmt.Errorf("%w: length byte says %d bytes, frame has %d", ErrMalformedFrame, want, len(frame))
	}
	last := len(frame) - 1
	if sum := Checksum(frame[:last]); sum != frame[last] {
		return fmt.Errorf("%w: computed %02X, frame carries %02X", ErrBadChecksum, sum, frame[last])
	}
	return nil
}

// Hex formats a frame as space separated hex pairs for logging.
func Hex(frame []byte) string {
	var sb strings.Builder
	for i, b := range frame {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}
