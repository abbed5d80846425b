package am43

import "fmt"

// Byte offsets of the values carried by report notifications.
const (
	batteryOffset  = 7
	positionOffset = 5
	lightOffset    = 4

	// lightStep converts the raw light sensor reading (0-8) to percent.
	lightStep = 12.5

	// minNotificationLen is the shortest frame that still carries an id.
	minNotificationLen = 2
)

// Kind classifies a decoded notification.
type Kind int

const (
	// KindUnknown is a notification id this package does not interpret.
	// It is recognised and ignored, never an error.
	KindUnknown Kind = iota

	// KindBattery carries the battery level in percent.
	KindBattery

	// KindPosition carries the blind position in percent.
	KindPosition

	// KindLight carries the light sensor level in percent.
	KindLight
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindBattery:
		return "battery"
	case KindPosition:
		return "position"
	case KindLight:
		return "light"
	default:
		return "unknown"
	}
}

// Notification is a decoded frame pushed by a drive.
type Notification struct {
	// ID is frame[1].
	ID byte

	// Kind tells which of the value fields is set.
	Kind Kind

	// Battery is valid when Kind == KindBattery.
	Battery uint8

	// Position is valid when Kind == KindPosition.
	Position uint8

	// Light is valid when Kind == KindLight.
	Light float64

	// Raw holds a copy of the received bytes.
	Raw []byte
}

// String returns a human-readable representation of the notification.
func (n Notification) String() string {
	switch n.Kind {
	case KindBattery:
		return fmt.Sprintf("Notification{battery:%d%%}", n.Battery)
	case KindPosition:
		return fmt.Sprintf("Notification{position:%d%%}", n.Position)
	case KindLight:
		return fmt.Sprintf("Notification{light:%.1f%%}", n.Light)
	default:
		return fmt.Sprintf("Notification{unknown id:%02X, raw:%X}", n.ID, n.Raw)
	}
}

// DecodeNotification parses a raw notification frame.
//
// The id is frame[1]. Values are taken from fixed offsets:
//
//	0xA2 battery:  frame[7]
//	0xA7 position: frame[5]
//	0xAA light:    frame[4] * 12.5
//
// Any other id decodes to KindUnknown without error. The checksum is not
// verified; drives are known to push frames whose trailer does not match.
//
// Parameters:
//   - frame: Bytes received from the characteristic
//
// Returns:
//   - Notification: Decoded notification
//   - error: ErrMalformedFrame if the frame is shorter than 2 bytes or too
//     short for the offset its id requires
func DecodeNotification(frame []byte) (Notification, error) {
	if len(frame) < minNotificationLen {
		return Notification{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(frame), minNotificationLen)
	}

	n := Notification{
		ID:  frame[1],
		Raw: append([]byte(nil), frame...),
	}

	switch n.ID {
	case IDBattery:
		if err := requireLen(frame, batteryOffset, "battery"); err != nil {
			return Notification{}, err
		}
		n.Kind = KindBattery
		n.Battery = frame[batteryOffset]
	case IDPosition:
		if err := requireLen(frame, positionOffset, "position"); err != nil {
			return Notification{}, err
		}
		n.Kind = KindPosition
		n.Position = frame[positionOffset]
	case IDLight:
		if err := requireLen(frame, lightOffset, "light"); err != nil {
			return Notification{}, err
		}
		n.Kind = KindLight
		n.Light = float64(frame[lightOffset]) * lightStep
	default:
		n.Kind = KindUnknown
	}

	return n, nil
}

func requireLen(frame []byte, offset int, what string) error {
	if len(frame) <= offset {
		return fmt.Errorf("%w: %s notification needs %d bytes, got %d", ErrMalformedFrame, what, offset+1, len(frame))
	}
	return nil
}

// BatteryReport encodes the notification a drive pushes for a battery
// request. Used by simulated drives and tests.
func BatteryReport(percent uint8) []byte {
	return mustEncode(IDBattery, []byte{0x00, 0x00, 0x00, 0x00, percent})
}

// PositionReport encodes a position notification.
func PositionReport(percent uint8) []byte {
	return mustEncode(IDPosition, []byte{0x00, 0x00, percent, 0x00, 0x00})
}

// LightReport encodes a light notification. level is the raw sensor step
// (0-8), reported as level*12.5 percent.
func LightReport(level uint8) []byte {
	return mustEncode(IDLight, []byte{0x00, level})
}

// mustEncode frames a payload known to fit.
func mustEncode(id byte, payload []byte) []byte {
	frame, err := Encode(id, payload)
	if err != nil {
		panic(err)
	}
	return frame
}
