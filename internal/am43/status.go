package am43

// Snapshot is the status of one drive as reported during a status session.
// A nil field was never reported.
type Snapshot struct {
	Battery  *uint8   `json:"battery"`
	Position *uint8   `json:"position"`
	Light    *float64 `json:"light"`
}

// Complete reports whether every field was received.
func (s Snapshot) Complete() bool {
	return s.Battery != nil && s.Position != nil && s.Light != nil
}

// Accumulator collects notification values for a single status session.
//
// It replaces ambient battery/position/light variables: each session creates
// (or resets) its own Accumulator and passes it to the notification path.
// Not safe for concurrent use.
type Accumulator struct {
	battery  uint8
	position uint8
	light    float64

	hasBattery  bool
	hasPosition bool
	hasLight    bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Reset clears every field back to absent.
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

// Apply merges a decoded notification. It returns false for notifications
// that carry no status value.
func (a *Accumulator) Apply(n Notification) bool {
	switch n.Kind {
	case KindBattery:
		a.battery, a.hasBattery = n.Battery, true
	case KindPosition:
		a.position, a.hasPosition = n.Position, true
	case KindLight:
		a.light, a.hasLight = n.Light, true
	default:
		return false
	}
	return true
}

// Consume decodes frame and applies it.
func (a *Accumulator) Consume(frame []byte) (Notification, error) {
	n, err := DecodeNotification(frame)
	if err != nil {
		return Notification{}, err
	}
	a.Apply(n)
	return n, nil
}

// Snapshot returns a copy of the current values. The returned pointers do
// not alias the accumulator.
func (a *Accumulator) Snapshot() Snapshot {
	var s Snapshot
	if a.hasBattery {
		v := a.battery
		s.Battery = &v
	}
	if a.hasPosition {
		v := a.position
		s.Position = &v
	}
	if a.hasLight {
		v := a.light
		s.Light = &v
	}
	return s
}
