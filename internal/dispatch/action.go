package dispatch

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nerrad567/am43-core/internal/am43"
)

// Kind identifies an action variant.
type Kind int

const (
	// KindMove moves the blind to a position. Open and Close are moves to
	// the end positions.
	KindMove Kind = iota

	// KindStop halts the motor.
	KindStop

	// KindStatus reads battery, light and position.
	KindStatus
)

// Action tokens accepted in requests.
const (
	TokenOpen   = "open"
	TokenClose  = "close"
	TokenStop   = "stop"
	TokenStatus = "getStatus"
)

// Action is a validated request for one or more drives.
// The zero value is invalid; build actions with the constructors or
// ParseAction.
type Action struct {
	kind    Kind
	percent uint8
	token   string
}

// Open returns the action moving a blind fully open.
func Open() Action {
	return Action{kind: KindMove, percent: am43.PositionOpen, token: TokenOpen}
}

// Close returns the action moving a blind fully closed.
func Close() Action {
	return Action{kind: KindMove, percent: am43.PositionClosed, token: TokenClose}
}

// Stop returns the action halting the motor.
func Stop() Action {
	return Action{kind: KindStop, token: TokenStop}
}

// GetStatus returns the status query action.
func GetStatus() Action {
	return Action{kind: KindStatus, token: TokenStatus}
}

// MoveTo returns the action moving a blind to percent (0 open, 100 closed).
// Returns ErrInvalidAction when percent is outside 0..100.
func MoveTo(percent int) (Action, error) {
	if percent < 0 || percent > 100 {
		return Action{}, fmt.Errorf("%w: position %d out of range 0..100", ErrInvalidAction, percent)
	}
	return Action{kind: KindMove, percent: uint8(percent), token: strconv.Itoa(percent)}, nil //nolint:gosec // range checked above
}

// ParseAction parses a request token: open, close, stop, getStatus or a
// decimal position 0..100. Named tokens match exactly.
func ParseAction(token string) (Action, error) {
	switch token {
	case TokenOpen:
		return Open(), nil
	case TokenClose:
		return Close(), nil
	case TokenStop:
		return Stop(), nil
	case TokenStatus:
		return GetStatus(), nil
	}

	if token == "" || strings.TrimLeft(token, "0123456789") != "" {
		return Action{}, fmt.Errorf("%w: %q", ErrInvalidAction, token)
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return Action{}, fmt.Errorf("%w: %q", ErrInvalidAction, token)
	}
	return MoveTo(n)
}

// Kind returns the action variant.
func (a Action) Kind() Kind {
	return a.kind
}

// Percent returns the target position of a move.
func (a Action) Percent() uint8 {
	return a.percent
}

// IsZero reports whether a was never built.
func (a Action) IsZero() bool {
	return a.token == ""
}

// String returns the canonical token of the action.
func (a Action) String() string {
	return a.token
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.token), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Method returns the HTTP method the action must be requested with.
func (a Action) Method() string {
	if a.kind == KindStatus {
		return http.MethodPut
	}
	return http.MethodGet
}

// Commands translates the action into the frames sent to each drive, in
// order.
func (a Action) Commands() []am43.Command {
	switch a.kind {
	case KindMove:
		return []am43.Command{am43.MoveCommand(a.percent)}
	case KindStop:
		return []am43.Command{am43.StopCommand()}
	case KindStatus:
		return []am43.Command{am43.BatteryRequest(), am43.LightRequest(), am43.PositionRequest()}
	}
	return nil
}

// ValidateMethod checks the request method against the action.
// Returns ErrMethodMismatch when getStatus is not requested with PUT or
// another action is not requested with GET.
func ValidateMethod(method string, a Action) error {
	if want := a.Method(); !strings.EqualFold(method, want) {
		return fmt.Errorf("%w: %s %s (use %s)", ErrMethodMismatch, strings.ToUpper(method), a, want)
	}
	return nil
}
