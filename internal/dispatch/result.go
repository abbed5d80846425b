package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/am43-core/internal/am43"
	"github.com/nerrad567/am43-core/internal/device"
)

// Aggregated response statuses.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Failure reasons recorded on outcomes.
const (
	ReasonConnectionFailed = "connection_failed"
	ReasonWriteFailed      = "write_failed"
	ReasonNotAcknowledged  = "not_acknowledged"
	ReasonProtocolError    = "protocol_error"
	ReasonReadNotSupported = "read_not_supported"
	ReasonCancelled        = "cancelled"
	ReasonError            = "error"
)

// Outcome is the result of one drive's session.
type Outcome struct {
	Device    device.Device `json:"device"`
	Succeeded bool          `json:"succeeded"`

	// Status holds the values collected by a status query. Fields are nil
	// when no notification arrived.
	Status am43.Snapshot `json:"status"`

	// Reason is empty on success.
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`

	Duration time.Duration `json:"duration"`
}

// Error returns the failure message, or "" on success.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Result aggregates the outcomes of one dispatch.
type Result struct {
	ID          string    `json:"id"`
	Action      Action    `json:"action"`
	Target      Target    `json:"target"`
	Source      string    `json:"source,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Outcomes    []Outcome `json:"outcomes"`
}

// Succeeded reports whether at least one drive was targeted and every
// drive succeeded.
func (r *Result) Succeeded() bool {
	if len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if !o.Succeeded {
			return false
		}
	}
	return true
}

// Status returns "OK" when the dispatch succeeded and "ERROR" otherwise.
func (r *Result) Status() string {
	if r.Succeeded() {
		return StatusOK
	}
	return StatusError
}

// Failed returns the number of drives that did not succeed.
func (r *Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Succeeded {
			n++
		}
	}
	return n
}

// commandEntry is the per-drive response for moves and stops.
// Fields are declared in key order so rendered objects are sorted.
type commandEntry struct {
	BSuccess bool   `json:"bSuccess"`
	Command  string `json:"command"`
	MACAddr  string `json:"macaddr"`
}

// statusEntry is the per-drive response for status queries.
// Fields are declared in key order so rendered objects are sorted.
type statusEntry struct {
	Battery  *uint8   `json:"battery"`
	Light    *float64 `json:"light"`
	MACAddr  string   `json:"macaddr"`
	Position *uint8   `json:"position"`
}

// Body returns the response object: one entry per drive keyed by display
// name, plus the top-level status.
//
// Display names that collide (the same device name in two groups) are
// qualified with the group for every entry after the first, as in
// "Left (bedroom)".
func (r *Result) Body() map[string]any {
	body := make(map[string]any, len(r.Outcomes)+1)
	for _, o := range r.Outcomes {
		key := o.Device.DisplayName()
		if _, taken := body[key]; taken {
			key = fmt.Sprintf("%s (%s)", key, o.Device.Group)
		}

		addr := o.Device.Address.String()
		if r.Action.Kind() == KindStatus {
			body[key] = statusEntry{
				Battery:  o.Status.Battery,
				Light:    o.Status.Light,
				MACAddr:  addr,
				Position: o.Status.Position,
			}
			continue
		}
		body[key] = commandEntry{
			BSuccess: o.Succeeded,
			Command:  r.Action.String(),
			MACAddr:  addr,
		}
	}
	body["status"] = r.Status()
	return body
}

// Render encodes Body as indented JSON with sorted keys and a trailing
// newline.
func (r *Result) Render() ([]byte, error) {
	data, err := json.MarshalIndent(r.Body(), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("rendering result: %w", err)
	}
	return append(data, '\n'), nil
}
