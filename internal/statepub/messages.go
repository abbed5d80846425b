package statepub

import (
	"time"

	"github.com/nerrad567/am43-core/internal/dispatch"
)

// DriveState is the retained state message of one drive.
type DriveState struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Group   string `json:"group"`

	// Last known status values. Nil until a status query reports them.
	Battery  *uint8   `json:"battery"`
	Position *uint8   `json:"position"`
	Light    *float64 `json:"light"`

	// LastCommand is the token of the last move or stop sent to the drive.
	LastCommand   string `json:"last_command,omitempty"`
	LastCommandOK bool   `json:"last_command_ok"`

	// Reachable is false when the last session failed to connect.
	Reachable  bool      `json:"reachable"`
	LastReason string    `json:"last_reason,omitempty"`
	DispatchID string    `json:"dispatch_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DispatchEvent summarises one dispatch on the event topic.
type DispatchEvent struct {
	DispatchID string           `json:"dispatch_id"`
	Action     string           `json:"action"`
	Target     string           `json:"target"`
	Source     string           `json:"source,omitempty"`
	Status     string           `json:"status"`
	Devices    int              `json:"devices"`
	Failed     int              `json:"failed"`
	Outcomes   []OutcomeSummary `json:"outcomes"`
	Timestamp  time.Time        `json:"timestamp"`
}

// OutcomeSummary is one drive's entry in a DispatchEvent.
type OutcomeSummary struct {
	Name       string `json:"name"`
	Group      string `json:"group"`
	Address    string `json:"address"`
	Succeeded  bool   `json:"succeeded"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms"`

	// StatusIncomplete is set on a successful status query that did not
	// receive every value.
	StatusIncomplete bool `json:"status_incomplete,omitempty"`
}

// NewDispatchEvent builds the event message for res.
func NewDispatchEvent(res *dispatch.Result) DispatchEvent {
	ev := DispatchEvent{
		DispatchID: res.ID,
		Action:     res.Action.String(),
		Target:     res.Target.String(),
		Source:     res.Source,
		Status:     res.Status(),
		Devices:    len(res.Outcomes),
		Failed:     res.Failed(),
		Outcomes:   make([]OutcomeSummary, 0, len(res.Outcomes)),
		Timestamp:  res.CompletedAt,
	}
	status := res.Action.Kind() == dispatch.KindStatus
	for _, o := range res.Outcomes {
		ev.Outcomes = append(ev.Outcomes, OutcomeSummary{
			Name:             o.Device.Name,
			Group:            o.Device.Group,
			Address:          o.Device.Address.String(),
			Succeeded:        o.Succeeded,
			Reason:           o.Reason,
			DurationMS:       o.Duration.Milliseconds(),
			StatusIncomplete: status && o.Succeeded && !o.Status.Complete(),
		})
	}
	return ev
}
