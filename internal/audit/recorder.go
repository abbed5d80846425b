package audit

import (
	"context"
	"fmt"

	"github.com/nerrad567/am43-core/internal/dispatch"
)

// Recorder writes every completed dispatch to a Repository, one entry per
// drive.
type Recorder struct {
	repo Repository
}

// Ensure Recorder is a dispatch observer.
var _ dispatch.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder over repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// ObserveDispatch records res.
func (r *Recorder) ObserveDispatch(ctx context.Context, res *dispatch.Result) error {
	if err := r.repo.Create(ctx, Entries(res)); err != nil {
		return fmt.Errorf("recording dispatch %s: %w", res.ID, err)
	}
	return nil
}

// Entries converts a dispatch result into log entries, in outcome order.
func Entries(res *dispatch.Result) []Entry {
	entries := make([]Entry, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		e := Entry{
			DispatchID: res.ID,
			Action:     res.Action.String(),
			Target:     res.Target.String(),
			Source:     res.Source,
			Device:     o.Device.Name,
			Group:      o.Device.Group,
			Address:    o.Device.Address.String(),
			Succeeded:  o.Succeeded,
			Reason:     o.Reason,
			Error:      o.Error(),
			Light:      o.Status.Light,
			DurationMS: o.Duration.Milliseconds(),
			CreatedAt:  res.CompletedAt,
		}
		if o.Status.Battery != nil {
			v := int(*o.Status.Battery)
			e.Battery = &v
		}
		if o.Status.Position != nil {
			v := int(*o.Status.Position)
			e.Position = &v
		}
		entries = append(entries, e)
	}
	return entries
}
