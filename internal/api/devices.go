package api

import (
	"net/http"

	"github.com/nerrad567/am43-core/internal/statepub"
)

// DeviceView is one configured drive in the devices listing.
type DeviceView struct {
	Name        string               `json:"name"`
	DisplayName string               `json:"display_name"`
	Address     string               `json:"address"`
	State       *statepub.DriveState `json:"state,omitempty"`
}

// GroupView is one group in the devices listing.
type GroupView struct {
	Name    string       `json:"name"`
	Devices []DeviceView `json:"devices"`
}

// DevicesResponse is the body of GET /api/v1/devices.
type DevicesResponse struct {
	Groups []GroupView `json:"groups"`
	Total  int         `json:"total"`
}

// handleListDevices lists the registry in declaration order, with the last
// known state of each drive when state publishing is enabled.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	groups := s.registry.Groups()
	resp := DevicesResponse{
		Groups: make([]GroupView, 0, len(groups)),
		Total:  s.registry.Len(),
	}
	for _, g := range groups {
		view := GroupView{Name: g.Name, Devices: make([]DeviceView, 0, len(g.Devices))}
		for _, d := range g.Devices {
			dv := DeviceView{
				Name:        d.Name,
				DisplayName: d.DisplayName(),
				Address:     d.Address.String(),
			}
			if s.states != nil {
				if st, ok := s.states.State(dv.Address); ok {
					dv.State = &st
				}
			}
			view.Devices = append(view.Devices, dv)
		}
		resp.Groups = append(resp.Groups, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListSchedules lists scheduled jobs with their next run.
func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	if s.schedules == nil {
		writeUnavailable(w, "scheduler not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schedules": s.schedules.Entries(),
	})
}
