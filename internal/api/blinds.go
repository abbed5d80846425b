package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/am43-core/internal/device"
	"github.com/nerrad567/am43-core/internal/discovery"
	"github.com/nerrad567/am43-core/internal/dispatch"
)

// sourceAPI tags dispatches started over HTTP.
const sourceAPI = "api"

// handleAction runs an action against all drives, a group or one device.
//
// Routes:
//   - /am43/{action}               every configured drive
//   - /am43/{action}/group/{name}  the drives of one group
//   - /am43/{action}/device/{name} every drive with that name
//
// The action and method are checked before the target is resolved, and the
// target is resolved before any drive is contacted.
func (s *Server) handleAction(kind dispatch.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.runAction(w, r, kind)
	}
}

func (s *Server) runAction(w http.ResponseWriter, r *http.Request, kind dispatch.TargetKind) {
	action, err := dispatch.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	if err := dispatch.ValidateMethod(r.Method, action); err != nil {
		w.Header().Set("Allow", action.Method())
		writeDispatchError(w, err)
		return
	}

	target, err := targetFromRequest(r, kind)
	if err != nil {
		writeBadRequest(w, "invalid target name")
		return
	}

	res, err := s.dispatcher.Execute(r.Context(), dispatch.Request{
		Action: action,
		Target: target,
		Source: sourceAPI,
	})
	if err != nil {
		if !dispatch.IsValidation(err) {
			s.logger.Error("dispatch failed", "action", action.String(), "target", target.String(), "error", err)
		}
		writeDispatchError(w, err)
		return
	}

	body, err := res.Render()
	if err != nil {
		s.logger.Error("rendering dispatch result", "dispatch_id", res.ID, "error", err)
		writeInternalError(w, "failed to render result")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(headerDispatchID, res.ID)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(body)
}

// targetFromRequest builds a target of kind from the {name} parameter.
func targetFromRequest(r *http.Request, kind dispatch.TargetKind) (dispatch.Target, error) {
	if kind == dispatch.TargetAll {
		return dispatch.All(), nil
	}
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		return dispatch.Target{}, err
	}
	return dispatch.Target{Kind: kind, Name: name}, nil
}

// DiscoveryResponse is the body of GET /am43/discovery: the probe report
// plus the configured names of the drives the scan did not see.
type DiscoveryResponse struct {
	discovery.Report
	MissingDevices []device.Device `json:"missing_devices"`
}

// handleDiscovery scans for the configured drives and reports which were
// seen. The scan is advisory and never fails the request.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.prober == nil {
		writeUnavailable(w, "discovery not configured")
		return
	}
	resp := DiscoveryResponse{
		Report:         s.prober.Run(r.Context(), s.registry.Addresses()),
		MissingDevices: []device.Device{},
	}
	for _, addr := range resp.Missing {
		if d, ok := s.registry.Lookup(addr); ok {
			resp.MissingDevices = append(resp.MissingDevices, d)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
