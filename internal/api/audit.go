package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/am43-core/internal/audit"
)

// handleListAudit returns paginated dispatch log entries, newest first.
//
// Query parameters:
//   - device: filter by device name
//   - dispatch_id: filter by one dispatch
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "audit log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Device:     q.Get("device"),
		DispatchID: q.Get("dispatch_id"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list dispatch log", "error", err)
		writeInternalError(w, "failed to list dispatch log")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
