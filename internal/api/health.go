package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/am43-core/internal/discovery"
	"github.com/nerrad567/am43-core/internal/link"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

// Health statuses.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Transport     string            `json:"transport"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Devices       int               `json:"devices"`
	MQTT          *ComponentHealth  `json:"mqtt,omitempty"`
	Database      *ComponentHealth  `json:"database,omitempty"`
	Dispatch      DispatchMetrics   `json:"dispatch"`
	Link          *LinkMetrics      `json:"link,omitempty"`
	Gateway       *GatewayMetrics   `json:"gateway,omitempty"`
	Discovery     *discovery.Report `json:"discovery,omitempty"`
}

// ComponentHealth is the result of one infrastructure check.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// DispatchMetrics contains dispatcher statistics.
type DispatchMetrics struct {
	Dispatches    uint64     `json:"dispatches"`
	DevicesTotal  uint64     `json:"devices_total"`
	DevicesFailed uint64     `json:"devices_failed"`
	LastDispatch  *time.Time `json:"last_dispatch,omitempty"`
}

// LinkMetrics contains connection and frame counters across all drives.
type LinkMetrics struct {
	ConnectsTotal   uint64     `json:"connects_total"`
	ConnectFailures uint64     `json:"connect_failures"`
	AttemptsTotal   uint64     `json:"attempts_total"`
	FramesTx        uint64     `json:"frames_tx"`
	WritesRejected  uint64     `json:"writes_rejected"`
	NotificationsRx uint64     `json:"notifications_rx"`
	NotifyTimeouts  uint64     `json:"notify_timeouts"`
	OpenLinks       int64      `json:"open_links"`
	LastActivity    *time.Time `json:"last_activity,omitempty"`
}

// GatewayMetrics contains BLE gateway request counters.
type GatewayMetrics struct {
	Started         bool   `json:"started"`
	RequestsTx      uint64 `json:"requests_tx"`
	RequestTimeouts uint64 `json:"request_timeouts"`
	NotificationsRx uint64 `json:"notifications_rx"`
	NotifyDropped   uint64 `json:"notify_dropped"`
	OpenConns       int    `json:"open_conns"`
}

// handleHealth reports service health. The status is "degraded" when a
// configured infrastructure component fails its check; the HTTP status is
// always 200 so the body can be read.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        healthOK,
		Version:       s.version,
		Transport:     s.transport,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Devices:       s.registry.Len(),
	}

	if s.mqtt != nil {
		resp.MQTT = check(r.Context(), s.mqtt)
	}
	if s.db != nil {
		resp.Database = check(r.Context(), s.db)
	}
	for _, c := range []*ComponentHealth{resp.MQTT, resp.Database} {
		if c != nil && !c.Healthy {
			resp.Status = healthDegraded
		}
	}

	stats := s.dispatcher.Stats()
	resp.Dispatch = DispatchMetrics{
		Dispatches:    stats.Dispatches,
		DevicesTotal:  stats.DevicesTotal,
		DevicesFailed: stats.DevicesFailed,
	}
	if !stats.LastDispatch.IsZero() {
		last := stats.LastDispatch.UTC()
		resp.Dispatch.LastDispatch = &last
	}

	if s.link != nil {
		resp.Link = linkMetrics(s.link.Stats())
	}
	if s.gateway != nil {
		gs := s.gateway.Stats()
		resp.Gateway = &GatewayMetrics{
			Started:         gs.Started,
			RequestsTx:      gs.RequestsTx,
			RequestTimeouts: gs.RequestTimeouts,
			NotificationsRx: gs.NotificationsRx,
			NotifyDropped:   gs.NotifyDropped,
			OpenConns:       gs.OpenConns,
		}
		if !gs.Started {
			resp.Status = healthDegraded
		}
	}

	if s.prober != nil {
		if last := s.prober.Last(); !last.CheckedAt.IsZero() {
			resp.Discovery = &last
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func linkMetrics(st link.Stats) *LinkMetrics {
	m := &LinkMetrics{
		ConnectsTotal:   st.ConnectsTotal,
		ConnectFailures: st.ConnectFailures,
		AttemptsTotal:   st.AttemptsTotal,
		FramesTx:        st.FramesTx,
		WritesRejected:  st.WritesRejected,
		NotificationsRx: st.NotificationsRx,
		NotifyTimeouts:  st.NotifyTimeouts,
		OpenLinks:       st.OpenLinks,
	}
	if !st.LastActivity.IsZero() {
		last := st.LastActivity.UTC()
		m.LastActivity = &last
	}
	return m
}

func check(ctx context.Context, c HealthChecker) *ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		return &ComponentHealth{Healthy: false, Error: err.Error()}
	}
	return &ComponentHealth{Healthy: true}
}
