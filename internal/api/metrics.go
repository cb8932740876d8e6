package api

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/nerrad567/sensor-net-proxy/internal/bridges/mysensors"
)

// healthCheckTimeout bounds each component check in the health endpoint.
const healthCheckTimeout = 2 * time.Second

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string              `json:"timestamp"`
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Runtime       RuntimeMetrics      `json:"runtime"`
	WebSocket     WSMetrics           `json:"websocket"`
	Loop          mysensors.LoopStats `json:"loop"`
	Nodes         NodeMetrics         `json:"nodes"`
	Database      *DatabaseMetrics    `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// NodeMetrics contains node inventory statistics.
type NodeMetrics struct {
	Enabled bool `json:"enabled"`
	Total   int  `json:"total"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status     mysensors.HealthStatus `json:"status"`
	Version    string                 `json:"version"`
	Uptime     int64                  `json:"uptime_seconds"`
	Gateways   int                    `json:"gateways"`
	Components map[string]string      `json:"components"`
}

// handleHealth reports the loop state and the result of each component check.
// Any failure downgrades the status to degraded; a stopped loop is offline.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.loop.Stats()

	resp := HealthResponse{
		Status:     mysensors.HealthHealthy,
		Version:    s.version,
		Uptime:     int64(time.Since(s.startTime).Seconds()),
		Gateways:   stats.Gateways,
		Components: map[string]string{"loop": "ok"},
	}
	if !stats.Running {
		resp.Status = mysensors.HealthOffline
		resp.Components["loop"] = "stopped"
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			resp.Components[name] = err.Error()
			if resp.Status == mysensors.HealthHealthy {
				resp.Status = mysensors.HealthDegraded
			}
			continue
		}
		resp.Components[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status == mysensors.HealthOffline {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Loop: s.loop.Stats(),
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
		metrics.WebSocket.DroppedEvents = s.hub.Dropped()
	}

	if s.nodes != nil {
		metrics.Nodes = NodeMetrics{Enabled: true, Total: s.nodes.Count()}
	}

	if s.dbStats != nil {
		st := s.dbStats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
