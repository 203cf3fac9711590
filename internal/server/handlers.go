package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/foresight/internal/database"
	"github.com/aristath/foresight/internal/scheduler"
)

// DatabaseStatus reports one database in /api/system/status
type DatabaseStatus struct {
	Name    string          `json:"name"`
	Path    string          `json:"path"`
	Healthy bool            `json:"healthy"`
	Error   string          `json:"error,omitempty"`
	Stats   *database.Stats `json:"stats,omitempty"`
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status     string           `json:"status"`
	UptimeSecs int64            `json:"uptime_seconds"`
	CPUPercent float64          `json:"cpu_percent"`
	MemPercent float64          `json:"mem_percent"`
	Databases  []DatabaseStatus `json:"databases"`
	Jobs       []JobStatus      `json:"jobs"`
	LastCheck  string           `json:"last_checked"`
}

// JobStatus describes a registered background job
type JobStatus struct {
	Name    string     `json:"name"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	for _, db := range s.container.Databases() {
		if err := db.QuickCheck(r.Context()); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Health check failed")
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "foresight",
	})
}

// handleSystemStatus reports resource usage, databases and jobs
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := s.systemStats()

	resp := SystemStatusResponse{
		Status:     "healthy",
		UptimeSecs: int64(time.Since(s.started).Seconds()),
		CPUPercent: cpuPercent,
		MemPercent: memPercent,
		Databases:  []DatabaseStatus{},
		Jobs:       s.jobStatuses(),
		LastCheck:  time.Now().Format(time.RFC3339),
	}
	for _, db := range s.container.Databases() {
		ds := DatabaseStatus{Name: db.Name(), Path: db.Path(), Healthy: true}
		if err := db.HealthCheck(r.Context()); err != nil {
			ds.Healthy = false
			ds.Error = err.Error()
			resp.Status = "degraded"
		}
		if stats, err := db.GetStats(); err == nil {
			ds.Stats = stats
		}
		resp.Databases = append(resp.Databases, ds)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleListJobs handles GET /api/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": s.jobStatuses(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// handleTriggerJob handles POST /api/jobs/{name}; the job runs to completion
func (s *Server) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.container.Scheduler == nil {
		s.writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	start := time.Now()
	err := s.container.Scheduler.Trigger(name)
	switch {
	case errors.Is(err, scheduler.ErrNoJob):
		s.writeError(w, http.StatusNotFound, "unknown job "+name)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"job":        name,
			"status":     "completed",
			"elapsed_ms": time.Since(start).Milliseconds(),
		},
	})
}

func (s *Server) jobStatuses() []JobStatus {
	out := []JobStatus{}
	if s.container.Scheduler == nil {
		return out
	}
	for _, name := range s.container.Scheduler.Jobs() {
		js := JobStatus{Name: name}
		if next, ok := s.container.Scheduler.Next(name); ok && !next.IsZero() {
			js.NextRun = &next
		}
		out = append(out, js)
	}
	return out
}

// systemStats samples CPU over 100ms and reads memory usage
func (s *Server) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}
	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}
	return cpuPercent[0], memStat.UsedPercent
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
