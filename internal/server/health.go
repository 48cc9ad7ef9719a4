package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// healthzResponse reports host resource stats alongside a static ok
// status, the way the teacher's system handlers expose CPU/RAM.
type healthzResponse struct {
	Status    string  `json:"status"`
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := s.getSystemStats()
	writeJSON(w, http.StatusOK, healthzResponse{
		Status:     "ok",
		CPUPercent: cpuPct,
		MemPercent: memPct,
	})
}

// handleReadyz reports readiness based on whether an audit stream is
// wired up at all — the engine constructs and publishes to it from the
// moment it starts processing events.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// getSystemStats mirrors the teacher's short-interval CPU sampling: 100ms
// is enough to avoid blocking the health check noticeably while still
// reporting a meaningful instantaneous load.
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to sample cpu percent")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to sample memory stats")
		return firstOrZero(cpuPercent), 0
	}

	return firstOrZero(cpuPercent), memStat.UsedPercent
}

func firstOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[0]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
