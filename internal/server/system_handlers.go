package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves process and host diagnostics.
type SystemHandlers struct {
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates the system diagnostics handler
func NewSystemHandlers(log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// systemStatus is the /api/system/status payload.
type systemStatus struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Goroutines     int     `json:"goroutines"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	MemUsedMB      float64 `json:"mem_used_mb"`
	MemTotalMB     float64 `json:"mem_total_mb"`
}

// HandleStatus returns host CPU/memory usage and process stats.
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := systemStatus{
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		status.CPUPercent = cpuPercent[0]
	} else if err != nil {
		h.log.Debug().Err(err).Msg("CPU stats unavailable")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		status.MemUsedPercent = memStat.UsedPercent
		status.MemUsedMB = float64(memStat.Used) / 1024 / 1024
		status.MemTotalMB = float64(memStat.Total) / 1024 / 1024
	} else {
		h.log.Debug().Err(err).Msg("Memory stats unavailable")
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}
