package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/shirou/gopsutil/process"

	"chat-relay/observability"
	"chat-relay/sink"
)

// ProcessStats are the relay's own OS-level figures, served next to the
// relay counters so a stuck deployment can be inspected with curl.
type ProcessStats struct {
	Pid        int     `json:"pid"`
	Status     string  `json:"status"`
	CpuPercent float64 `json:"cpu_percent"`
	RamBytes   uint64  `json:"ram_bytes"`
}

type statsPage struct {
	Relay    observability.RelayStats `json:"relay"`
	Process  ProcessStats             `json:"process"`
	Timeline []sink.TimelineEntry     `json:"timeline,omitempty"`
}

// StartDebugServer exposes a JSON stats endpoint in the background.
// Errors serving the endpoint never affect the relay itself.
func StartDebugServer(log *slog.Logger, port int, endpoint string, monitor *observability.Monitoring, timeline *sink.TimelineSink) {
	mux := http.NewServeMux()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Debug server: self process unavailable", "err", err)
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		page := statsPage{Relay: monitor.Snapshot()}
		if p != nil {
			page.Process = selfStats(p)
		}
		if timeline != nil {
			page.Timeline = timeline.Recent()
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(page)
	})

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux); err != nil {
			log.Warn("Debug server stopped", "err", err)
		}
	}()
}

// selfStats retrieves memory, CPU and OS status for the relay process.
func selfStats(p *process.Process) ProcessStats {
	stats := ProcessStats{Pid: int(p.Pid)}
	if memInfo, err := p.MemoryInfo(); err == nil {
		stats.RamBytes = memInfo.RSS
	}
	if cpuPercent, err := p.CPUPercent(); err == nil {
		stats.CpuPercent = cpuPercent
	}
	if status, err := p.Status(); err == nil {
		stats.Status = status
	}
	return stats
}
