package api

import (
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/larsks/qthrss/data"
)

// StatusResponse describes the running server.
type StatusResponse struct {
	Version    string            `json:"version"`
	ID         string            `json:"id"`
	Uptime     float64           `json:"uptimeS"`
	Goroutines int               `json:"goroutines"`
	CPUPercent float64           `json:"cpuPercent"`
	MemRSS     uint64            `json:"memRss"`
	CacheCount int               `json:"cacheCount"`
	Fetches    data.FetchSummary `json:"fetches"`
}

func (h *App) status(res http.ResponseWriter, req *http.Request) {
	s := StatusResponse{
		Version:    h.version,
		ID:         h.id,
		Uptime:     time.Since(h.started).Seconds(),
		Goroutines: runtime.NumGoroutine(),
		Fetches:    h.cache.Summary(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpuPerc, err := proc.CPUPercent(); err == nil {
			s.CPUPercent = cpuPerc
		}

		if memInfo, err := proc.MemoryInfo(); err == nil {
			s.MemRSS = memInfo.RSS
		}
	}

	if info, err := h.cache.Info(); err == nil {
		s.CacheCount = info.Count
	} else {
		slog.Error("reading cache info", "error", err)
	}

	res.Header().Set("Content-Type", "application/json")

	if err := encode(res, s); err != nil {
		slog.Error("encoding status", "error", err)
	}
}
