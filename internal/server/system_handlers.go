package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/quantstack/stresslab/internal/database"
)

// SystemHandlers handles system-wide monitoring endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   map[string]*database.DB
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases map[string]*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
	}
}

// HandleStatus handles GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	memStats := map[string]interface{}{}
	if vm, err := mem.VirtualMemory(); err == nil {
		memStats["total_mb"] = vm.Total / 1024 / 1024
		memStats["used_mb"] = vm.Used / 1024 / 1024
		memStats["used_percent"] = vm.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to read memory stats")
	}

	cpuStats := map[string]interface{}{"cores": runtime.NumCPU()}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuStats["used_percent"] = percents[0]
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
			"goroutines":     runtime.NumGoroutine(),
			"memory":         memStats,
			"cpu":            cpuStats,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{}, len(h.databases))

	for name, db := range h.databases {
		dbStats, err := db.GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Failed to get database stats")
			stats[name] = map[string]interface{}{"error": "unavailable"}
			continue
		}
		stats[name] = map[string]interface{}{
			"size_bytes":     dbStats.SizeBytes,
			"wal_size_bytes": dbStats.WALSizeBytes,
			"page_count":     dbStats.PageCount,
			"page_size":      dbStats.PageSize,
			"freelist_count": dbStats.FreelistCount,
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": stats,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDisk handles GET /api/system/disk
func (h *SystemHandlers) HandleDisk(w http.ResponseWriter, r *http.Request) {
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read disk usage")
		http.Error(w, "Failed to read disk usage", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"path":         h.dataDir,
			"total_gb":     float64(usage.Total) / 1e9,
			"free_gb":      float64(usage.Free) / 1e9,
			"used_percent": usage.UsedPercent,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
