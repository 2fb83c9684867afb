package handler

import (
	"net/http"

	"github.com/caseline/caseline/internal/backend"
	"github.com/caseline/caseline/internal/realtime"

	"github.com/gin-gonic/gin"
)

// Health serves the read-only service snapshot. It never mutates core state.
type Health struct {
	registry *realtime.Registry
	backends *backend.Registry
	stats    *backend.StatsTracker
}

// NewHealth creates the health handler.
func NewHealth(registry *realtime.Registry, backends *backend.Registry, stats *backend.StatsTracker) *Health {
	return &Health{registry: registry, backends: backends, stats: stats}
}

// HandleHealth responds with connection and backend statistics.
func (h *Health) HandleHealth(c *gin.Context) {
	snap := h.registry.Stats()
	statsByName := h.stats.Snapshot()

	backends := gin.H{}
	for _, info := range h.backends.Describe() {
		s := statsByName[info.Name]
		backends[info.Name] = gin.H{
			"model":               info.Model,
			"streaming":           info.Capabilities.Streaming,
			"requests":            s.Requests,
			"successes":           s.Successes,
			"failures":            s.Failures,
			"avg_latency_seconds": s.AverageLatency().Seconds(),
			"last_error":          s.LastError,
			"last_success_at":     s.LastSuccessAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"components": gin.H{
			"connections": gin.H{
				"total":    snap.Total,
				"per_room": snap.PerRoom,
			},
			"backends": backends,
		},
	})
}
