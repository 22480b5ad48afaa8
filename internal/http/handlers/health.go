package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything that can report whether its backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// dependency is one backend checked by Readiness. Optional ones only degrade.
type dependency struct {
	name     string
	pinger   Pinger
	optional bool
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	deps      []dependency
	sessions  func() int
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler. redis may be nil; sessions
// reports the number of running mining sessions and may be nil too.
func NewHealthHandler(store Pinger, redis Pinger, sessions func() int, version string) *HealthHandler {
	h := &HealthHandler{
		deps:      []dependency{{name: "store", pinger: store}},
		sessions:  sessions,
		startTime: time.Now(),
		version:   version,
	}
	if redis != nil {
		// rate limits and proof payloads fall back to memory
		h.deps = append(h.deps, dependency{name: "redis", pinger: redis, optional: true})
	}
	return h
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness returns simple alive status (for k8s liveness probe)
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness returns detailed health status (for k8s readiness probe)
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps)+2)
	status := "healthy"
	for _, d := range h.deps {
		err := d.pinger.Ping(ctx)
		switch {
		case err == nil:
			checks[d.name] = "healthy"
		case d.optional:
			checks[d.name] = "degraded: " + err.Error()
			if status == "healthy" {
				status = "degraded"
			}
		default:
			checks[d.name] = "unhealthy: " + err.Error()
			status = "unhealthy"
		}
	}

	if h.sessions != nil {
		checks["mining_sessions"] = fmt.Sprint(h.sessions())
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	checks["memory_alloc_mb"] = fmt.Sprintf("%.2f", float64(m.Alloc)/1024/1024)

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// Health only checks the store.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.deps[0].pinger.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "store unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}
