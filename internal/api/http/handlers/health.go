package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weisyn/viewd/internal/resolver"
)

// HealthHandler serves the liveness/readiness probes the teacher's
// handlers.HealthHandler exposes, trimmed to what a stateless read path
// actually has to check: whether it can still reach the store.
type HealthHandler struct {
	resolver  *resolver.Resolver
	startedAt time.Time
}

// NewHealthHandler builds a HealthHandler atop res.
func NewHealthHandler(res *resolver.Resolver) *HealthHandler {
	return &HealthHandler{resolver: res, startedAt: time.Now()}
}

// RegisterRoutes mounts /health, /health/live, /health/ready under r.
func (h *HealthHandler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/health")
	group.GET("", h.Health)
	group.GET("/live", h.Liveness)
	group.GET("/ready", h.Readiness)
}

// Health reports overall status and uptime.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().UTC(),
	})
}

// Liveness always succeeds once the process can serve requests at all; it
// deliberately does not touch the store, so a slow or unreachable Redis
// never causes Kubernetes to restart an otherwise-healthy process.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness checks that the store is actually reachable by resolving the
// latest height, which is on the hot path of every view call anyway.
func (h *HealthHandler) Readiness(c *gin.Context) {
	_, err := h.resolver.LatestHeight(c.Request.Context())
	ready := err == nil
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not_ready"}[ready],
		"checks": gin.H{"store_reachable": ready},
	})
}
