package http

import (
	"net/http"
	"time"

	"eclairia/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	service   string
	version   string
	startedAt time.Time
	checker   *monitoring.HealthChecker
}

func NewHealthHandler(service, version string, checker *monitoring.HealthChecker) *HealthHandler {
	return &HealthHandler{
		service:   service,
		version:   version,
		startedAt: time.Now(),
		checker:   checker,
	}
}

func (h *HealthHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

// Health is a liveness probe; it never touches dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   h.service,
		"version":   h.version,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	status := h.checker.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != monitoring.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
