// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"drill-monitor/internal/config"
	"drill-monitor/internal/service"
	"drill-monitor/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	monitorService *service.MonitorService
	config         *config.Config
	logger         *utils.ServiceLogger
	startedAt      time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(monitorService *service.MonitorService, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		monitorService: monitorService,
		config:         config,
		logger:         utils.NewServiceLogger(logger, "health-handler"),
		startedAt:      time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check. The sensor link being down
// degrades the status without making the service unhealthy: the API and
// the session data remain usable.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).String(),
		Checks:    make(map[string]CheckResult),
	}

	if h.monitorService.IsConnected() {
		health.Checks["sensor"] = CheckResult{
			Status:  "healthy",
			Message: "Sensor link OK",
		}
	} else {
		health.Status = "degraded"
		health.Checks["sensor"] = CheckResult{
			Status:  "disconnected",
			Message: "Sensor link down",
		}
	}

	driverStats := h.monitorService.DriverStats()
	health.Checks["pipeline"] = CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"bytes_read":          driverStats.BytesRead,
			"frames_decoded":      driverStats.FramesDecoded,
			"measurement_frames":  driverStats.MeasurementFrames,
			"unrecognized_frames": driverStats.UnrecognizedFrames,
			"decode_errors":       driverStats.DecodeErrors,
		},
	}

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck for Kubernetes readiness probe
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	// Simple liveness check - service is alive if it can respond
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
