// internal/handler/sensor_handler.go
package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"drill-monitor/internal/model"
	"drill-monitor/internal/service"
	"drill-monitor/internal/utils"
	"drill-monitor/pkg/driver"
)

// SensorHandler exposes the sensor control and query REST endpoints
type SensorHandler struct {
	monitorService *service.MonitorService
	logger         *utils.ServiceLogger
}

// NewSensorHandler creates a new sensor handler
func NewSensorHandler(monitorService *service.MonitorService, logger *zap.Logger) *SensorHandler {
	return &SensorHandler{
		monitorService: monitorService,
		logger:         utils.NewServiceLogger(logger, "sensor-handler"),
	}
}

// LaserRequest controls the pointing laser
type LaserRequest struct {
	On bool `json:"on"`
}

// MeasureRequest selects the measurement speed mode
type MeasureRequest struct {
	Speed string `json:"speed"` // AUTO, LOW, HIGH; empty means AUTO
}

// RegisterRoutes registers sensor routes
func (h *SensorHandler) RegisterRoutes(router *gin.RouterGroup) {
	sensor := router.Group("/sensor")
	{
		sensor.POST("/connect", h.Connect)
		sensor.POST("/disconnect", h.Disconnect)
		sensor.GET("/status", h.Status)
		sensor.POST("/laser", h.Laser)
		sensor.POST("/measure", h.SingleMeasure)
		sensor.POST("/measure/continuous", h.StartContinuous)
		sensor.DELETE("/measure/continuous", h.StopContinuous)
		sensor.POST("/measure/last", h.ReadLastMeasurement)
		sensor.GET("/info", h.DeviceInfo)
		sensor.POST("/info/refresh", h.RefreshDeviceInfo)
	}

	measurements := router.Group("/measurements")
	{
		measurements.GET("", h.Measurements)
		measurements.GET("/stats", h.Stats)
		measurements.GET("/export", h.ExportCSV)
	}

	session := router.Group("/session")
	{
		session.POST("/reset", h.ResetSession)
	}

	router.GET("/ports", h.ListPorts)
}

// Connect opens the sensor link
func (h *SensorHandler) Connect(c *gin.Context) {
	if err := h.monitorService.Connect(c.Request.Context()); err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Failed to connect sensor", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Sensor connected", gin.H{
		"session_id": h.monitorService.SessionID(),
	})
}

// Disconnect closes the sensor link
func (h *SensorHandler) Disconnect(c *gin.Context) {
	if err := h.monitorService.Disconnect(c.Request.Context()); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to disconnect sensor", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Sensor disconnected", nil)
}

// Status reports the link and pipeline state
func (h *SensorHandler) Status(c *gin.Context) {
	status := driver.ConnectionStatusDisconnected
	if h.monitorService.IsConnected() {
		status = driver.ConnectionStatusConnected
	}

	utils.SuccessResponse(c, http.StatusOK, "Sensor status", gin.H{
		"status":          status,
		"connected":       h.monitorService.IsConnected(),
		"continuous_mode": h.monitorService.IsContinuousMode(),
		"session_id":      h.monitorService.SessionID(),
		"driver":          h.monitorService.DriverStats(),
	})
}

// Laser turns the pointing laser on or off
func (h *SensorHandler) Laser(c *gin.Context) {
	var req LaserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.monitorService.SetLaser(c.Request.Context(), req.On); err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Failed to control laser", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Laser command sent", gin.H{"on": req.On})
}

// SingleMeasure requests one measurement
func (h *SensorHandler) SingleMeasure(c *gin.Context) {
	speed, ok := h.bindSpeed(c)
	if !ok {
		return
	}

	if err := h.monitorService.SingleMeasure(c.Request.Context(), speed); err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Failed to request measurement", err)
		return
	}

	utils.SuccessResponse(c, http.StatusAccepted, "Measurement requested", gin.H{"speed": speed})
}

// StartContinuous puts the sensor into continuous measurement mode
func (h *SensorHandler) StartContinuous(c *gin.Context) {
	speed, ok := h.bindSpeed(c)
	if !ok {
		return
	}

	if err := h.monitorService.StartContinuous(c.Request.Context(), speed); err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Failed to start continuous mode", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Continuous mode started", gin.H{"speed": speed})
}

// ReadLastMeasurement re-reads the sensor's last measurement buffer
// without triggering a new measurement.
func (h *SensorHandler) ReadLastMeasurement(c *gin.Context) {
	if err := h.monitorService.ReadLastMeasurement(c.Request.Context()); err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Failed to read last measurement", err)
		return
	}

	utils.SuccessResponse(c, http.StatusAccepted, "Last measurement read requested", nil)
}

// StopContinuous exits continuous measurement mode
func (h *SensorHandler) StopContinuous(c *gin.Context) {
	if err := h.monitorService.StopContinuous(c.Request.Context()); err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Failed to stop continuous mode", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Continuous mode stopped", nil)
}

func (h *SensorHandler) bindSpeed(c *gin.Context) (model.MeasureSpeed, bool) {
	var req MeasureRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return "", false
	}

	if req.Speed == "" {
		return model.MeasureSpeedAuto, true
	}

	speed := model.MeasureSpeed(req.Speed)
	if !speed.IsValid() {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid measure speed",
			fmt.Errorf("speed must be AUTO, LOW or HIGH, got %q", req.Speed))
		return "", false
	}
	return speed, true
}

// DeviceInfo returns the cached sensor identity
func (h *SensorHandler) DeviceInfo(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Device info", h.monitorService.DeviceInfo())
}

// RefreshDeviceInfo re-reads versions, serial, voltage and status
func (h *SensorHandler) RefreshDeviceInfo(c *gin.Context) {
	if err := h.monitorService.RefreshDeviceInfo(c.Request.Context()); err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Failed to refresh device info", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device info refresh requested", nil)
}

// Measurements returns recent measurements, oldest first
func (h *SensorHandler) Measurements(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid limit parameter", err)
			return
		}
		limit = parsed
	}

	measurements := h.monitorService.Recent(limit)
	utils.SuccessResponse(c, http.StatusOK, "Recent measurements", gin.H{
		"count":        len(measurements),
		"measurements": measurements,
	})
}

// Stats returns session statistics
func (h *SensorHandler) Stats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Session statistics", gin.H{
		"session_id": h.monitorService.SessionID(),
		"stats":      h.monitorService.Stats(),
	})
}

// ExportCSV streams the session's measurements as a CSV download
func (h *SensorHandler) ExportCSV(c *gin.Context) {
	filename := fmt.Sprintf("measurements-%s.csv", time.Now().Format("20060102-150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.monitorService.ExportCSV(c.Writer); err != nil {
		h.logger.Error("CSV export failed", zap.Error(err))
	}
}

// ResetSession clears statistics and starts a new session
func (h *SensorHandler) ResetSession(c *gin.Context) {
	sessionID := h.monitorService.ResetSession()
	utils.SuccessResponse(c, http.StatusOK, "Session reset", gin.H{"session_id": sessionID})
}

// ListPorts enumerates candidate serial ports
func (h *SensorHandler) ListPorts(c *gin.Context) {
	ports, err := h.monitorService.ListPorts()
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list serial ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Serial ports", gin.H{
		"count": len(ports),
		"ports": ports,
	})
}
