// internal/service/monitor_service.go
package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"drill-monitor/internal/config"
	"drill-monitor/internal/driver/meskernel"
	"drill-monitor/internal/export"
	"drill-monitor/internal/model"
	"drill-monitor/internal/mqtt"
	"drill-monitor/internal/processing"
	"drill-monitor/internal/protocol"
	"drill-monitor/internal/utils"
)

// MonitorService owns the sensor driver, the measurement processor and
// the MQTT publisher, and exposes the operations the HTTP and WebSocket
// surfaces call. Raw driver events enter through HandleMeasurement,
// HandleResponse and HandleConnectionLost, which run on the driver's
// reader goroutine and must stay fast.
type MonitorService struct {
	config    *config.Config
	driver    *meskernel.Driver
	processor *processing.DataProcessor
	publisher *mqtt.Publisher
	logger    *utils.ServiceLogger

	sessionMutex sync.RWMutex
	sessionID    string
}

// NewMonitorService wires the measurement pipeline from configuration.
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	driverCfg := &meskernel.Config{
		ConnectionType:   model.ConnectionType(cfg.Sensor.ConnectionType),
		ConnectionConfig: cfg.SensorConnectionConfig(),
		ReadTimeout:      cfg.Sensor.ReadTimeout,
		ReadChunkSize:    cfg.Sensor.ReadChunkSize,
	}

	sensorDriver, err := meskernel.NewDriver(driverCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sensor driver: %w", err)
	}

	processor := processing.NewDataProcessor(processing.Config{
		VelocityWindowSize: cfg.Processing.VelocityWindowSize,
		VelocityThreshold:  cfg.Processing.VelocityThreshold,
		MinDurationBelow:   cfg.Processing.MinDurationBelow,
		MinDurationAbove:   cfg.Processing.MinDurationAbove,
		MaxSamples:         cfg.Processing.MaxSamples,
	})

	svc := &MonitorService{
		config:    cfg,
		driver:    sensorDriver,
		processor: processor,
		logger:    utils.NewServiceLogger(logger, "monitor-service"),
		sessionID: uuid.New().String(),
	}

	if cfg.MQTT.Enabled {
		svc.publisher = mqtt.NewPublisher(&cfg.MQTT, logger)
	}

	return svc, nil
}

// SetEventHandler installs the driver event sink. Must be called before
// Connect.
func (s *MonitorService) SetEventHandler(handler meskernel.EventHandler) {
	s.driver.SetEventHandler(handler)
}

// SessionID identifies the current measurement session.
func (s *MonitorService) SessionID() string {
	s.sessionMutex.RLock()
	defer s.sessionMutex.RUnlock()
	return s.sessionID
}

// Connect opens the sensor transport and, when configured, the MQTT
// broker connection.
func (s *MonitorService) Connect(ctx context.Context) error {
	if err := s.driver.Connect(ctx); err != nil {
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.Connect(); err != nil {
			// The sensor link is up; measurements flow regardless of the
			// broker's availability.
			s.logger.Warn("MQTT connect failed, continuing without publishing", zap.Error(err))
		}
	}

	return nil
}

// Disconnect stops continuous mode if active and tears the link down.
func (s *MonitorService) Disconnect(ctx context.Context) error {
	if s.driver.IsConnected() && s.driver.IsContinuousMode() {
		if err := s.driver.Execute(ctx, meskernel.CmdExitContinuousMode); err != nil {
			s.logger.Warn("Failed to exit continuous mode before disconnect", zap.Error(err))
		}
	}

	if s.publisher != nil {
		s.publisher.Disconnect()
	}

	return s.driver.Disconnect(ctx)
}

// IsConnected reports the sensor link state.
func (s *MonitorService) IsConnected() bool {
	return s.driver.IsConnected()
}

// IsContinuousMode reports whether the sensor is streaming.
func (s *MonitorService) IsContinuousMode() bool {
	return s.driver.IsContinuousMode()
}

// SetLaser turns the pointing laser on or off.
func (s *MonitorService) SetLaser(ctx context.Context, on bool) error {
	cmd := meskernel.CmdLaserOff
	if on {
		cmd = meskernel.CmdLaserOn
	}
	return s.driver.Execute(ctx, cmd)
}

// SingleMeasure requests one measurement at the given speed.
func (s *MonitorService) SingleMeasure(ctx context.Context, speed model.MeasureSpeed) error {
	cmd, err := singleMeasureCommand(speed)
	if err != nil {
		return err
	}
	return s.driver.Execute(ctx, cmd)
}

// StartContinuous puts the sensor into continuous measurement mode.
func (s *MonitorService) StartContinuous(ctx context.Context, speed model.MeasureSpeed) error {
	cmd, err := continuousMeasureCommand(speed)
	if err != nil {
		return err
	}
	return s.driver.Execute(ctx, cmd)
}

// StopContinuous exits continuous measurement mode.
func (s *MonitorService) StopContinuous(ctx context.Context) error {
	return s.driver.Execute(ctx, meskernel.CmdExitContinuousMode)
}

func singleMeasureCommand(speed model.MeasureSpeed) (meskernel.Command, error) {
	switch speed {
	case model.MeasureSpeedAuto, "":
		return meskernel.CmdSingleAutoMeasure, nil
	case model.MeasureSpeedLow:
		return meskernel.CmdSingleLowSpeedMeasure, nil
	case model.MeasureSpeedHigh:
		return meskernel.CmdSingleHighSpeedMeasure, nil
	default:
		return 0, fmt.Errorf("invalid measure speed: %s", speed)
	}
}

func continuousMeasureCommand(speed model.MeasureSpeed) (meskernel.Command, error) {
	switch speed {
	case model.MeasureSpeedAuto, "":
		return meskernel.CmdContinuousAutoMeasure, nil
	case model.MeasureSpeedLow:
		return meskernel.CmdContinuousLowSpeedMeasure, nil
	case model.MeasureSpeedHigh:
		return meskernel.CmdContinuousHighSpeedMeasure, nil
	default:
		return 0, fmt.Errorf("invalid measure speed: %s", speed)
	}
}

// ReadStatus polls the sensor's status register.
func (s *MonitorService) ReadStatus(ctx context.Context) error {
	return s.driver.Execute(ctx, meskernel.CmdReadStatus)
}

// ReadLastMeasurement re-reads the sensor's last measurement buffer.
func (s *MonitorService) ReadLastMeasurement(ctx context.Context) error {
	return s.driver.Execute(ctx, meskernel.CmdReadLastMeasurement)
}

// RefreshDeviceInfo queries versions, serial number, voltage and status.
// The reads are spaced out because the protocol allows one outstanding
// command at a time; responses land in the device-info cache as they
// arrive.
func (s *MonitorService) RefreshDeviceInfo(ctx context.Context) error {
	reads := []meskernel.Command{
		meskernel.CmdReadHardwareVersion,
		meskernel.CmdReadSoftwareVersion,
		meskernel.CmdReadSerialNumber,
		meskernel.CmdReadInputVoltage,
		meskernel.CmdReadStatus,
	}

	for _, cmd := range reads {
		if err := s.driver.Execute(ctx, cmd); err != nil {
			return fmt.Errorf("device info read %s failed: %w", cmd, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(150 * time.Millisecond):
		}
	}
	return nil
}

// HandleMeasurement enriches a raw measurement frame and forwards it to
// MQTT when enabled. Called from the driver's reader goroutine.
func (s *MonitorService) HandleMeasurement(timestamp time.Time, distanceMM uint32, signalQuality int) model.Measurement {
	m := s.processor.ProcessMeasurement(timestamp, distanceMM, signalQuality)

	if s.publisher != nil {
		if err := s.publisher.PublishMeasurement(m); err != nil {
			s.logger.Debug("MQTT publish skipped", zap.Error(err))
		}
	}

	return m
}

// HandleResponse folds a non-measurement response into the device-info
// cache. Called from the driver's reader goroutine.
func (s *MonitorService) HandleResponse(resp meskernel.ParsedResponse) {
	s.processor.ApplyResponse(resp)
}

// HandleConnectionLost records an unexpected link loss. Called from the
// driver's reader goroutine.
func (s *MonitorService) HandleConnectionLost(err error) {
	s.logger.Error("Sensor connection lost", zap.Error(err))
}

// Stats returns session statistics.
func (s *MonitorService) Stats() model.SessionStats {
	return s.processor.Stats()
}

// DriverStats returns pipeline counters.
func (s *MonitorService) DriverStats() meskernel.DriverStats {
	return s.driver.Stats()
}

// DeviceInfo returns the cached sensor identity.
func (s *MonitorService) DeviceInfo() model.DeviceInfo {
	return s.processor.DeviceInfo()
}

// State returns the committed drive state.
func (s *MonitorService) State() model.DriveState {
	return s.processor.State()
}

// Recent returns up to n recent measurements, oldest first.
func (s *MonitorService) Recent(n int) []model.Measurement {
	return s.processor.Recent(n)
}

// ResetSession clears the session and issues a fresh session ID.
func (s *MonitorService) ResetSession() string {
	s.processor.Reset()

	s.sessionMutex.Lock()
	s.sessionID = uuid.New().String()
	id := s.sessionID
	s.sessionMutex.Unlock()

	s.logger.Info("Session reset", zap.String("session_id", id))
	return id
}

// ExportCSV writes the session's measurements as CSV.
func (s *MonitorService) ExportCSV(w io.Writer) error {
	return export.WriteCSV(w, s.processor.Recent(0))
}

// ListPorts enumerates serial ports visible to the OS.
func (s *MonitorService) ListPorts() ([]model.PortInfo, error) {
	return protocol.ListSerialPorts()
}

// Close releases driver resources.
func (s *MonitorService) Close() error {
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	return s.driver.Close()
}
