// internal/model/measurement.go
package model

import (
	"time"
)

// ConnectionType represents the transport used to reach the sensor
type ConnectionType string

const (
	ConnectionTypeSerial    ConnectionType = "SERIAL"
	ConnectionTypeBluetooth ConnectionType = "BLUETOOTH"
)

// IsValid checks if the connection type is supported
func (ct ConnectionType) IsValid() bool {
	return ct == ConnectionTypeSerial || ct == ConnectionTypeBluetooth
}

// MeasureSpeed selects the sensor's measurement speed mode
type MeasureSpeed string

const (
	MeasureSpeedAuto MeasureSpeed = "AUTO"
	MeasureSpeedLow  MeasureSpeed = "LOW"
	MeasureSpeedHigh MeasureSpeed = "HIGH"
)

// IsValid checks if the measure speed is supported
func (ms MeasureSpeed) IsValid() bool {
	return ms == MeasureSpeedAuto || ms == MeasureSpeedLow || ms == MeasureSpeedHigh
}

// DriveState represents the detected operational state of the drill
type DriveState string

const (
	DriveStateDrilling   DriveState = "DRILLING"
	DriveStateStopped    DriveState = "STOPPED"
	DriveStateRetracting DriveState = "RETRACTING"
)

// Measurement is one processed distance sample emitted by the pipeline.
// It is immutable once built; consumers receive copies over channels.
type Measurement struct {
	Timestamp     time.Time  `json:"timestamp"`
	DistanceMM    uint32     `json:"distance_mm"`
	SignalQuality int        `json:"signal_quality"` // 0..100
	VelocityMS    *float64   `json:"velocity_ms,omitempty"`
	State         DriveState `json:"state,omitempty"`
}

// DistanceM returns the measured distance in meters
func (m *Measurement) DistanceM() float64 {
	return float64(m.DistanceMM) / 1000.0
}

// PortInfo describes a candidate serial port for the sensor
type PortInfo struct {
	Name string `json:"name"`
}

// DeviceInfo caches the identity read-outs of the connected sensor
type DeviceInfo struct {
	HardwareVersion string  `json:"hardware_version"`
	SoftwareVersion string  `json:"software_version"`
	SerialNumber    string  `json:"serial_number"`
	InputVoltage    float64 `json:"input_voltage"`
	DeviceStatus    string  `json:"device_status"`
}

// SessionStats summarizes a measurement session
type SessionStats struct {
	TotalSamples      int64      `json:"total_samples"`
	CurrentDistanceMM float64    `json:"current_distance_mm"`
	MinDistanceMM     float64    `json:"min_distance_mm"`
	MaxDistanceMM     float64    `json:"max_distance_mm"`
	AvgDistanceMM     float64    `json:"avg_distance_mm"`
	CurrentVelocityMS float64    `json:"current_velocity_ms"`
	CurrentQuality    int        `json:"current_quality"`
	MeasurementRate   float64    `json:"measurement_rate_hz"`
	State             DriveState `json:"state"`
	DrillingSeconds   float64    `json:"drilling_seconds"`
	StoppedSeconds    float64    `json:"stopped_seconds"`
	EfficiencyPercent float64    `json:"efficiency_percent"`
	LastUpdate        time.Time  `json:"last_update"`
}
