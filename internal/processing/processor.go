// internal/processing/processor.go
package processing

import (
	"fmt"
	"math"
	"sync"
	"time"

	"drill-monitor/internal/driver/meskernel"
	"drill-monitor/internal/model"
)

const defaultMaxSamples = 1000

// Config tunes the measurement processor and its sub-components.
type Config struct {
	VelocityWindowSize int           `json:"velocity_window_size"`
	VelocityThreshold  float64       `json:"velocity_threshold"`
	MinDurationBelow   time.Duration `json:"min_duration_below"`
	MinDurationAbove   time.Duration `json:"min_duration_above"`
	MaxSamples         int           `json:"max_samples"`
}

// DataProcessor turns raw measurement frames into enriched measurements
// carrying velocity and drive state, and maintains session statistics
// over a bounded ring of recent samples. The driver's reader goroutine
// writes, HTTP handlers read; all methods are safe for concurrent use.
type DataProcessor struct {
	mutex sync.RWMutex

	velocity *VelocityEstimator
	detector *StateDetector

	ring       []model.Measurement
	ringStart  int
	maxSamples int

	totalSamples int64
	sumDistance  float64
	minDistance  float64
	maxDistance  float64
	lastVelocity float64
	hasVelocity  bool
	lastQuality  int
	lastDistance float64
	lastUpdate   time.Time

	deviceInfo model.DeviceInfo
}

// NewDataProcessor creates a processor with a fresh session.
func NewDataProcessor(cfg Config) *DataProcessor {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = defaultMaxSamples
	}
	return &DataProcessor{
		velocity: NewVelocityEstimator(cfg.VelocityWindowSize),
		detector: NewStateDetector(StateDetectorConfig{
			VelocityThreshold: cfg.VelocityThreshold,
			MinDurationBelow:  cfg.MinDurationBelow,
			MinDurationAbove:  cfg.MinDurationAbove,
		}),
		ring:        make([]model.Measurement, 0, cfg.MaxSamples),
		maxSamples:  cfg.MaxSamples,
		minDistance: math.Inf(1),
		maxDistance: math.Inf(-1),
	}
}

// ProcessMeasurement enriches one raw sample with velocity and state and
// records it in the session. The returned measurement is what downstream
// consumers (websocket, MQTT, CSV) see.
func (p *DataProcessor) ProcessMeasurement(timestamp time.Time, distanceMM uint32, signalQuality int) model.Measurement {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	distanceM := float64(distanceMM) / 1000.0

	m := model.Measurement{
		Timestamp:     timestamp,
		DistanceMM:    distanceMM,
		SignalQuality: signalQuality,
	}

	if v, ok := p.velocity.AddSample(timestamp, distanceM); ok {
		velocity := v
		m.VelocityMS = &velocity
		p.lastVelocity = velocity
		p.hasVelocity = true
		m.State = p.detector.Update(timestamp, velocity)
	} else {
		// No estimate yet; the state machine keeps its current state and
		// does not see a velocity it could misinterpret as zero motion.
		m.State = p.detector.State()
	}

	p.appendSample(m)

	p.totalSamples++
	p.sumDistance += float64(distanceMM)
	p.minDistance = math.Min(p.minDistance, float64(distanceMM))
	p.maxDistance = math.Max(p.maxDistance, float64(distanceMM))
	p.lastDistance = float64(distanceMM)
	p.lastQuality = signalQuality
	p.lastUpdate = timestamp

	return m
}

// appendSample pushes onto the bounded ring, evicting the oldest sample
// once full.
func (p *DataProcessor) appendSample(m model.Measurement) {
	if len(p.ring) < p.maxSamples {
		p.ring = append(p.ring, m)
		return
	}
	p.ring[p.ringStart] = m
	p.ringStart = (p.ringStart + 1) % p.maxSamples
}

// Recent returns up to n most recent measurements, oldest first. n <= 0
// returns the whole ring.
func (p *DataProcessor) Recent(n int) []model.Measurement {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	total := len(p.ring)
	if n <= 0 || n > total {
		n = total
	}

	out := make([]model.Measurement, 0, n)
	for i := total - n; i < total; i++ {
		out = append(out, p.ring[(p.ringStart+i)%total])
	}
	return out
}

// Stats returns a snapshot of the session statistics.
func (p *DataProcessor) Stats() model.SessionStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	stats := model.SessionStats{
		TotalSamples:      p.totalSamples,
		CurrentQuality:    p.lastQuality,
		State:             p.detector.State(),
		DrillingSeconds:   p.detector.DrillingDuration().Seconds(),
		StoppedSeconds:    p.detector.StoppedDuration().Seconds(),
		EfficiencyPercent: p.detector.EfficiencyPercent(),
		LastUpdate:        p.lastUpdate,
	}

	if p.totalSamples > 0 {
		stats.CurrentDistanceMM = p.lastDistance
		stats.MinDistanceMM = p.minDistance
		stats.MaxDistanceMM = p.maxDistance
		stats.AvgDistanceMM = p.sumDistance / float64(p.totalSamples)
	}
	if p.hasVelocity {
		stats.CurrentVelocityMS = p.lastVelocity
	}
	stats.MeasurementRate = p.measurementRate()

	return stats
}

// measurementRate derives the sample rate from the ring's time span.
// Caller holds at least the read lock.
func (p *DataProcessor) measurementRate() float64 {
	total := len(p.ring)
	if total < 2 {
		return 0
	}
	oldest := p.ring[p.ringStart%total]
	newest := p.ring[(p.ringStart+total-1)%total]
	span := newest.Timestamp.Sub(oldest.Timestamp).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(total-1) / span
}

// State returns the committed drive state.
func (p *DataProcessor) State() model.DriveState {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.detector.State()
}

// ApplyResponse folds a decoded non-measurement response into the cached
// device info. Unknown and Error variants are ignored.
func (p *DataProcessor) ApplyResponse(resp meskernel.ParsedResponse) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	switch resp.Type {
	case meskernel.ResponseHardwareVersion:
		p.deviceInfo.HardwareVersion = fmt.Sprintf("%d.%d", resp.VersionMajor, resp.VersionMinor)
	case meskernel.ResponseSoftwareVersion:
		p.deviceInfo.SoftwareVersion = fmt.Sprintf("%d.%d", resp.VersionMajor, resp.VersionMinor)
	case meskernel.ResponseSerialNumber:
		p.deviceInfo.SerialNumber = resp.SerialNumber
	case meskernel.ResponseVoltage:
		p.deviceInfo.InputVoltage = resp.Voltage
	case meskernel.ResponseStatus:
		p.deviceInfo.DeviceStatus = resp.StatusText
	}
}

// DeviceInfo returns the cached device identity read-outs.
func (p *DataProcessor) DeviceInfo() model.DeviceInfo {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.deviceInfo
}

// Reset starts a new session: clears the ring, the statistics, the
// velocity window and the state machine. The device info cache survives,
// it describes the hardware rather than the session.
func (p *DataProcessor) Reset() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.velocity.Reset()
	p.detector.Reset()
	p.ring = p.ring[:0]
	p.ringStart = 0
	p.totalSamples = 0
	p.sumDistance = 0
	p.minDistance = math.Inf(1)
	p.maxDistance = math.Inf(-1)
	p.lastVelocity = 0
	p.hasVelocity = false
	p.lastQuality = 0
	p.lastDistance = 0
	p.lastUpdate = time.Time{}
}
