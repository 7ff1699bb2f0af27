// internal/processing/state.go
package processing

import (
	"time"

	"drill-monitor/internal/model"
)

// Default hysteresis parameters for the state detector.
const (
	DefaultVelocityThreshold = 0.005 // m/s
	DefaultMinDurationBelow  = 3 * time.Second
	DefaultMinDurationAbove  = 1 * time.Second
)

// StateDetectorConfig tunes the hysteresis of the state machine.
type StateDetectorConfig struct {
	// VelocityThreshold separates "moving" from "stopped", in m/s of
	// absolute velocity.
	VelocityThreshold float64

	// MinDurationBelow is how long |v| must stay below the threshold
	// before the state becomes Stopped.
	MinDurationBelow time.Duration

	// MinDurationAbove is how long |v| must stay above the threshold
	// before the state becomes Drilling or Retracting.
	MinDurationAbove time.Duration
}

// StateDetector classifies the drill's motion into Drilling, Stopped and
// Retracting with hysteresis: a candidate state must persist for a
// minimum duration before the detector commits to it, so single noisy
// samples cannot flip the state.
//
// It also accounts wall-clock time per state for the efficiency figure.
// Retracting counts as stopped time: the bit is not advancing.
//
// Not safe for concurrent use; the pipeline calls it from one goroutine.
type StateDetector struct {
	config StateDetectorConfig

	state         model.DriveState
	lastTimestamp time.Time
	hasTimestamp  bool

	// Candidate streak start times. A streak begins at the first sample
	// satisfying its condition, so the interval leading into that sample
	// never counts toward it. At most one is set at a time; a confirmed
	// transition clears all three.
	belowSince     time.Time
	aboveFwdSince  time.Time
	aboveBackSince time.Time

	drillingDuration time.Duration
	stoppedDuration  time.Duration
}

// NewStateDetector creates a detector in the Stopped state. Zero config
// fields take the defaults.
func NewStateDetector(cfg StateDetectorConfig) *StateDetector {
	if cfg.VelocityThreshold <= 0 {
		cfg.VelocityThreshold = DefaultVelocityThreshold
	}
	if cfg.MinDurationBelow <= 0 {
		cfg.MinDurationBelow = DefaultMinDurationBelow
	}
	if cfg.MinDurationAbove <= 0 {
		cfg.MinDurationAbove = DefaultMinDurationAbove
	}
	return &StateDetector{
		config: cfg,
		state:  model.DriveStateStopped,
	}
}

// State returns the current committed state.
func (d *StateDetector) State() model.DriveState {
	return d.state
}

// Update feeds one velocity observation and returns the committed state
// after applying hysteresis. A streak is measured from the first sample
// satisfying its condition, so the gap before that sample never counts.
// Out-of-order timestamps contribute zero elapsed time rather than
// rewinding the accumulators.
func (d *StateDetector) Update(timestamp time.Time, velocityMS float64) model.DriveState {
	var dt time.Duration
	if d.hasTimestamp {
		dt = timestamp.Sub(d.lastTimestamp)
		if dt < 0 {
			dt = 0
		}
	}
	d.lastTimestamp = timestamp
	d.hasTimestamp = true

	// Time is attributed to the state that was in effect while it
	// elapsed, before any transition below.
	d.accountDuration(dt)

	abs := velocityMS
	if abs < 0 {
		abs = -abs
	}

	if abs < d.config.VelocityThreshold {
		d.aboveFwdSince = time.Time{}
		d.aboveBackSince = time.Time{}
		if d.state != model.DriveStateStopped {
			if d.belowSince.IsZero() {
				d.belowSince = timestamp
			}
			if timestamp.Sub(d.belowSince) >= d.config.MinDurationBelow {
				d.transition(model.DriveStateStopped)
			}
		} else {
			d.belowSince = time.Time{}
		}
		return d.state
	}

	d.belowSince = time.Time{}
	if velocityMS > 0 {
		d.aboveBackSince = time.Time{}
		if d.state != model.DriveStateDrilling {
			if d.aboveFwdSince.IsZero() {
				d.aboveFwdSince = timestamp
			}
			if timestamp.Sub(d.aboveFwdSince) >= d.config.MinDurationAbove {
				d.transition(model.DriveStateDrilling)
			}
		} else {
			d.aboveFwdSince = time.Time{}
		}
	} else {
		d.aboveFwdSince = time.Time{}
		if d.state != model.DriveStateRetracting {
			if d.aboveBackSince.IsZero() {
				d.aboveBackSince = timestamp
			}
			if timestamp.Sub(d.aboveBackSince) >= d.config.MinDurationAbove {
				d.transition(model.DriveStateRetracting)
			}
		} else {
			d.aboveBackSince = time.Time{}
		}
	}
	return d.state
}

func (d *StateDetector) transition(next model.DriveState) {
	d.state = next
	d.belowSince = time.Time{}
	d.aboveFwdSince = time.Time{}
	d.aboveBackSince = time.Time{}
}

func (d *StateDetector) accountDuration(dt time.Duration) {
	switch d.state {
	case model.DriveStateDrilling:
		d.drillingDuration += dt
	case model.DriveStateStopped, model.DriveStateRetracting:
		d.stoppedDuration += dt
	}
}

// DrillingDuration returns accumulated time spent drilling.
func (d *StateDetector) DrillingDuration() time.Duration {
	return d.drillingDuration
}

// StoppedDuration returns accumulated time spent stopped or retracting.
func (d *StateDetector) StoppedDuration() time.Duration {
	return d.stoppedDuration
}

// EfficiencyPercent returns drilling time as a percentage of total
// accounted time, or 0 when nothing has been accounted yet.
func (d *StateDetector) EfficiencyPercent() float64 {
	total := d.drillingDuration + d.stoppedDuration
	if total == 0 {
		return 0
	}
	return float64(d.drillingDuration) / float64(total) * 100.0
}

// Reset returns the detector to its initial Stopped state and clears all
// accumulators.
func (d *StateDetector) Reset() {
	d.state = model.DriveStateStopped
	d.hasTimestamp = false
	d.lastTimestamp = time.Time{}
	d.belowSince = time.Time{}
	d.aboveFwdSince = time.Time{}
	d.aboveBackSince = time.Time{}
	d.drillingDuration = 0
	d.stoppedDuration = 0
}
