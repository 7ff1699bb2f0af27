// internal/processing/velocity.go
package processing

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

const defaultVelocityWindow = 5

type velocitySample struct {
	timestamp time.Time
	distanceM float64
}

// VelocityEstimator derives axial velocity from consecutive distance
// samples. It keeps a sliding window of the most recent samples; a
// partially filled window yields the instantaneous velocity between the
// two newest samples, a full window yields the least-squares slope over
// the whole window, which smooths single-sample jitter.
//
// Not safe for concurrent use; the pipeline calls it from one goroutine.
type VelocityEstimator struct {
	window   []velocitySample
	capacity int
}

// NewVelocityEstimator creates an estimator with the given window
// capacity. Values below 2 fall back to the default.
func NewVelocityEstimator(windowSize int) *VelocityEstimator {
	if windowSize < 2 {
		windowSize = defaultVelocityWindow
	}
	return &VelocityEstimator{
		window:   make([]velocitySample, 0, windowSize),
		capacity: windowSize,
	}
}

// AddSample appends a (timestamp, distance) pair and returns the current
// velocity estimate in meters per second. ok is false while no estimate
// is possible: fewer than two samples, or a non-positive time step.
// Positive velocity means increasing distance (advancing), negative
// means retracting.
func (e *VelocityEstimator) AddSample(timestamp time.Time, distanceM float64) (velocity float64, ok bool) {
	if len(e.window) == e.capacity {
		copy(e.window, e.window[1:])
		e.window = e.window[:e.capacity-1]
	}
	e.window = append(e.window, velocitySample{timestamp: timestamp, distanceM: distanceM})

	if len(e.window) < 2 {
		return 0, false
	}
	if len(e.window) < e.capacity {
		return e.instantaneous()
	}
	return e.regression()
}

// Reset discards all buffered samples.
func (e *VelocityEstimator) Reset() {
	e.window = e.window[:0]
}

// instantaneous computes the velocity between the two newest samples.
func (e *VelocityEstimator) instantaneous() (float64, bool) {
	newest := e.window[len(e.window)-1]
	previous := e.window[len(e.window)-2]

	dt := newest.timestamp.Sub(previous.timestamp).Seconds()
	if dt <= 0 {
		return 0, false
	}
	return (newest.distanceM - previous.distanceM) / dt, true
}

// regression fits a least-squares line over the full window. Timestamps
// are shifted to the window origin so the fit stays numerically stable
// far from the epoch.
func (e *VelocityEstimator) regression() (float64, bool) {
	t0 := e.window[0].timestamp

	xs := make([]float64, len(e.window))
	ys := make([]float64, len(e.window))
	allSameTime := true
	for i, s := range e.window {
		xs[i] = s.timestamp.Sub(t0).Seconds()
		ys[i] = s.distanceM
		if xs[i] != xs[0] {
			allSameTime = false
		}
	}

	// Zero time variance makes the slope undefined; fall back to the
	// instantaneous estimate.
	if allSameTime {
		return e.instantaneous()
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope, true
}
