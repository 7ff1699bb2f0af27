// internal/processing/velocity_test.go
package processing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVelocityFirstSampleHasNoEstimate(t *testing.T) {
	e := NewVelocityEstimator(5)

	_, ok := e.AddSample(time.Now(), 1.0)
	assert.False(t, ok)
}

func TestVelocityInstantaneous(t *testing.T) {
	e := NewVelocityEstimator(5)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	_, ok := e.AddSample(t0, 0.0)
	require.False(t, ok)

	v, ok := e.AddSample(t0.Add(time.Second), 0.010)
	require.True(t, ok)
	assert.InDelta(t, 0.010, v, 1e-9)
}

func TestVelocityNegativeWhenRetracting(t *testing.T) {
	e := NewVelocityEstimator(5)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	e.AddSample(t0, 2.0)
	v, ok := e.AddSample(t0.Add(500*time.Millisecond), 1.99)
	require.True(t, ok)
	assert.InDelta(t, -0.020, v, 1e-9)
}

func TestVelocityZeroTimeStepHasNoEstimate(t *testing.T) {
	e := NewVelocityEstimator(5)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	e.AddSample(t0, 0.0)
	_, ok := e.AddSample(t0, 0.010)
	assert.False(t, ok)
}

func TestVelocityRegressionOverFullWindow(t *testing.T) {
	e := NewVelocityEstimator(5)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Perfectly linear motion at 0.01 m/s; the least-squares slope must
	// recover it exactly.
	for i := 0; i < 5; i++ {
		e.AddSample(t0.Add(time.Duration(i)*time.Second), float64(i)*0.01)
	}

	v, ok := e.AddSample(t0.Add(5*time.Second), 0.05)
	require.True(t, ok)
	assert.InDelta(t, 0.01, v, 1e-9)
}

func TestVelocityRegressionSmoothsJitter(t *testing.T) {
	e := NewVelocityEstimator(5)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Linear motion with one noisy sample in the middle. The fitted
	// slope stays near the true velocity where a two-point estimate
	// would swing wildly.
	distances := []float64{0.00, 0.01, 0.025, 0.03, 0.04}
	var v float64
	var ok bool
	for i, d := range distances {
		v, ok = e.AddSample(t0.Add(time.Duration(i)*time.Second), d)
	}

	require.True(t, ok)
	assert.InDelta(t, 0.01, v, 0.005)
}

func TestVelocityWindowSlides(t *testing.T) {
	e := NewVelocityEstimator(3)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Old stationary samples must fall out of the window once motion
	// starts; after enough new samples the estimate reflects only the
	// recent slope.
	e.AddSample(t0, 0.0)
	e.AddSample(t0.Add(1*time.Second), 0.0)
	e.AddSample(t0.Add(2*time.Second), 0.0)

	e.AddSample(t0.Add(3*time.Second), 0.02)
	e.AddSample(t0.Add(4*time.Second), 0.04)
	v, ok := e.AddSample(t0.Add(5*time.Second), 0.06)
	require.True(t, ok)
	assert.InDelta(t, 0.02, v, 1e-9)
}

func TestVelocityReset(t *testing.T) {
	e := NewVelocityEstimator(5)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	e.AddSample(t0, 0.0)
	e.AddSample(t0.Add(time.Second), 0.01)

	e.Reset()
	_, ok := e.AddSample(t0.Add(2*time.Second), 0.02)
	assert.False(t, ok, "first sample after reset must not yield an estimate")
}

func TestVelocityTinyWindowFallsBackToDefault(t *testing.T) {
	e := NewVelocityEstimator(1)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// With the default capacity the second sample is still a partial
	// window and yields the instantaneous estimate.
	e.AddSample(t0, 0.0)
	v, ok := e.AddSample(t0.Add(time.Second), 0.01)
	require.True(t, ok)
	assert.InDelta(t, 0.01, v, 1e-9)
}
