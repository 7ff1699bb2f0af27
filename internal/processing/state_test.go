// internal/processing/state_test.go
package processing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drill-monitor/internal/model"
)

func newTestDetector() *StateDetector {
	return NewStateDetector(StateDetectorConfig{})
}

func TestStateInitialIsStopped(t *testing.T) {
	d := newTestDetector()
	assert.Equal(t, model.DriveStateStopped, d.State())
}

func TestStateStoppedToDrillingAfterMinDuration(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// The first above-threshold sample opens the streak at duration
	// zero, so it cannot commit on its own.
	assert.Equal(t, model.DriveStateStopped, d.Update(t0, 0.01))
	assert.Equal(t, model.DriveStateStopped, d.Update(t0.Add(500*time.Millisecond), 0.01))
	assert.Equal(t, model.DriveStateStopped, d.Update(t0.Add(900*time.Millisecond), 0.01))

	// Streak reaches exactly the minimum duration here.
	assert.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(1*time.Second), 0.01))
}

func TestStateDrillingToStoppedAfterMinDuration(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	d.Update(t0, 0.01)
	require.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(1*time.Second), 0.01))

	// Velocity collapses below the threshold at t0+2s; the streak is
	// measured from that sample, so the state holds until three full
	// seconds after it.
	assert.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(2*time.Second), 0.0))
	assert.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(3*time.Second), 0.0))
	assert.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(4900*time.Millisecond), 0.0))
	assert.Equal(t, model.DriveStateStopped, d.Update(t0.Add(5*time.Second), 0.0))
}

func TestStateRetractingOnSustainedNegativeVelocity(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	d.Update(t0, -0.02)
	assert.Equal(t, model.DriveStateStopped, d.Update(t0.Add(500*time.Millisecond), -0.02))
	assert.Equal(t, model.DriveStateRetracting, d.Update(t0.Add(1*time.Second), -0.02))
}

func TestStateNoisySpikeDoesNotFlip(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// A single above-threshold sample between below-threshold samples
	// must not move the detector out of Stopped.
	d.Update(t0, 0.0)
	d.Update(t0.Add(200*time.Millisecond), 0.05)
	state := d.Update(t0.Add(400*time.Millisecond), 0.0)
	assert.Equal(t, model.DriveStateStopped, state)
}

func TestStateDirectionChangeResetsStreak(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Forward streak is almost confirmed, then the sign flips at
	// t0+900ms. The backward streak starts there, so Retracting cannot
	// commit before a full second after the flip.
	d.Update(t0, 0.01)
	d.Update(t0.Add(500*time.Millisecond), 0.01)
	assert.Equal(t, model.DriveStateStopped, d.Update(t0.Add(900*time.Millisecond), -0.01))
	assert.Equal(t, model.DriveStateStopped, d.Update(t0.Add(1300*time.Millisecond), -0.01))
	assert.Equal(t, model.DriveStateStopped, d.Update(t0.Add(1800*time.Millisecond), -0.01))
	assert.Equal(t, model.DriveStateRetracting, d.Update(t0.Add(1900*time.Millisecond), -0.01))
}

func TestStateSparseSamplingStillNeedsMinDuration(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// A long quiet gap before the first above-threshold sample must not
	// count toward the streak, however large the gap.
	d.Update(t0, 0.0)
	assert.Equal(t, model.DriveStateStopped, d.Update(t0.Add(2*time.Second), 0.02))
	assert.Equal(t, model.DriveStateStopped, d.Update(t0.Add(2500*time.Millisecond), 0.02))
	assert.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(3*time.Second), 0.02))
}

func TestStateSparseReversalDoesNotFlipImmediately(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	d.Update(t0, 0.02)
	require.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(1*time.Second), 0.02))

	// A single negative sample after a two-second gap opens the
	// backward streak; the flip commits a full second later.
	assert.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(3*time.Second), -0.02))
	assert.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(3900*time.Millisecond), -0.02))
	assert.Equal(t, model.DriveStateRetracting, d.Update(t0.Add(4*time.Second), -0.02))
}

func TestStateDurationAccounting(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// One second elapses while Stopped, then the transition to Drilling
	// commits and three more seconds accrue there.
	d.Update(t0, 0.01)
	require.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(1*time.Second), 0.01))
	d.Update(t0.Add(2*time.Second), 0.01)
	d.Update(t0.Add(3*time.Second), 0.01)
	d.Update(t0.Add(4*time.Second), 0.01)

	assert.Equal(t, 3*time.Second, d.DrillingDuration())
	assert.Equal(t, 1*time.Second, d.StoppedDuration())
	assert.InDelta(t, 75.0, d.EfficiencyPercent(), 1e-9)
}

func TestStateRetractingCountsAsStopped(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	d.Update(t0, -0.02)
	require.Equal(t, model.DriveStateRetracting, d.Update(t0.Add(1*time.Second), -0.02))
	d.Update(t0.Add(2*time.Second), -0.02)

	assert.Equal(t, time.Duration(0), d.DrillingDuration())
	assert.Equal(t, 2*time.Second, d.StoppedDuration())
	assert.InDelta(t, 0.0, d.EfficiencyPercent(), 1e-9)
}

func TestStateOutOfOrderTimestampContributesNothing(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	d.Update(t0, 0.0)
	d.Update(t0.Add(1*time.Second), 0.0)
	// A timestamp in the past must not rewind the accumulators.
	d.Update(t0.Add(500*time.Millisecond), 0.0)

	assert.Equal(t, 1*time.Second, d.StoppedDuration())
}

func TestStateEfficiencyZeroBeforeAnyTime(t *testing.T) {
	d := newTestDetector()
	assert.Zero(t, d.EfficiencyPercent())
}

func TestStateReset(t *testing.T) {
	d := newTestDetector()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	d.Update(t0, 0.01)
	require.Equal(t, model.DriveStateDrilling, d.Update(t0.Add(1*time.Second), 0.01))

	d.Reset()
	assert.Equal(t, model.DriveStateStopped, d.State())
	assert.Zero(t, d.DrillingDuration())
	assert.Zero(t, d.StoppedDuration())
	assert.Zero(t, d.EfficiencyPercent())
}

func TestStateConfigDefaults(t *testing.T) {
	d := NewStateDetector(StateDetectorConfig{})
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// 0.004 m/s is below the default 0.005 m/s threshold: no amount of
	// it may start drilling.
	d.Update(t0, 0.004)
	d.Update(t0.Add(5*time.Second), 0.004)
	assert.Equal(t, model.DriveStateStopped, d.State())
}
