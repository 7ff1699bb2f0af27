// internal/export/csv_test.go
package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drill-monitor/internal/model"
)

func TestWriteCSV(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	velocity := 0.0125

	measurements := []model.Measurement{
		{
			Timestamp:     t0,
			DistanceMM:    1000,
			SignalQuality: 80,
			State:         model.DriveStateStopped,
		},
		{
			Timestamp:     t0.Add(time.Second),
			DistanceMM:    1012,
			SignalQuality: 82,
			VelocityMS:    &velocity,
			State:         model.DriveStateDrilling,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, measurements))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"timestamp", "distance_mm", "signal_quality", "velocity_ms", "state"}, records[0])

	// First sample had no velocity estimate: the field is empty, not 0.
	assert.Equal(t, []string{"2026-08-01T12:00:00.000Z", "1000", "80", "", "STOPPED"}, records[1])
	assert.Equal(t, []string{"2026-08-01T12:00:01.000Z", "1012", "82", "0.012500", "DRILLING"}, records[2])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "header only")
}
