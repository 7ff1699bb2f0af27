// internal/export/csv.go
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"drill-monitor/internal/model"
)

var csvHeader = []string{
	"timestamp",
	"distance_mm",
	"signal_quality",
	"velocity_ms",
	"state",
}

// WriteCSV renders measurements as CSV, oldest first. Velocity is empty
// while no estimate existed for a sample.
func WriteCSV(w io.Writer, measurements []model.Measurement) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, m := range measurements {
		velocity := ""
		if m.VelocityMS != nil {
			velocity = strconv.FormatFloat(*m.VelocityMS, 'f', 6, 64)
		}

		record := []string{
			m.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			strconv.FormatUint(uint64(m.DistanceMM), 10),
			strconv.Itoa(m.SignalQuality),
			velocity,
			string(m.State),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
