// internal/protocol/serial_connection_test.go
package protocol

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStatsTestConnection(t *testing.T) *SerialConnection {
	t.Helper()

	conn, ok := NewSerialConnection(&SerialConfig{
		Port:     "/dev/ttyUSB0",
		BaudRate: 115200,
		Timeout:  100 * time.Millisecond,
	}, zap.NewNop()).(*SerialConnection)
	require.True(t, ok)
	return conn
}

// The driver's reader goroutine updates read counters while the service
// goroutine writes commands; the counters must tolerate that.
func TestSerialConnectionStatsConcurrentUpdates(t *testing.T) {
	conn := newStatsTestConnection(t)

	const workers = 4
	const rounds = 250

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				conn.recordWrite(5, time.Millisecond)
				conn.recordRead(13)
				conn.recordError()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*rounds*2), conn.stats.OperationCount)
	assert.Equal(t, int64(workers*rounds), conn.stats.ErrorCount)
	assert.Equal(t, int64(workers*rounds*5), conn.stats.BytesWritten)
	assert.Equal(t, int64(workers*rounds*13), conn.stats.BytesRead)
	assert.False(t, conn.stats.LastActivity.IsZero())
}

func TestSerialConnectionAverageLatency(t *testing.T) {
	conn := newStatsTestConnection(t)

	conn.recordWrite(5, 10*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, conn.stats.AverageLatency)

	conn.recordWrite(5, 20*time.Millisecond)
	assert.Equal(t, 15*time.Millisecond, conn.stats.AverageLatency)
}
