// internal/driver/meskernel/driver_test.go
package meskernel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"drill-monitor/internal/driver/meskernel"
	"drill-monitor/internal/model"
	"drill-monitor/internal/protocol"
	pkgdriver "drill-monitor/pkg/driver"
)

// The concrete driver must satisfy the public driver contract.
var _ pkgdriver.SensorDriver = (*meskernel.Driver)(nil)

type measurementEvent struct {
	distanceMM    uint32
	signalQuality int
}

// recordingHandler collects driver events on buffered channels so tests
// can wait for them without blocking the reader goroutine.
type recordingHandler struct {
	measurements chan measurementEvent
	responses    chan meskernel.ParsedResponse
	lost         chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		measurements: make(chan measurementEvent, 16),
		responses:    make(chan meskernel.ParsedResponse, 16),
		lost:         make(chan error, 1),
	}
}

func (h *recordingHandler) OnMeasurement(timestamp time.Time, distanceMM uint32, signalQuality int) {
	h.measurements <- measurementEvent{distanceMM: distanceMM, signalQuality: signalQuality}
}

func (h *recordingHandler) OnResponse(resp meskernel.ParsedResponse) {
	h.responses <- resp
}

func (h *recordingHandler) OnConnectionLost(err error) {
	h.lost <- err
}

func newTestDriver(t *testing.T) (*meskernel.Driver, *protocol.MockConnection, *recordingHandler) {
	t.Helper()

	mock := protocol.NewMockConnection()
	cfg := &meskernel.Config{
		ConnectionType: model.ConnectionTypeSerial,
		ReadTimeout:    20 * time.Millisecond,
		ReadChunkSize:  64,
	}

	d, err := meskernel.NewDriverWithProtocol(cfg, mock, zap.NewNop())
	require.NoError(t, err)

	handler := newRecordingHandler()
	d.SetEventHandler(handler)
	return d, mock, handler
}

func TestDriverRejectsInvalidConfig(t *testing.T) {
	_, err := meskernel.NewDriver(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = meskernel.NewDriver(&meskernel.Config{ConnectionType: "TCP"}, zap.NewNop())
	assert.Error(t, err)
}

func TestDriverExecuteRequiresConnection(t *testing.T) {
	d, _, _ := newTestDriver(t)

	err := d.Execute(context.Background(), meskernel.CmdLaserOn)
	assert.ErrorIs(t, err, meskernel.ErrNotConnected)
}

func TestDriverConnectTwiceFails(t *testing.T) {
	d, _, _ := newTestDriver(t)
	defer d.Close()

	require.NoError(t, d.Connect(context.Background()))
	assert.ErrorIs(t, d.Connect(context.Background()), meskernel.ErrAlreadyConnected)
}

func TestDriverExecuteWritesCommandBytes(t *testing.T) {
	d, mock, _ := newTestDriver(t)
	defer d.Close()

	require.NoError(t, d.Connect(context.Background()))
	require.NoError(t, d.Execute(context.Background(), meskernel.CmdLaserOn))
	require.NoError(t, d.Execute(context.Background(), meskernel.CmdExitContinuousMode))

	written := mock.Written()
	require.Len(t, written, 2)
	assert.Equal(t, meskernel.CmdLaserOn.Bytes(), written[0])
	assert.Equal(t, []byte{'X'}, written[1])

	assert.EqualValues(t, 2, d.Stats().CommandsSent)
}

func TestDriverDeliversMeasurement(t *testing.T) {
	d, mock, handler := newTestDriver(t)
	defer d.Close()

	require.NoError(t, d.Connect(context.Background()))
	require.NoError(t, d.Execute(context.Background(), meskernel.CmdSingleAutoMeasure))

	// Distance 1000 mm, quality 50, split across two deliveries.
	frame := []byte{0xAA, 0x00, 0x00, 0x22, 0x00, 0x03, 0x00, 0x00, 0x03, 0xE8, 0x00, 0x32, 0x5A}
	mock.QueueRead(frame[:6])
	mock.QueueRead(frame[6:])

	select {
	case m := <-handler.measurements:
		assert.Equal(t, uint32(1000), m.distanceMM)
		assert.Equal(t, 50, m.signalQuality)
	case <-time.After(2 * time.Second):
		t.Fatal("measurement event not delivered")
	}

	stats := d.Stats()
	assert.EqualValues(t, 13, stats.BytesRead)
	assert.EqualValues(t, 1, stats.FramesDecoded)
	assert.EqualValues(t, 1, stats.MeasurementFrames)
}

func TestDriverDeliversStatusResponse(t *testing.T) {
	d, mock, handler := newTestDriver(t)
	defer d.Close()

	require.NoError(t, d.Connect(context.Background()))
	require.NoError(t, d.Execute(context.Background(), meskernel.CmdReadStatus))

	mock.QueueRead([]byte{0xAA, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00})

	select {
	case resp := <-handler.responses:
		assert.Equal(t, meskernel.ResponseStatus, resp.Type)
		assert.Equal(t, "OK - Normal operation", resp.StatusText)
	case <-time.After(2 * time.Second):
		t.Fatal("status response not delivered")
	}
}

func TestDriverContinuousModeTracking(t *testing.T) {
	d, _, _ := newTestDriver(t)
	defer d.Close()

	require.NoError(t, d.Connect(context.Background()))
	assert.False(t, d.IsContinuousMode())

	require.NoError(t, d.Execute(context.Background(), meskernel.CmdContinuousAutoMeasure))
	assert.True(t, d.IsContinuousMode())

	require.NoError(t, d.Execute(context.Background(), meskernel.CmdExitContinuousMode))
	assert.False(t, d.IsContinuousMode())
}

func TestDriverConnectionLostOnReadError(t *testing.T) {
	d, mock, handler := newTestDriver(t)
	defer d.Close()

	require.NoError(t, d.Connect(context.Background()))

	readErr := errors.New("transport gone")
	mock.FailReads(readErr)

	select {
	case err := <-handler.lost:
		assert.ErrorIs(t, err, readErr)
	case <-time.After(2 * time.Second):
		t.Fatal("connection lost event not delivered")
	}

	assert.False(t, d.IsConnected())
}

func TestDriverWriteFailureClearsNothingDownstream(t *testing.T) {
	d, mock, _ := newTestDriver(t)
	defer d.Close()

	require.NoError(t, d.Connect(context.Background()))

	mock.FailWrites(errors.New("port busy"))
	err := d.Execute(context.Background(), meskernel.CmdContinuousAutoMeasure)
	require.Error(t, err)

	// The failed command must not leave the driver believing it is
	// streaming.
	assert.False(t, d.IsContinuousMode())
	assert.EqualValues(t, 0, d.Stats().CommandsSent)
}

func TestDriverDisconnectIsIdempotent(t *testing.T) {
	d, _, _ := newTestDriver(t)

	require.NoError(t, d.Connect(context.Background()))
	require.NoError(t, d.Disconnect(context.Background()))
	assert.False(t, d.IsConnected())

	// A second disconnect is a no-op.
	assert.NoError(t, d.Disconnect(context.Background()))
}
