// internal/driver/meskernel/driver.go
package meskernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"drill-monitor/internal/model"
	"drill-monitor/internal/protocol"
	"drill-monitor/internal/utils"
)

// Sentinel errors for the driver's connection lifecycle.
var (
	ErrNotConnected     = errors.New("sensor not connected")
	ErrAlreadyConnected = errors.New("sensor already connected")
)

const (
	defaultReadTimeout   = 200 * time.Millisecond
	defaultReadChunkSize = 256
	readerJoinTimeout    = 2 * time.Second
)

// EventHandler receives driver events. Callbacks run on the driver's
// reader goroutine and must not block; hand off to channels for any
// slow work.
type EventHandler interface {
	// OnMeasurement is called for every decoded measurement frame,
	// solicited or continuous.
	OnMeasurement(timestamp time.Time, distanceMM uint32, signalQuality int)

	// OnResponse is called for every decoded non-measurement response,
	// including the Unknown and Error variants.
	OnResponse(resp ParsedResponse)

	// OnConnectionLost is called once when a transport error kills the
	// reader goroutine. The driver does not reconnect on its own.
	OnConnectionLost(err error)
}

// DriverStats contains pipeline counters, cumulative since Connect.
type DriverStats struct {
	BytesRead          int64     `json:"bytes_read"`
	FramesDecoded      int64     `json:"frames_decoded"`
	MeasurementFrames  int64     `json:"measurement_frames"`
	UnrecognizedFrames int64     `json:"unrecognized_frames"`
	DecodeErrors       int64     `json:"decode_errors"`
	CommandsSent       int64     `json:"commands_sent"`
	LastFrameAt        time.Time `json:"last_frame_at"`
	Connected          bool      `json:"connected"`
}

// Config holds the transport parameters for a sensor driver instance.
type Config struct {
	ConnectionType   model.ConnectionType   `json:"connection_type"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
	ReadTimeout      time.Duration          `json:"read_timeout"`
	ReadChunkSize    int                    `json:"read_chunk_size"`
}

// Driver is the measurement pipeline for a Meskernel LDJ sensor. It owns
// the transport, the frame synchronizer and the response decoder, and
// runs a single reader goroutine that turns transport bytes into events.
type Driver struct {
	config   *Config
	protocol protocol.DeviceProtocol
	injected protocol.DeviceProtocol
	logger   *utils.SensorLogger

	// eventHandler has its own lock so the reader goroutine can look it
	// up while Disconnect holds the main mutex waiting for the join.
	handlerMutex sync.RWMutex
	eventHandler EventHandler

	mutex          sync.RWMutex
	isConnected    bool
	continuousMode bool

	// lastCmd is the response context: the most recent command that
	// expects a reply. It is consumed by the first decode attempt after
	// dispatch so a garbled reply cannot poison later frames.
	cmdMutex sync.Mutex
	lastCmd  *Command

	statsMutex sync.Mutex
	stats      DriverStats

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDriver creates a sensor driver. The transport is not opened until
// Connect.
func NewDriver(cfg *Config, logger *zap.Logger) (*Driver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("driver config is required")
	}
	if !cfg.ConnectionType.IsValid() {
		return nil, fmt.Errorf("unsupported connection type: %s", cfg.ConnectionType)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.ReadChunkSize <= 0 {
		cfg.ReadChunkSize = defaultReadChunkSize
	}

	return &Driver{
		config: cfg,
		logger: utils.NewSensorLogger(logger, string(cfg.ConnectionType)),
	}, nil
}

// NewDriverWithProtocol creates a driver bound to an existing transport
// instead of building one from the connection config. Connect opens the
// given transport directly.
func NewDriverWithProtocol(cfg *Config, proto protocol.DeviceProtocol, logger *zap.Logger) (*Driver, error) {
	d, err := NewDriver(cfg, logger)
	if err != nil {
		return nil, err
	}
	d.injected = proto
	return d, nil
}

// SetEventHandler installs the event sink. Must be called before Connect.
func (d *Driver) SetEventHandler(handler EventHandler) {
	d.handlerMutex.Lock()
	defer d.handlerMutex.Unlock()
	d.eventHandler = handler
}

// Connect opens the transport and starts the reader goroutine.
func (d *Driver) Connect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.isConnected {
		return ErrAlreadyConnected
	}

	protocolInstance := d.injected
	if protocolInstance == nil {
		var err error
		protocolInstance, err = protocol.CreateProtocol(
			d.config.ConnectionType,
			d.config.ConnectionConfig,
			d.logger.Logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create %s protocol: %w", d.config.ConnectionType, err)
		}
	}

	if err := protocolInstance.Open(ctx); err != nil {
		d.logger.LogConnection("open", false, err)
		return fmt.Errorf("failed to open %s connection: %w", d.config.ConnectionType, err)
	}

	d.protocol = protocolInstance
	d.isConnected = true
	d.continuousMode = false
	d.clearCommandContext()
	d.resetStats()

	readerCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.readLoop(readerCtx, protocolInstance, d.done)

	d.logger.LogConnection("open", true, nil)
	return nil
}

// Disconnect stops the reader goroutine and closes the transport. The
// join is bounded; a reader stuck in a transport call is abandoned after
// the timeout and the transport is closed underneath it.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.disconnectLocked()
}

func (d *Driver) disconnectLocked() error {
	if !d.isConnected {
		return nil
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		select {
		case <-d.done:
		case <-time.After(readerJoinTimeout):
			d.logger.Warn("Reader goroutine did not stop in time, closing transport anyway")
		}
		d.done = nil
	}

	var closeErr error
	if d.protocol != nil {
		closeErr = d.protocol.Close()
		d.protocol = nil
	}

	d.isConnected = false
	d.continuousMode = false
	d.clearCommandContext()

	d.logger.LogConnection("close", closeErr == nil, closeErr)
	return closeErr
}

// IsConnected returns connection status
func (d *Driver) IsConnected() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.isConnected && d.protocol != nil && d.protocol.IsOpen()
}

// IsContinuousMode reports whether the sensor is streaming unsolicited
// measurement frames.
func (d *Driver) IsContinuousMode() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.continuousMode
}

// Execute writes a command to the sensor. For commands that expect a
// reply the response context is armed before the write so the reader
// goroutine can attribute the next frame; the decoded reply is
// delivered via the event handler.
func (d *Driver) Execute(ctx context.Context, cmd Command) error {
	d.mutex.RLock()
	proto := d.protocol
	connected := d.isConnected
	d.mutex.RUnlock()

	if !connected || proto == nil {
		return ErrNotConnected
	}

	if cmd.ResponseLen() > 0 {
		d.setCommandContext(cmd)
	}

	startTime := time.Now()
	err := proto.Write(ctx, cmd.Bytes())
	d.logger.LogCommand(cmd.String(), time.Since(startTime), err)
	if err != nil {
		d.clearCommandContext()
		return fmt.Errorf("failed to write %s: %w", cmd, err)
	}

	d.statsMutex.Lock()
	d.stats.CommandsSent++
	d.statsMutex.Unlock()

	d.mutex.Lock()
	if cmd.IsContinuous() {
		d.continuousMode = true
	}
	if cmd == CmdExitContinuousMode {
		d.continuousMode = false
	}
	d.mutex.Unlock()

	return nil
}

// Stats returns a snapshot of the pipeline counters.
func (d *Driver) Stats() DriverStats {
	d.statsMutex.Lock()
	defer d.statsMutex.Unlock()
	snapshot := d.stats
	snapshot.Connected = d.IsConnected()
	return snapshot
}

// Close releases all resources.
func (d *Driver) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.disconnectLocked()
}

// readLoop is the single reader goroutine. It owns the frame
// synchronizer exclusively; nothing else touches the byte stream.
func (d *Driver) readLoop(ctx context.Context, proto protocol.DeviceProtocol, done chan struct{}) {
	defer close(done)

	synchronizer := NewFrameSynchronizer()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		readCtx, cancel := context.WithTimeout(ctx, d.config.ReadTimeout)
		data, err := proto.Read(readCtx, d.config.ReadChunkSize)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// Idle link, keep polling.
				continue
			}
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("Transport read failed, stopping reader", zap.Error(err))
			d.notifyConnectionLost(err)
			return
		}
		if len(data) == 0 {
			continue
		}

		d.statsMutex.Lock()
		d.stats.BytesRead += int64(len(data))
		d.statsMutex.Unlock()

		synchronizer.Feed(data)
		d.drainFrames(synchronizer)
	}
}

// drainFrames extracts and dispatches every complete frame currently
// buffered. The command context is consumed by the first decode attempt
// regardless of outcome.
func (d *Driver) drainFrames(synchronizer *FrameSynchronizer) {
	for {
		cmd := d.peekCommandContext()
		expectedLen := 0
		if cmd != nil {
			expectedLen = cmd.ResponseLen()
		}

		frame, ok := synchronizer.Next(expectedLen)
		if !ok {
			return
		}

		resp := Decode(frame, cmd)
		if cmd != nil {
			d.clearCommandContext()
		}
		d.dispatch(resp)
	}
}

func (d *Driver) dispatch(resp ParsedResponse) {
	d.statsMutex.Lock()
	d.stats.FramesDecoded++
	d.stats.LastFrameAt = time.Now()
	switch resp.Type {
	case ResponseMeasurement:
		d.stats.MeasurementFrames++
	case ResponseUnknown:
		d.stats.UnrecognizedFrames++
	case ResponseError:
		d.stats.DecodeErrors++
	}
	d.statsMutex.Unlock()

	d.handlerMutex.RLock()
	handler := d.eventHandler
	d.handlerMutex.RUnlock()
	if handler == nil {
		return
	}

	switch resp.Type {
	case ResponseMeasurement:
		handler.OnMeasurement(time.Now(), resp.DistanceMM, resp.SignalQuality)
	case ResponseUnknown:
		d.logger.Debug("Unrecognized frame", zap.String("raw", resp.RawHex))
		handler.OnResponse(resp)
	case ResponseError:
		d.logger.Warn("Frame decode error",
			zap.String("raw", resp.RawHex),
			zap.String("reason", resp.Reason),
		)
		handler.OnResponse(resp)
	default:
		handler.OnResponse(resp)
	}
}

func (d *Driver) notifyConnectionLost(err error) {
	d.mutex.Lock()
	d.isConnected = false
	d.continuousMode = false
	d.mutex.Unlock()

	d.handlerMutex.RLock()
	handler := d.eventHandler
	d.handlerMutex.RUnlock()
	if handler != nil {
		handler.OnConnectionLost(err)
	}
}

func (d *Driver) setCommandContext(cmd Command) {
	d.cmdMutex.Lock()
	defer d.cmdMutex.Unlock()
	c := cmd
	d.lastCmd = &c
}

func (d *Driver) peekCommandContext() *Command {
	d.cmdMutex.Lock()
	defer d.cmdMutex.Unlock()
	return d.lastCmd
}

func (d *Driver) clearCommandContext() {
	d.cmdMutex.Lock()
	defer d.cmdMutex.Unlock()
	d.lastCmd = nil
}

func (d *Driver) resetStats() {
	d.statsMutex.Lock()
	defer d.statsMutex.Unlock()
	d.stats = DriverStats{}
}
