// internal/protocol/bluetooth_connection.go
//go:build linux

package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"drill-monitor/internal/model"
)

// BluetoothConnection implements DeviceProtocol over an RFCOMM socket.
// The LDJ sensor's Bluetooth module exposes a plain serial stream on
// RFCOMM channel 1.
type BluetoothConnection struct {
	config *BluetoothConfig
	fd     int
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool

	// statsMutex guards stats; Read and Write both run under the
	// connection's read lock and update counters concurrently.
	statsMutex sync.Mutex
	stats      *ProtocolStats
}

// newBluetoothConnection creates a new Bluetooth RFCOMM connection
func newBluetoothConnection(config *BluetoothConfig, logger *zap.Logger) (DeviceProtocol, error) {
	return NewBluetoothConnection(config, logger), nil
}

// NewBluetoothConnection creates a new Bluetooth RFCOMM connection
func NewBluetoothConnection(config *BluetoothConfig, logger *zap.Logger) DeviceProtocol {
	return &BluetoothConnection{
		config: config,
		fd:     -1,
		logger: logger.With(
			zap.String("protocol", "bluetooth"),
			zap.String("address", config.Address),
		),
		stats: &ProtocolStats{
			IsConnected: false,
		},
	}
}

// Open connects the RFCOMM socket
func (bc *BluetoothConnection) Open(ctx context.Context) error {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if bc.isOpen {
		return nil
	}

	addr, err := parseBluetoothAddress(bc.config.Address)
	if err != nil {
		return err
	}

	bc.logger.Info("Connecting RFCOMM socket",
		zap.String("address", bc.config.Address),
		zap.Int("channel", bc.config.Channel),
	)

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM)
	if err != nil {
		return fmt.Errorf("failed to create RFCOMM socket: %w", err)
	}

	sockaddr := &unix.SockaddrRFCOMM{
		Addr:    addr,
		Channel: uint8(bc.config.Channel),
	}

	if err := unix.Connect(fd, sockaddr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to connect to %s channel %d: %w", bc.config.Address, bc.config.Channel, err)
	}

	bc.fd = fd
	bc.isOpen = true
	bc.stats.IsConnected = true
	bc.stats.LastActivity = time.Now()

	bc.logger.Info("RFCOMM socket connected")
	return nil
}

// Close shuts the RFCOMM socket
func (bc *BluetoothConnection) Close() error {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if !bc.isOpen || bc.fd < 0 {
		return nil
	}

	if err := unix.Close(bc.fd); err != nil {
		bc.logger.Error("Failed to close RFCOMM socket", zap.Error(err))
		return fmt.Errorf("failed to close RFCOMM socket: %w", err)
	}

	bc.fd = -1
	bc.isOpen = false
	bc.stats.IsConnected = false

	bc.logger.Info("RFCOMM socket closed")
	return nil
}

// IsOpen returns whether the connection is open
func (bc *BluetoothConnection) IsOpen() bool {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()
	return bc.isOpen && bc.fd >= 0
}

// Write writes data to the RFCOMM socket
func (bc *BluetoothConnection) Write(ctx context.Context, data []byte) error {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()

	if !bc.isOpen || bc.fd < 0 {
		return fmt.Errorf("bluetooth connection not open")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	written := 0
	for written < len(data) {
		n, err := unix.Write(bc.fd, data[written:])
		if err != nil {
			bc.recordError()
			bc.logger.Error("RFCOMM write failed", zap.Error(err))
			return fmt.Errorf("failed to write to RFCOMM socket: %w", err)
		}
		written += n
	}

	bc.recordWrite(len(data))

	bc.logger.Debug("RFCOMM write completed", zap.Int("bytes", len(data)))
	return nil
}

// Read reads data from the RFCOMM socket. The socket is polled with the
// context's remaining time as the bound; a quiet link returns an empty
// slice with a nil error.
func (bc *BluetoothConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()

	if !bc.isOpen || bc.fd < 0 {
		return nil, fmt.Errorf("bluetooth connection not open")
	}

	timeoutMs := 100
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, context.DeadlineExceeded
		}
		timeoutMs = int(remaining.Milliseconds())
		if timeoutMs < 1 {
			timeoutMs = 1
		}
	}

	pollFds := []unix.PollFd{{Fd: int32(bc.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pollFds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		bc.recordError()
		return nil, fmt.Errorf("failed to poll RFCOMM socket: %w", err)
	}
	if n == 0 {
		// Timed out with nothing to read.
		return nil, nil
	}
	if pollFds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		bc.recordError()
		return nil, fmt.Errorf("RFCOMM socket error (revents=0x%X)", pollFds[0].Revents)
	}

	buffer := make([]byte, maxBytes)
	count, err := unix.Read(bc.fd, buffer)
	if err != nil {
		bc.recordError()
		return nil, fmt.Errorf("failed to read from RFCOMM socket: %w", err)
	}
	if count == 0 {
		// Orderly shutdown by the peer.
		return nil, fmt.Errorf("RFCOMM connection closed by peer")
	}

	bc.recordRead(count)
	return buffer[:count], nil
}

func (bc *BluetoothConnection) recordWrite(n int) {
	bc.statsMutex.Lock()
	defer bc.statsMutex.Unlock()

	bc.stats.BytesWritten += int64(n)
	bc.stats.OperationCount++
	bc.stats.LastActivity = time.Now()
}

func (bc *BluetoothConnection) recordRead(n int) {
	bc.statsMutex.Lock()
	defer bc.statsMutex.Unlock()

	bc.stats.BytesRead += int64(n)
	bc.stats.OperationCount++
	bc.stats.LastActivity = time.Now()
}

func (bc *BluetoothConnection) recordError() {
	bc.statsMutex.Lock()
	defer bc.statsMutex.Unlock()

	bc.stats.ErrorCount++
}

// GetProtocolType returns the protocol type
func (bc *BluetoothConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeBluetooth
}

// Ping tests the connection by writing the sensor's status query
func (bc *BluetoothConnection) Ping(ctx context.Context) error {
	if !bc.IsOpen() {
		return fmt.Errorf("bluetooth connection not open")
	}
	return bc.Write(ctx, statusPoll)
}
