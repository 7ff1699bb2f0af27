// internal/protocol/mock.go
package protocol

import (
	"context"
	"sync"

	"drill-monitor/internal/model"
)

// MockConnection is a scriptable in-memory DeviceProtocol for tests.
// Reads are served from chunks queued with QueueRead, in order, one
// chunk per Read call; an empty queue behaves like an idle link. Writes
// are recorded and retrievable with Written.
type MockConnection struct {
	mutex      sync.Mutex
	isOpen     bool
	readQueue  [][]byte
	written    [][]byte
	readErr    error
	writeErr   error
	openErr    error
	notifyRead chan struct{}
}

// NewMockConnection creates a closed mock connection.
func NewMockConnection() *MockConnection {
	return &MockConnection{
		notifyRead: make(chan struct{}, 1),
	}
}

// QueueRead appends a chunk the next Read calls will return.
func (mc *MockConnection) QueueRead(data []byte) {
	mc.mutex.Lock()
	chunk := make([]byte, len(data))
	copy(chunk, data)
	mc.readQueue = append(mc.readQueue, chunk)
	mc.mutex.Unlock()

	select {
	case mc.notifyRead <- struct{}{}:
	default:
	}
}

// FailReads makes subsequent Read calls return err.
func (mc *MockConnection) FailReads(err error) {
	mc.mutex.Lock()
	mc.readErr = err
	mc.mutex.Unlock()

	select {
	case mc.notifyRead <- struct{}{}:
	default:
	}
}

// FailWrites makes subsequent Write calls return err.
func (mc *MockConnection) FailWrites(err error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.writeErr = err
}

// FailOpen makes Open return err.
func (mc *MockConnection) FailOpen(err error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.openErr = err
}

// Written returns every chunk passed to Write so far.
func (mc *MockConnection) Written() [][]byte {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	out := make([][]byte, len(mc.written))
	copy(out, mc.written)
	return out
}

// Open opens the mock connection
func (mc *MockConnection) Open(ctx context.Context) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	if mc.openErr != nil {
		return mc.openErr
	}
	mc.isOpen = true
	return nil
}

// Close closes the mock connection
func (mc *MockConnection) Close() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.isOpen = false
	return nil
}

// IsOpen returns whether the connection is open
func (mc *MockConnection) IsOpen() bool {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return mc.isOpen
}

// Write records the written data
func (mc *MockConnection) Write(ctx context.Context, data []byte) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	if mc.writeErr != nil {
		return mc.writeErr
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	mc.written = append(mc.written, chunk)
	return nil
}

// Read returns the next queued chunk, or blocks until one is queued,
// the connection fails, or the context expires.
func (mc *MockConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	for {
		mc.mutex.Lock()
		if mc.readErr != nil {
			err := mc.readErr
			mc.mutex.Unlock()
			return nil, err
		}
		if len(mc.readQueue) > 0 {
			chunk := mc.readQueue[0]
			mc.readQueue = mc.readQueue[1:]
			mc.mutex.Unlock()
			if len(chunk) > maxBytes {
				chunk = chunk[:maxBytes]
			}
			return chunk, nil
		}
		mc.mutex.Unlock()

		select {
		case <-mc.notifyRead:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// GetProtocolType returns the protocol type
func (mc *MockConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// Ping tests the connection
func (mc *MockConnection) Ping(ctx context.Context) error {
	return nil
}
