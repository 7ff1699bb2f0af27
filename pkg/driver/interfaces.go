// pkg/driver/interfaces.go
package driver

import (
	"context"

	"drill-monitor/internal/driver/meskernel"
	"drill-monitor/internal/model"
)

// SensorDriver is the interface the measurement pipeline exposes to the
// service layer. Implementations own the transport and the reader
// goroutine; all methods are safe for concurrent use.
type SensorDriver interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Command dispatch. Execute writes the command and arms the response
	// context; the decoded response arrives via the event handler.
	Execute(ctx context.Context, cmd meskernel.Command) error

	// Continuous mode bookkeeping
	IsContinuousMode() bool

	// Pipeline counters
	Stats() meskernel.DriverStats

	// Event handling
	SetEventHandler(handler meskernel.EventHandler)

	// Cleanup
	Close() error
}

// PortLister enumerates candidate serial ports for the sensor.
type PortLister interface {
	ListPorts() ([]model.PortInfo, error)
}
