// pkg/driver/types.go
package driver

// ConnectionStatus represents the driver's view of the transport
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "CONNECTED"
	ConnectionStatusDisconnected ConnectionStatus = "DISCONNECTED"
	ConnectionStatusError        ConnectionStatus = "ERROR"
)
