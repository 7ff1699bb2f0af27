// internal/protocol/bluetooth_connection_other.go
//go:build !linux

package protocol

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// newBluetoothConnection is only implemented on Linux (RFCOMM sockets).
func newBluetoothConnection(config *BluetoothConfig, logger *zap.Logger) (DeviceProtocol, error) {
	return nil, fmt.Errorf("bluetooth RFCOMM is not supported on %s", runtime.GOOS)
}
