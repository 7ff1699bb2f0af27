// internal/protocol/connection.go
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`
}

// BluetoothConfig represents Bluetooth RFCOMM connection configuration
type BluetoothConfig struct {
	Address string        `json:"address"` // MAC, e.g. "00:1A:7D:DA:71:13"
	Channel int           `json:"channel"` // RFCOMM channel, usually 1
	Timeout time.Duration `json:"timeout"`
}

// parseBluetoothAddress converts "AA:BB:CC:DD:EE:FF" into the byte
// order the kernel expects (least significant byte first).
func parseBluetoothAddress(address string) ([6]byte, error) {
	var addr [6]byte
	parts := strings.Split(address, ":")
	if len(parts) != 6 {
		return addr, fmt.Errorf("invalid bluetooth address: %s", address)
	}
	for i, part := range parts {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return addr, fmt.Errorf("invalid bluetooth address octet %q: %w", part, err)
		}
		addr[5-i] = byte(b)
	}
	return addr, nil
}
