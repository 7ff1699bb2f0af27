// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"drill-monitor/internal/model"
)

// CreateProtocol creates a protocol based on connection type and configuration
func CreateProtocol(connectionType model.ConnectionType, config map[string]interface{}, logger *zap.Logger) (DeviceProtocol, error) {
	switch connectionType {
	case model.ConnectionTypeSerial:
		return createSerialProtocol(config, logger)
	case model.ConnectionTypeBluetooth:
		return createBluetoothProtocol(config, logger)
	default:
		return nil, fmt.Errorf("unsupported protocol type: %s", connectionType)
	}
}

// createSerialProtocol creates a serial protocol
func createSerialProtocol(config map[string]interface{}, logger *zap.Logger) (DeviceProtocol, error) {
	// The LDJ sensor ships with 115200 8N1.
	serialConfig := &SerialConfig{
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  100 * time.Millisecond,
	}

	// Parse port
	if port, ok := config["port"].(string); ok {
		serialConfig.Port = port
	} else {
		return nil, fmt.Errorf("serial port is required")
	}

	// Parse baud rate
	if baudRate, ok := config["baud_rate"]; ok {
		switch v := baudRate.(type) {
		case float64:
			serialConfig.BaudRate = int(v)
		case int:
			serialConfig.BaudRate = v
		}
	}

	// Parse data bits
	if dataBits, ok := config["data_bits"]; ok {
		switch v := dataBits.(type) {
		case float64:
			serialConfig.DataBits = int(v)
		case int:
			serialConfig.DataBits = v
		}
	}

	// Parse stop bits
	if stopBits, ok := config["stop_bits"]; ok {
		switch v := stopBits.(type) {
		case float64:
			serialConfig.StopBits = int(v)
		case int:
			serialConfig.StopBits = v
		}
	}

	// Parse parity
	if parity, ok := config["parity"].(string); ok {
		serialConfig.Parity = parity
	}

	// Parse timeout
	if timeout, ok := config["timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeout); err == nil {
			serialConfig.Timeout = dur
		}
	}

	logger.Info("Creating serial protocol",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)

	return NewSerialConnection(serialConfig, logger), nil
}

// createBluetoothProtocol creates a Bluetooth RFCOMM protocol
func createBluetoothProtocol(config map[string]interface{}, logger *zap.Logger) (DeviceProtocol, error) {
	btConfig := &BluetoothConfig{
		Channel: 1,
		Timeout: 100 * time.Millisecond,
	}

	// Parse address
	if address, ok := config["address"].(string); ok {
		btConfig.Address = address
	} else {
		return nil, fmt.Errorf("bluetooth address is required")
	}

	// Parse channel
	if channel, ok := config["channel"]; ok {
		switch v := channel.(type) {
		case float64:
			btConfig.Channel = int(v)
		case int:
			btConfig.Channel = v
		}
	}

	// Parse timeout
	if timeout, ok := config["timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeout); err == nil {
			btConfig.Timeout = dur
		}
	}

	logger.Info("Creating bluetooth protocol",
		zap.String("address", btConfig.Address),
		zap.Int("channel", btConfig.Channel),
	)

	return newBluetoothConnection(btConfig, logger)
}

// ValidateConfig validates configuration for a specific protocol type
func ValidateConfig(connectionType model.ConnectionType, config map[string]interface{}) error {
	switch connectionType {
	case model.ConnectionTypeSerial:
		return validateSerialConfig(config)
	case model.ConnectionTypeBluetooth:
		return validateBluetoothConfig(config)
	default:
		return fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

// validateSerialConfig validates serial configuration
func validateSerialConfig(config map[string]interface{}) error {
	if _, ok := config["port"].(string); !ok {
		return fmt.Errorf("serial port is required")
	}

	if baudRate, ok := config["baud_rate"]; ok {
		var rate int
		switch v := baudRate.(type) {
		case float64:
			rate = int(v)
		case int:
			rate = v
		default:
			return fmt.Errorf("invalid baud_rate type")
		}

		validRates := []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}
		valid := false
		for _, validRate := range validRates {
			if rate == validRate {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid baud rate: %d", rate)
		}
	}

	return nil
}

// validateBluetoothConfig validates Bluetooth configuration
func validateBluetoothConfig(config map[string]interface{}) error {
	address, ok := config["address"].(string)
	if !ok {
		return fmt.Errorf("bluetooth address is required")
	}
	if _, err := parseBluetoothAddress(address); err != nil {
		return err
	}

	if channel, ok := config["channel"]; ok {
		var ch int
		switch v := channel.(type) {
		case float64:
			ch = int(v)
		case int:
			ch = v
		default:
			return fmt.Errorf("invalid channel type")
		}

		if ch < 1 || ch > 30 {
			return fmt.Errorf("invalid RFCOMM channel: %d", ch)
		}
	}

	return nil
}
