// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Sensor     SensorConfig     `mapstructure:"sensor"`
	Processing ProcessingConfig `mapstructure:"processing"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Security   SecurityConfig   `mapstructure:"security"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	App        AppConfig        `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SensorConfig represents the laser sensor connection configuration
type SensorConfig struct {
	ConnectionType string          `mapstructure:"connection_type" validate:"required"` // SERIAL or BLUETOOTH
	Serial         SerialConfig    `mapstructure:"serial"`
	Bluetooth      BluetoothConfig `mapstructure:"bluetooth"`
	ReadTimeout    time.Duration   `mapstructure:"read_timeout"`
	ReadChunkSize  int             `mapstructure:"read_chunk_size"`
	AutoConnect    bool            `mapstructure:"auto_connect"`
}

// SerialConfig represents serial transport configuration
type SerialConfig struct {
	Port     string        `mapstructure:"port"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	StopBits int           `mapstructure:"stop_bits"`
	Parity   string        `mapstructure:"parity"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// BluetoothConfig represents Bluetooth RFCOMM transport configuration
type BluetoothConfig struct {
	Address string        `mapstructure:"address"`
	Channel int           `mapstructure:"channel"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProcessingConfig tunes the measurement pipeline
type ProcessingConfig struct {
	VelocityWindowSize int           `mapstructure:"velocity_window_size"`
	VelocityThreshold  float64       `mapstructure:"velocity_threshold"` // m/s
	MinDurationBelow   time.Duration `mapstructure:"min_duration_below"`
	MinDurationAbove   time.Duration `mapstructure:"min_duration_above"`
	MaxSamples         int           `mapstructure:"max_samples"`
}

// MQTTConfig represents the MQTT publisher configuration
type MQTTConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Broker   string        `mapstructure:"broker"` // e.g. tcp://localhost:1883
	ClientID string        `mapstructure:"client_id"`
	Topic    string        `mapstructure:"topic"`
	QoS      int           `mapstructure:"qos"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/drill-monitor")

	// Environment variable support
	viper.SetEnvPrefix("DRILL_MONITOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file; all keys have defaults so a missing file is fine
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8086")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Sensor defaults
	viper.SetDefault("sensor.connection_type", "SERIAL")
	viper.SetDefault("sensor.read_timeout", "200ms")
	viper.SetDefault("sensor.read_chunk_size", 256)
	viper.SetDefault("sensor.auto_connect", false)

	viper.SetDefault("sensor.serial.port", "/dev/ttyUSB0")
	viper.SetDefault("sensor.serial.baud_rate", 115200)
	viper.SetDefault("sensor.serial.data_bits", 8)
	viper.SetDefault("sensor.serial.stop_bits", 1)
	viper.SetDefault("sensor.serial.parity", "none")
	viper.SetDefault("sensor.serial.timeout", "100ms")

	viper.SetDefault("sensor.bluetooth.channel", 1)
	viper.SetDefault("sensor.bluetooth.timeout", "100ms")

	// Processing defaults
	viper.SetDefault("processing.velocity_window_size", 5)
	viper.SetDefault("processing.velocity_threshold", 0.005)
	viper.SetDefault("processing.min_duration_below", "3s")
	viper.SetDefault("processing.min_duration_above", "1s")
	viper.SetDefault("processing.max_samples", 1000)

	// MQTT defaults
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.client_id", "drill-monitor")
	viper.SetDefault("mqtt.topic", "drill/measurements")
	viper.SetDefault("mqtt.qos", 0)
	viper.SetDefault("mqtt.timeout", "5s")

	// Security defaults
	viper.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// App defaults
	viper.SetDefault("app.name", "drill-monitor")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	// Basic validation
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	switch config.Sensor.ConnectionType {
	case "SERIAL":
		if config.Sensor.Serial.Port == "" {
			return fmt.Errorf("sensor.serial.port is required for serial connections")
		}
	case "BLUETOOTH":
		if config.Sensor.Bluetooth.Address == "" {
			return fmt.Errorf("sensor.bluetooth.address is required for bluetooth connections")
		}
	default:
		return fmt.Errorf("sensor.connection_type must be SERIAL or BLUETOOTH")
	}

	if config.Processing.VelocityThreshold < 0 {
		return fmt.Errorf("processing.velocity_threshold must not be negative")
	}

	if config.MQTT.Enabled && config.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if config.MQTT.QoS < 0 || config.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// SensorConnectionConfig returns the transport config map for the
// protocol factory, keyed by the active connection type.
func (c *Config) SensorConnectionConfig() map[string]interface{} {
	switch c.Sensor.ConnectionType {
	case "BLUETOOTH":
		return map[string]interface{}{
			"address": c.Sensor.Bluetooth.Address,
			"channel": c.Sensor.Bluetooth.Channel,
			"timeout": c.Sensor.Bluetooth.Timeout.String(),
		}
	default:
		return map[string]interface{}{
			"port":      c.Sensor.Serial.Port,
			"baud_rate": c.Sensor.Serial.BaudRate,
			"data_bits": c.Sensor.Serial.DataBits,
			"stop_bits": c.Sensor.Serial.StopBits,
			"parity":    c.Sensor.Serial.Parity,
			"timeout":   c.Sensor.Serial.Timeout.String(),
		}
	}
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
