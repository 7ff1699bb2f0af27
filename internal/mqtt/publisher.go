// internal/mqtt/publisher.go
package mqtt

import (
	"encoding/json"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"drill-monitor/internal/config"
	"drill-monitor/internal/model"
)

// Publisher pushes measurement JSON to an MQTT broker. Publishing is
// fire-and-forget: a slow or absent broker must never stall the
// measurement pipeline, so delivery tokens are observed on a goroutine
// and failures are only logged.
type Publisher struct {
	config *config.MQTTConfig
	client pahomqtt.Client
	logger *zap.Logger
}

// NewPublisher creates a publisher; no connection is made until Connect.
func NewPublisher(cfg *config.MQTTConfig, logger *zap.Logger) *Publisher {
	return &Publisher{
		config: cfg,
		logger: logger.With(
			zap.String("component", "mqtt"),
			zap.String("broker", cfg.Broker),
		),
	}
}

// Connect dials the broker.
func (p *Publisher) Connect() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(p.config.Broker).
		SetClientID(p.config.ClientID).
		SetConnectTimeout(p.config.Timeout).
		SetAutoReconnect(true)

	opts.OnConnect = func(pahomqtt.Client) {
		p.logger.Info("MQTT connected")
	}
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		p.logger.Warn("MQTT connection lost", zap.Error(err))
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(p.config.Timeout) {
		return fmt.Errorf("mqtt connect timed out after %s", p.config.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect failed: %w", err)
	}

	p.client = client
	return nil
}

// PublishMeasurement sends one measurement as JSON to the configured
// topic. Returns immediately; delivery outcome is logged asynchronously.
func (p *Publisher) PublishMeasurement(m model.Measurement) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal measurement: %w", err)
	}

	token := p.client.Publish(p.config.Topic, byte(p.config.QoS), false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			p.logger.Warn("MQTT publish failed", zap.Error(err))
		}
	}()
	return nil
}

// Disconnect flushes and closes the broker connection.
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	p.client = nil
}
