// Package messaging connects the planner to station terminals over MQTT or Kafka.
package messaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/config"
)

const publishTimeout = 10 * time.Second

// transport is one broker backend.
type transport interface {
	connect() error
	publish(topic string, payload []byte) error
	subscribe(topic string, handler func([]byte)) error
	connected() bool
	close()
}

// Client is the unified messaging client. The backend is chosen by config.
type Client struct {
	mu      sync.RWMutex
	cfg     *config.MessagingConfig
	backend string
	t       transport
}

// NewClient creates a messaging client based on config.
func NewClient(cfg *config.MessagingConfig) *Client {
	return &Client{cfg: cfg, backend: cfg.Backend}
}

// Connect establishes the messaging connection.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var t transport
	switch c.backend {
	case "mqtt":
		t = newMQTTTransport(c.cfg.MQTT)
	case "kafka":
		t = newKafkaTransport(c.cfg.Kafka, c.cfg.MQTT.ClientID, c.cfg.TerminalTopic, c.cfg.EventsTopic)
	default:
		return fmt.Errorf("unknown messaging backend: %s", c.backend)
	}
	if err := t.connect(); err != nil {
		return err
	}
	c.t = t
	return nil
}

// Publish sends a payload to a topic.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.t == nil {
		return fmt.Errorf("%s not connected", c.backend)
	}
	return c.t.publish(topic, payload)
}

// PublishEnvelope encodes and publishes a protocol envelope to the given topic.
func (c *Client) PublishEnvelope(topic string, env interface{ Encode() ([]byte, error) }) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return c.Publish(topic, data)
}

// Subscribe registers a handler for messages on the given topic.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.t == nil {
		return fmt.Errorf("%s not connected", c.backend)
	}
	return c.t.subscribe(topic, handler)
}

// IsConnected returns whether the messaging client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t != nil && c.t.connected()
}

// Close shuts down the messaging connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.t != nil {
		c.t.close()
		c.t = nil
	}
}
