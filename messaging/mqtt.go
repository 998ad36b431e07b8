package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/config"
)

type mqttTransport struct {
	cfg  config.MQTTConfig
	conn mqtt.Client

	mu     sync.Mutex
	topics map[string]func([]byte)
}

func newMQTTTransport(cfg config.MQTTConfig) *mqttTransport {
	return &mqttTransport{cfg: cfg, topics: make(map[string]func([]byte))}
}

func (m *mqttTransport) connect() error {
	broker := fmt.Sprintf("tcp://%s:%d", m.cfg.Broker, m.cfg.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(m.resubscribe).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("messaging: mqtt connection lost: %v", err)
		})

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	m.conn = conn
	if !token.WaitTimeout(publishTimeout) {
		// paho keeps retrying; the outbox holds messages until it succeeds.
		log.Printf("messaging: mqtt broker %s not reachable yet, retrying in background", broker)
		return nil
	}
	if err := token.Error(); err != nil {
		m.conn = nil
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// resubscribe restores topic handlers after the broker dropped the session.
func (m *mqttTransport) resubscribe(conn mqtt.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for topic, handler := range m.topics {
		if tok := conn.Subscribe(topic, 1, wrapMQTT(handler)); tok.Wait() && tok.Error() != nil {
			log.Printf("messaging: mqtt resubscribe %s: %v", topic, tok.Error())
		}
	}
}

func (m *mqttTransport) publish(topic string, payload []byte) error {
	if m.conn == nil || !m.conn.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := m.conn.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	return token.Error()
}

func (m *mqttTransport) subscribe(topic string, handler func([]byte)) error {
	m.mu.Lock()
	m.topics[topic] = handler
	m.mu.Unlock()

	if !m.conn.IsConnected() {
		// Restored by resubscribe once the connection comes up.
		return nil
	}
	token := m.conn.Subscribe(topic, 1, wrapMQTT(handler))
	token.Wait()
	return token.Error()
}

func (m *mqttTransport) connected() bool {
	return m.conn != nil && m.conn.IsConnected()
}

func (m *mqttTransport) close() {
	if m.conn != nil {
		m.conn.Disconnect(1000)
	}
}

func wrapMQTT(handler func([]byte)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	}
}
