package messaging

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/config"
)

type kafkaTransport struct {
	cfg     config.KafkaConfig
	groupID string
	topics  []string

	writer *kafkago.Writer
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	readers []*kafkago.Reader
	wg      sync.WaitGroup
}

// newKafkaTransport falls back to fallbackGroup when no consumer group is
// configured. topics are created on connect when missing.
func newKafkaTransport(cfg config.KafkaConfig, fallbackGroup string, topics ...string) *kafkaTransport {
	group := cfg.GroupID
	if group == "" {
		group = fallbackGroup
	}
	return &kafkaTransport{cfg: cfg, groupID: group, topics: topics}
}

func (k *kafkaTransport) connect() error {
	if len(k.cfg.Brokers) == 0 {
		return fmt.Errorf("kafka connect: no brokers configured")
	}
	conn, err := kafkago.Dial("tcp", k.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka connect: %w", err)
	}
	ensureTopics(conn, k.topics...)
	conn.Close()

	k.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(k.cfg.Brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
	}
	k.ctx, k.cancel = context.WithCancel(context.Background())
	return nil
}

// ensureTopics creates missing topics through the cluster controller. Errors
// are logged only; the broker may auto-create topics anyway.
func ensureTopics(conn *kafkago.Conn, topics ...string) {
	var configs []kafkago.TopicConfig
	for _, t := range topics {
		if t != "" {
			configs = append(configs, kafkago.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1})
		}
	}
	if len(configs) == 0 {
		return
	}

	controller, err := conn.Controller()
	if err != nil {
		log.Printf("messaging: kafka controller lookup: %v", err)
		return
	}
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		log.Printf("messaging: kafka controller dial: %v", err)
		return
	}
	defer ctrl.Close()
	if err := ctrl.CreateTopics(configs...); err != nil {
		log.Printf("messaging: kafka topic create: %v", err)
	}
}

// publish keys messages by topic so one partition keeps terminal order.
func (k *kafkaTransport) publish(topic string, payload []byte) error {
	if k.writer == nil {
		return fmt.Errorf("kafka writer not initialized")
	}
	ctx, cancel := context.WithTimeout(k.ctx, publishTimeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafkago.Message{Topic: topic, Key: []byte(topic), Value: payload})
}

func (k *kafkaTransport) subscribe(topic string, handler func([]byte)) error {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: k.cfg.Brokers,
		Topic:   topic,
		GroupID: k.groupID,
	})
	k.mu.Lock()
	k.readers = append(k.readers, reader)
	k.mu.Unlock()

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		for {
			msg, err := reader.ReadMessage(k.ctx)
			if err != nil {
				if k.ctx.Err() == nil {
					log.Printf("messaging: kafka read %s: %v", topic, err)
				}
				return
			}
			handler(msg.Value)
		}
	}()
	return nil
}

func (k *kafkaTransport) connected() bool {
	return k.writer != nil
}

func (k *kafkaTransport) close() {
	if k.cancel != nil {
		k.cancel()
	}
	k.wg.Wait()
	k.mu.Lock()
	for _, r := range k.readers {
		r.Close()
	}
	k.readers = nil
	k.mu.Unlock()
	if k.writer != nil {
		k.writer.Close()
	}
}
