package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/protocol"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

const (
	drainBatch     = 50
	purgeInterval  = time.Hour
	sentRetention  = 24 * time.Hour
	defaultDrainIv = 5 * time.Second
)

// Publisher is the part of Client the drainer needs.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, payload []byte) error
}

// Enqueuer queues an outbound message for later delivery.
type Enqueuer interface {
	EnqueueOutbox(topic string, payload []byte, msgType, stationID string) error
}

// OutboxStore is the outbox persistence the drainer reads and acks.
type OutboxStore interface {
	ListPendingOutbox(limit int) ([]*store.OutboxMessage, error)
	AckOutbox(id int64) error
	IncrementOutboxRetries(id int64) error
	PurgeSentOutbox(olderThan time.Duration) (int64, error)
}

// Enqueue encodes env and stores it in the outbox for topic.
func Enqueue(q Enqueuer, topic string, env *protocol.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}
	if err := q.EnqueueOutbox(topic, data, env.Type, env.Dst.Node); err != nil {
		return fmt.Errorf("enqueue %s: %w", env.Type, err)
	}
	return nil
}

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       OutboxStore
	client   Publisher
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewOutboxDrainer creates a new outbox drainer.
func NewOutboxDrainer(db OutboxStore, client Publisher, interval time.Duration) *OutboxDrainer {
	if interval <= 0 {
		interval = defaultDrainIv
	}
	return &OutboxDrainer{
		db:       db,
		client:   client,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the outbox drain loop.
func (d *OutboxDrainer) Start() {
	d.wg.Add(1)
	go d.drainLoop()
}

// Stop stops the outbox drain loop.
func (d *OutboxDrainer) Stop() {
	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
	d.wg.Wait()
}

func (d *OutboxDrainer) drainLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	purge := time.NewTicker(purgeInterval)
	defer purge.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain()
		case <-purge.C:
			if n, err := d.db.PurgeSentOutbox(sentRetention); err != nil {
				log.Printf("outbox: purge: %v", err)
			} else if n > 0 {
				log.Printf("outbox: purged %d sent messages", n)
			}
		}
	}
}

// drain returns the number of messages delivered.
func (d *OutboxDrainer) drain() int {
	if !d.client.IsConnected() {
		return 0
	}

	msgs, err := d.db.ListPendingOutbox(drainBatch)
	if err != nil {
		log.Printf("outbox: list pending: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		if err := d.client.Publish(msg.Topic, msg.Payload); err != nil {
			log.Printf("outbox: publish msg %d (%s): %v", msg.ID, msg.MsgType, err)
			if err := d.db.IncrementOutboxRetries(msg.ID); err != nil {
				log.Printf("outbox: bump retries %d: %v", msg.ID, err)
			}
			continue
		}
		if err := d.db.AckOutbox(msg.ID); err != nil {
			log.Printf("outbox: ack msg %d: %v", msg.ID, err)
			continue
		}
		sent++
	}
	return sent
}
