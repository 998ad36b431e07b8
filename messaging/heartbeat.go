package messaging

import (
	"log"
	"sync"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/protocol"
)

// EnvelopePublisher sends an encoded envelope directly, bypassing the outbox.
type EnvelopePublisher interface {
	PublishEnvelope(topic string, env interface{ Encode() ([]byte, error) }) error
}

// StatsFunc reports the open order count and the number of lots in production.
type StatsFunc func() (orders, activeLots int)

// Heartbeater publishes planner.heartbeat on the events topic.
type Heartbeater struct {
	client    EnvelopePublisher
	nodeID    string
	topic     string
	interval  time.Duration
	stats     StatsFunc
	startTime time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHeartbeater creates a heartbeater. A nil stats func reports zeros.
func NewHeartbeater(client EnvelopePublisher, nodeID, eventsTopic string, interval time.Duration, stats StatsFunc) *Heartbeater {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Heartbeater{
		client:    client,
		nodeID:    nodeID,
		topic:     eventsTopic,
		interval:  interval,
		stats:     stats,
		startTime: time.Now(),
		stopCh:    make(chan struct{}),
	}
}

// Start sends an initial heartbeat and begins the loop.
func (h *Heartbeater) Start() {
	h.startTime = time.Now()
	h.sendHeartbeat()
	go h.loop()
}

// Stop halts the heartbeat loop.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *Heartbeater) sendHeartbeat() {
	hb := &protocol.PlannerHeartbeat{
		NodeID: h.nodeID,
		Uptime: int64(time.Since(h.startTime).Seconds()),
	}
	if h.stats != nil {
		hb.Orders, hb.ActiveLots = h.stats()
	}
	env, err := protocol.NewEnvelope(
		protocol.TypePlannerHeartbeat,
		protocol.Address{Role: protocol.RolePlanner, Node: h.nodeID},
		protocol.Address{Role: protocol.RoleTerminal, Node: "*"},
		hb,
	)
	if err != nil {
		log.Printf("heartbeater: build heartbeat: %v", err)
		return
	}
	if err := h.client.PublishEnvelope(h.topic, env); err != nil {
		log.Printf("heartbeater: send heartbeat: %v", err)
	}
}

func (h *Heartbeater) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}
