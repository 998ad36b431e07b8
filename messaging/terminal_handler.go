package messaging

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/protocol"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

const (
	handlerTimeout = 10 * time.Second
	staleAfter     = 3 * time.Minute
)

// LotService is the lot lifecycle the handler drives.
type LotService interface {
	StartLot(ctx context.Context, orderID, machine, lotNumber, operator string) (*store.TrackedProduct, error)
	AdvanceStep(ctx context.Context, id, step string) (*store.TrackedProduct, error)
	Finish(ctx context.Context, id string) (*store.TrackedProduct, error)
	Reject(ctx context.Context, id, reason string) (*store.TrackedProduct, error)
	FindByLotNumber(ctx context.Context, lotNumber string) (*store.TrackedProduct, error)
}

// OccupancyService is the operator assignment the handler drives.
type OccupancyService interface {
	Assign(ctx context.Context, machine, operator string) (store.Occupancy, error)
	Release(ctx context.Context, id string) (store.Occupancy, error)
	ReleaseOperator(ctx context.Context, machine, operator string) (int, error)
}

// TerminalStatus is the last heartbeat seen from a station terminal.
type TerminalStatus struct {
	StationID string    `json:"station_id"`
	Machine   string    `json:"machine"`
	Version   string    `json:"version,omitempty"`
	Uptime    int64     `json:"uptime_s"`
	LastSeen  time.Time `json:"last_seen"`
	Stale     bool      `json:"stale"`
}

// TerminalHandler handles inbound terminal commands on the terminals topic
// and queues a planner.ack for each one.
type TerminalHandler struct {
	protocol.NoOpHandler

	lots      LotService
	occupancy OccupancyService
	outbox    Enqueuer
	nodeID    string
	topic     string
	now       func() time.Time

	mu        sync.Mutex
	terminals map[string]*TerminalStatus

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewTerminalHandler creates a handler; acks are queued for eventsTopic.
func NewTerminalHandler(lots LotService, occupancy OccupancyService, outbox Enqueuer, nodeID, eventsTopic string) *TerminalHandler {
	return &TerminalHandler{
		lots:      lots,
		occupancy: occupancy,
		outbox:    outbox,
		nodeID:    nodeID,
		topic:     eventsTopic,
		now:       time.Now,
		terminals: make(map[string]*TerminalStatus),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the stale-terminal detection goroutine.
func (h *TerminalHandler) Start() {
	go h.staleLoop()
}

// Stop halts the stale-terminal detection goroutine.
func (h *TerminalHandler) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *TerminalHandler) HandleLotStart(env *protocol.Envelope, p *protocol.LotStart) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	lot, err := h.lots.StartLot(ctx, p.OrderID, p.Machine, p.LotNumber, p.Operator)
	h.ackLot(env, lot, err)
}

func (h *TerminalHandler) HandleLotAdvance(env *protocol.Envelope, p *protocol.LotAdvance) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	id, err := h.resolveLot(ctx, p.LotID, p.LotNumber)
	if err != nil {
		h.ackLot(env, nil, err)
		return
	}
	lot, err := h.lots.AdvanceStep(ctx, id, p.Step)
	h.ackLot(env, lot, err)
}

func (h *TerminalHandler) HandleLotFinish(env *protocol.Envelope, p *protocol.LotFinish) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	id, err := h.resolveLot(ctx, p.LotID, p.LotNumber)
	if err != nil {
		h.ackLot(env, nil, err)
		return
	}
	lot, err := h.lots.Finish(ctx, id)
	h.ackLot(env, lot, err)
}

func (h *TerminalHandler) HandleLotReject(env *protocol.Envelope, p *protocol.LotReject) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	id, err := h.resolveLot(ctx, p.LotID, p.LotNumber)
	if err != nil {
		h.ackLot(env, nil, err)
		return
	}
	lot, err := h.lots.Reject(ctx, id, p.Reason)
	h.ackLot(env, lot, err)
}

func (h *TerminalHandler) HandleOccupancyAssign(env *protocol.Envelope, p *protocol.OccupancyAssign) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	_, err := h.occupancy.Assign(ctx, p.Machine, p.Operator)
	h.ack(env, &protocol.CommandAck{}, err)
}

func (h *TerminalHandler) HandleOccupancyRelease(env *protocol.Envelope, p *protocol.OccupancyRelease) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	var err error
	if p.OccupancyID != "" {
		_, err = h.occupancy.Release(ctx, p.OccupancyID)
	} else {
		_, err = h.occupancy.ReleaseOperator(ctx, p.Machine, p.Operator)
	}
	h.ack(env, &protocol.CommandAck{}, err)
}

func (h *TerminalHandler) HandleTerminalHeartbeat(env *protocol.Envelope, p *protocol.TerminalHeartbeat) {
	stationID := p.StationID
	if stationID == "" {
		stationID = env.Src.Node
	}
	if stationID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.terminals[stationID]
	if !ok {
		t = &TerminalStatus{StationID: stationID}
		h.terminals[stationID] = t
		log.Printf("terminal_handler: terminal %s online (machine=%s)", stationID, p.Machine)
	} else if t.Stale {
		log.Printf("terminal_handler: terminal %s back online", stationID)
	}
	t.Machine = p.Machine
	t.Version = p.Version
	t.Uptime = p.Uptime
	t.LastSeen = h.now()
	t.Stale = false
}

// Terminals returns every terminal seen, sorted by station ID.
func (h *TerminalHandler) Terminals() []TerminalStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TerminalStatus, 0, len(h.terminals))
	for _, t := range h.terminals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out
}

func (h *TerminalHandler) resolveLot(ctx context.Context, lotID, lotNumber string) (string, error) {
	if lotID != "" {
		return lotID, nil
	}
	p, err := h.lots.FindByLotNumber(ctx, lotNumber)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

func (h *TerminalHandler) ackLot(env *protocol.Envelope, lot *store.TrackedProduct, err error) {
	ack := &protocol.CommandAck{}
	if lot != nil {
		ack.LotID = lot.ID
		ack.Status = lot.Status
		ack.Step = lot.CurrentStep
	}
	h.ack(env, ack, err)
}

func (h *TerminalHandler) ack(env *protocol.Envelope, ack *protocol.CommandAck, err error) {
	ack.Command = env.Type
	ack.OK = err == nil
	if err != nil {
		ack.Error = err.Error()
		log.Printf("terminal_handler: %s from %s: %v", env.Type, env.Src.Node, err)
	}
	reply, rerr := protocol.NewReply(protocol.TypeCommandAck,
		protocol.Address{Role: protocol.RolePlanner, Node: h.nodeID},
		env.Src, env.ID, ack)
	if rerr != nil {
		log.Printf("terminal_handler: build ack: %v", rerr)
		return
	}
	if qerr := Enqueue(h.outbox, h.topic, reply); qerr != nil {
		log.Printf("terminal_handler: %v", qerr)
	}
}

func (h *TerminalHandler) staleLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.markStale()
		}
	}
}

func (h *TerminalHandler) markStale() {
	cutoff := h.now().Add(-staleAfter)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.terminals {
		if !t.Stale && t.LastSeen.Before(cutoff) {
			t.Stale = true
			log.Printf("terminal_handler: terminal %s stale (last seen %s)", t.StationID, t.LastSeen.Format(time.RFC3339))
		}
	}
}
