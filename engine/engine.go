// Package engine owns the planner's managers, live feeds and event bus.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/config"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/importer"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/lookup"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/messaging"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/metrics"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/production"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/protocol"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/stationstate"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...any)

// Config holds the parameters needed to create an Engine.
type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Redis      *stationstate.RedisStore // optional
	MsgClient  *messaging.Client        // optional
	LogFunc    LogFunc
	Debug      bool
}

// Engine centralizes business logic and orchestrates subsystems.
type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	redis      *stationstate.RedisStore
	msgClient  *messaging.Client
	logFn      LogFunc
	debugFn    LogFunc

	production *production.Manager
	occupancy  *stationstate.Manager
	importer   *importer.Service
	metrics    *metrics.Live
	index      *lookup.Index

	terminals   *messaging.TerminalHandler
	drainer     *messaging.OutboxDrainer
	heartbeater *messaging.Heartbeater
	ingestor    *protocol.Ingestor

	Events *EventBus

	statsMu    sync.RWMutex
	openOrders int
	activeLots int

	ctx          context.Context
	cancel       context.CancelFunc
	unsubs       []func()
	busSubs      []SubscriberID
	msgConnected bool
	stopOnce     sync.Once
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

// New creates a new Engine. Call Start() to initialize and wire subsystems.
func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = func(string, ...any) {}
	}
	debugFn := LogFunc(func(string, ...any) {})
	if c.Debug {
		debugFn = logFn
	}
	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		redis:      c.Redis,
		msgClient:  c.MsgClient,
		logFn:      logFn,
		debugFn:    debugFn,
		Events:     NewEventBus(),
		stopChan:   make(chan struct{}),
	}
	e.production = production.NewManager(e.db, &productionEmitter{bus: e.Events})
	e.occupancy = stationstate.NewManager(e.db, e.redis)
	e.importer = importer.NewService(e.cfg.Import, e.db)
	e.importer.OnCommit = e.handleImportCommitted
	e.index = lookup.NewIndex()
	e.metrics = metrics.NewLive(e.cfg.Stations.Machines, func(stations []metrics.StationMetrics) {
		e.Events.Emit(Event{Type: EventMetricsUpdated, Payload: MetricsUpdatedEvent{Stations: stations, At: time.Now()}})
	})
	return e
}

// Start wires event handlers, opens the live feeds and starts messaging.
func (e *Engine) Start() error {
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.wireEventHandlers()

	if err := e.occupancy.SyncRedisFromSQL(e.ctx); err != nil {
		e.logFn("engine: sync occupancy cache: %v", err)
	}
	if err := e.startFeeds(); err != nil {
		e.stopFeeds()
		e.cancel()
		return fmt.Errorf("start feeds: %w", err)
	}

	if e.msgClient != nil {
		if err := e.startMessaging(); err != nil {
			e.logFn("engine: messaging: %v", err)
		}
		e.checkConnectionStatus()
		e.wg.Add(1)
		go e.connectionHealthLoop()
	}

	e.logFn("engine: started")
	return nil
}

func (e *Engine) startMessaging() error {
	mc := e.cfg.Messaging
	nodeID := e.cfg.NodeID()

	e.terminals = messaging.NewTerminalHandler(e.production, e.occupancy, e.db, nodeID, mc.EventsTopic)
	e.terminals.Start()
	e.drainer = messaging.NewOutboxDrainer(e.db, e.msgClient, mc.OutboxDrainInterval)
	e.drainer.Start()
	e.heartbeater = messaging.NewHeartbeater(e.msgClient, nodeID, mc.EventsTopic, mc.HeartbeatInterval, e.Stats)
	e.heartbeater.Start()

	e.ingestor = protocol.NewIngestor(e.terminals, func(hdr *protocol.RawHeader) bool {
		return hdr.Src.Node != nodeID
	})
	if err := e.msgClient.Subscribe(mc.TerminalTopic, e.ingestor.HandleRaw); err != nil {
		return fmt.Errorf("subscribe %s: %w", mc.TerminalTopic, err)
	}
	e.debugFn("engine: subscribed to %s", mc.TerminalTopic)
	return nil
}

// Stop tears down every live subscription and background loop.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		e.stopFeeds()
		e.Events.Unsubscribe(e.busSubs...)
		e.busSubs = nil
		if e.cancel != nil {
			e.cancel()
		}
		if e.heartbeater != nil {
			e.heartbeater.Stop()
		}
		if e.drainer != nil {
			e.drainer.Stop()
		}
		if e.terminals != nil {
			e.terminals.Stop()
		}
		e.wg.Wait()
		e.logFn("engine: stopped")
	})
}

// Accessors
func (e *Engine) DB() *store.DB                         { return e.db }
func (e *Engine) AppConfig() *config.Config             { return e.cfg }
func (e *Engine) ConfigPath() string                    { return e.configPath }
func (e *Engine) Production() *production.Manager       { return e.production }
func (e *Engine) Occupancy() *stationstate.Manager      { return e.occupancy }
func (e *Engine) Importer() *importer.Service           { return e.importer }
func (e *Engine) Metrics() *metrics.Live                { return e.metrics }
func (e *Engine) Index() *lookup.Index                  { return e.index }
func (e *Engine) Terminals() *messaging.TerminalHandler { return e.terminals }

// MessagingConnected reports the last observed broker state.
func (e *Engine) MessagingConnected() bool {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.msgConnected
}

// IngestStats reports terminal messages received and dropped. Both are zero
// when messaging is not running.
func (e *Engine) IngestStats() (received, dropped int64) {
	if e.ingestor == nil {
		return 0, 0
	}
	return e.ingestor.Stats()
}

// Stats returns the open order count and the lots in production.
func (e *Engine) Stats() (orders, activeLots int) {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.openOrders, e.activeLots
}

func (e *Engine) checkConnectionStatus() {
	connected := e.msgClient.IsConnected()
	e.statsMu.Lock()
	changed := connected != e.msgConnected
	e.msgConnected = connected
	e.statsMu.Unlock()
	if !changed {
		return
	}
	if connected {
		e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
	} else {
		e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
	}
}

func (e *Engine) connectionHealthLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// SetMachines replaces the dashboard machine list and persists the config.
func (e *Engine) SetMachines(machines []string) error {
	e.cfg.Lock()
	e.cfg.Stations.Machines = machines
	e.cfg.Unlock()
	e.metrics.SetMachines(machines)
	if e.configPath == "" {
		return nil
	}
	return e.cfg.Save(e.configPath)
}
