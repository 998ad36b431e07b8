package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/engine"
)

// SSEEvent is one server-sent event. Keepalives carry ID 0.
type SSEEvent struct {
	ID    uint64
	Event string
	Data  string
}

// retryMillis is the reconnect delay suggested to dashboards.
const retryMillis = 3000

// EventHub fans engine events out to every connected dashboard.
type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopOnce  sync.Once
	stopChan  chan struct{}
	subs      []engine.SubscriberID
	bus       *engine.EventBus
	seq       atomic.Uint64
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

// Stop ends the fan-out loop and detaches from the engine bus.
func (h *EventHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
		if h.bus != nil {
			h.bus.Unsubscribe(h.subs...)
		}
	})
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.send(evt)
		case <-keepalive.C:
			h.send(SSEEvent{Event: "keepalive", Data: "ping"})
		}
	}
}

func (h *EventHub) send(evt SSEEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// slow client, drop
		}
	}
}

// Broadcast queues an event for every client. It never blocks; events are
// dropped when the queue is full.
func (h *EventHub) Broadcast(event, data string) {
	select {
	case h.broadcast <- SSEEvent{ID: h.seq.Add(1), Event: event, Data: data}:
	default:
		log.Printf("sse: queue full, dropping %s", event)
	}
}

// BroadcastJSON marshals v and broadcasts it.
func (h *EventHub) BroadcastJSON(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("sse: marshal %s: %v", event, err)
		return
	}
	h.Broadcast(event, string(data))
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetupEngineListeners wires engine events to SSE broadcasts.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	h.bus = eng.Events

	h.subs = append(h.subs, engine.Handle(eng.Events, func(_ engine.EventType, ev engine.MetricsUpdatedEvent) {
		h.BroadcastJSON("metrics-update", ev.Stations)
	}, engine.EventMetricsUpdated))

	lotKinds := map[engine.EventType]string{
		engine.EventLotStarted:  "started",
		engine.EventLotAdvanced: "advanced",
		engine.EventLotFinished: "finished",
		engine.EventLotRejected: "rejected",
	}
	h.subs = append(h.subs, engine.Handle(eng.Events, func(t engine.EventType, ev engine.LotEvent) {
		h.BroadcastJSON("lot-update", map[string]any{"type": lotKinds[t], "lot": ev.Lot, "reason": ev.Reason})
	}, engine.EventLotStarted, engine.EventLotAdvanced, engine.EventLotFinished, engine.EventLotRejected))

	h.subs = append(h.subs, engine.Handle(eng.Events, func(_ engine.EventType, ev engine.OrderStatusChangedEvent) {
		h.BroadcastJSON("order-update", map[string]string{"id": ev.ID, "order_id": ev.OrderID, "old_status": ev.OldStatus, "new_status": ev.NewStatus})
	}, engine.EventOrderStatusChanged))

	h.subs = append(h.subs, engine.Handle(eng.Events, func(_ engine.EventType, ev engine.OccupancyChangedEvent) {
		h.BroadcastJSON("occupancy-update", ev.Occupancy)
	}, engine.EventOccupancyChanged))

	h.subs = append(h.subs, engine.Handle(eng.Events, func(_ engine.EventType, ev engine.ImportCompletedEvent) {
		h.BroadcastJSON("import-completed", ev.Report)
	}, engine.EventImportCompleted))

	h.subs = append(h.subs, eng.Events.SubscribeTypes(func(evt engine.Event) {
		status := "connected"
		if evt.Type == engine.EventMessagingDisconnected {
			status = "disconnected"
		}
		h.BroadcastJSON("system-status", map[string]string{"messaging": status})
	}, engine.EventMessagingConnected, engine.EventMessagingDisconnected))
}

// SSEHandler serves the SSE endpoint.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := h.AddClient()
	defer h.RemoveClient(ch)

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if err := writeEvent(w, evt); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, evt SSEEvent) error {
	if evt.ID != 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", evt.ID); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data)
	return err
}
