package protocol

import (
	"encoding/json"
	"log"
	"sync/atomic"
)

// FilterFunc returns true if the message should be processed.
type FilterFunc func(hdr *RawHeader) bool

// MessageHandler defines callbacks for the terminal message types.
// Embed NoOpHandler and override only the methods you need.
type MessageHandler interface {
	HandleLotStart(env *Envelope, p *LotStart)
	HandleLotAdvance(env *Envelope, p *LotAdvance)
	HandleLotFinish(env *Envelope, p *LotFinish)
	HandleLotReject(env *Envelope, p *LotReject)
	HandleOccupancyAssign(env *Envelope, p *OccupancyAssign)
	HandleOccupancyRelease(env *Envelope, p *OccupancyRelease)
	HandleTerminalHeartbeat(env *Envelope, p *TerminalHeartbeat)
}

// Ingestor decodes the routing header first, then the full envelope, and
// dispatches by message type.
type Ingestor struct {
	filter   FilterFunc
	routes   map[string]func(*Envelope)
	received atomic.Int64
	dropped  atomic.Int64
}

// NewIngestor creates an ingestor with the given handler and filter.
func NewIngestor(handler MessageHandler, filter FilterFunc) *Ingestor {
	ignore := func(*Envelope) {}
	return &Ingestor{
		filter: filter,
		routes: map[string]func(*Envelope){
			TypeLotStart:          route(handler.HandleLotStart),
			TypeLotAdvance:        route(handler.HandleLotAdvance),
			TypeLotFinish:         route(handler.HandleLotFinish),
			TypeLotReject:         route(handler.HandleLotReject),
			TypeOccupancyAssign:   route(handler.HandleOccupancyAssign),
			TypeOccupancyRelease:  route(handler.HandleOccupancyRelease),
			TypeTerminalHeartbeat: route(handler.HandleTerminalHeartbeat),

			// Planner output echoed back on a shared topic.
			TypeCommandAck:       ignore,
			TypeImportCompleted:  ignore,
			TypePlannerHeartbeat: ignore,
		},
	}
}

// HandleRaw is the entry point for raw message bytes from the messaging layer.
func (ing *Ingestor) HandleRaw(data []byte) {
	ing.received.Add(1)

	var hdr RawHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		ing.drop("header decode error: %v", err)
		return
	}
	if hdr.Version > Version {
		ing.drop("dropping %s from %s: protocol v%d not supported", hdr.ID, hdr.Src.Node, hdr.Version)
		return
	}
	if IsExpiredHeader(&hdr) {
		ing.drop("dropping expired message %s (type=%s)", hdr.ID, hdr.Type)
		return
	}
	if ing.filter != nil && !ing.filter(&hdr) {
		return
	}

	fn, ok := ing.routes[hdr.Type]
	if !ok {
		ing.drop("unknown message type: %s", hdr.Type)
		return
	}
	env, err := Decode(data)
	if err != nil {
		ing.drop("envelope decode error: %v", err)
		return
	}
	fn(env)
}

// Stats returns how many messages were received and how many were dropped
// as undecodable, expired, unsupported or unknown.
func (ing *Ingestor) Stats() (received, dropped int64) {
	return ing.received.Load(), ing.dropped.Load()
}

func (ing *Ingestor) drop(format string, args ...any) {
	ing.dropped.Add(1)
	log.Printf("protocol: "+format, args...)
}

// route binds a typed handler method to a payload decoder.
func route[T any](fn func(*Envelope, *T)) func(*Envelope) {
	return func(env *Envelope) {
		var p T
		if err := env.DecodePayload(&p); err != nil {
			log.Printf("protocol: payload decode error for %s: %v", env.Type, err)
			return
		}
		fn(env, &p)
	}
}
