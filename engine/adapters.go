package engine

import "github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"

// productionEmitter bridges the production package's emitter interface to the EventBus.
type productionEmitter struct {
	bus *EventBus
}

func (e *productionEmitter) EmitLotStarted(p store.TrackedProduct) {
	e.bus.Emit(Event{Type: EventLotStarted, Payload: LotEvent{Lot: p}})
}

func (e *productionEmitter) EmitLotAdvanced(p store.TrackedProduct, fromStep string) {
	e.bus.Emit(Event{Type: EventLotAdvanced, Payload: LotEvent{Lot: p, FromStep: fromStep}})
}

func (e *productionEmitter) EmitLotFinished(p store.TrackedProduct) {
	e.bus.Emit(Event{Type: EventLotFinished, Payload: LotEvent{Lot: p}})
}

func (e *productionEmitter) EmitLotRejected(p store.TrackedProduct, reason string) {
	e.bus.Emit(Event{Type: EventLotRejected, Payload: LotEvent{Lot: p, Reason: reason}})
}

func (e *productionEmitter) EmitOrderStatusChanged(id, orderID, oldStatus, newStatus string) {
	e.bus.Emit(Event{Type: EventOrderStatusChanged, Payload: OrderStatusChangedEvent{
		ID:        id,
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}})
}
