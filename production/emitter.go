package production

import "github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"

// EventEmitter is the interface the production package uses to emit events.
type EventEmitter interface {
	EmitLotStarted(p store.TrackedProduct)
	EmitLotAdvanced(p store.TrackedProduct, fromStep string)
	EmitLotFinished(p store.TrackedProduct)
	EmitLotRejected(p store.TrackedProduct, reason string)
	EmitOrderStatusChanged(id, orderID, oldStatus, newStatus string)
}
