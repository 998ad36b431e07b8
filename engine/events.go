package engine

import (
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/importer"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/metrics"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

const (
	EventLotStarted EventType = iota + 1
	EventLotAdvanced
	EventLotFinished
	EventLotRejected
	EventOrderStatusChanged
	EventOrdersChanged
	EventOccupancyChanged
	EventImportCompleted
	EventMetricsUpdated
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

// LotEvent carries the lot after the change.
type LotEvent struct {
	Lot      store.TrackedProduct
	FromStep string
	Reason   string
}

type OrderStatusChangedEvent struct {
	ID        string
	OrderID   string
	OldStatus string
	NewStatus string
}

// OrdersChangedEvent fires after any committed write to the orders collection.
type OrdersChangedEvent struct {
	Count int
}

type OccupancyChangedEvent struct {
	Occupancy []store.Occupancy
}

type ImportCompletedEvent struct {
	Report importer.CommitReport
}

type MetricsUpdatedEvent struct {
	Stations []metrics.StationMetrics
	At       time.Time
}

type ConnectionEvent struct {
	Detail string
}
