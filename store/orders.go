package store

import (
	"context"
	"fmt"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/planning"
)

// CollectionOrders holds production orders keyed by the sanitized order/item ID.
const CollectionOrders = "orders"

// Order document keys.
const (
	KeyOrderID          = "orderId"
	KeyManufacturedItem = "manufacturedItem"
	KeyItemCode         = "itemCode"
	KeyItemDesc         = "itemDesc"
	KeyCode             = "code"
	KeyMachine          = "machine"
	KeyMachineLabel     = "machineLabel"
	KeyDeliveryDate     = "deliveryDate"
	KeyPlannedDate      = "plannedDate"
	KeyWeekNumber       = "weekNumber"
	KeyPlan             = "plan"
	KeyStatus           = "status"
)

// Order statuses.
const (
	OrderPending    = "pending"
	OrderInProgress = "in_progress"
	OrderCompleted  = "completed"
)

// Order is the normalized shape of an orders document.
type Order struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"orderId"`
	ManufacturedItem string     `json:"manufacturedItem"`
	ItemCode         string     `json:"itemCode"`
	ItemDesc         string     `json:"itemDesc"`
	Code             string     `json:"code"`
	Machine          string     `json:"machine"`
	MachineLabel     string     `json:"machineLabel"`
	DeliveryDate     *time.Time `json:"deliveryDate"`
	PlannedDate      *time.Time `json:"plannedDate"`
	WeekNumber       *int       `json:"weekNumber"`
	Plan             int        `json:"plan"`
	Status           string     `json:"status"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DecodeOrder maps a raw document onto Order, resolving historical field names
// and defaults so downstream code never has to.
func DecodeOrder(doc Document) Order {
	d := doc.Data
	o := Order{
		ID:               doc.ID,
		OrderID:          fieldString(d, KeyOrderID, "order"),
		ManufacturedItem: fieldString(d, KeyManufacturedItem, KeyItemCode),
		ItemCode:         fieldString(d, KeyItemCode, KeyManufacturedItem),
		ItemDesc:         fieldString(d, KeyItemDesc, "description", "name"),
		Code:             fieldString(d, KeyCode, "sku"),
		MachineLabel:     fieldString(d, KeyMachineLabel, KeyMachine, "station"),
		DeliveryDate:     fieldDate(d, KeyDeliveryDate),
		PlannedDate:      fieldDate(d, KeyPlannedDate),
		UpdatedAt:        doc.UpdatedAt,
	}
	o.Machine = planning.NormalizeMachine(fieldString(d, KeyMachine, "station"))
	if w, ok := fieldInt(d, KeyWeekNumber); ok {
		o.WeekNumber = &w
	}
	o.Plan = 1
	if p, ok := fieldInt(d, KeyPlan, "quantity"); ok && p > 0 {
		o.Plan = p
	}
	switch s := fieldString(d, KeyStatus); s {
	case OrderPending, OrderInProgress, OrderCompleted:
		o.Status = s
	default:
		o.Status = OrderPending
	}
	if o.PlannedDate == nil && o.DeliveryDate != nil {
		o.PlannedDate = planning.DeriveProductionWindow(*o.DeliveryDate).Planned
	}
	return o
}

// EffectiveWeek is the stored week number, or the ISO week of the delivery date.
// Zero means neither is known.
func (o Order) EffectiveWeek() int {
	if o.WeekNumber != nil {
		return *o.WeekNumber
	}
	if o.DeliveryDate != nil {
		return planning.ISOWeek(*o.DeliveryDate)
	}
	return 0
}

func decodeOrders(docs []Document) []Order {
	orders := make([]Order, 0, len(docs))
	for _, d := range docs {
		orders = append(orders, DecodeOrder(d))
	}
	return orders
}

// ListOrders returns decoded orders matching filters.
func (db *DB) ListOrders(ctx context.Context, filters ...Filter) ([]Order, error) {
	docs, err := db.QueryDocuments(ctx, CollectionOrders, filters...)
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs), nil
}

// GetOrder returns a single order by document ID.
func (db *DB) GetOrder(ctx context.Context, id string) (*Order, error) {
	doc, err := db.GetDocument(ctx, CollectionOrders, id)
	if err != nil {
		return nil, err
	}
	o := DecodeOrder(*doc)
	return &o, nil
}

// ListOrdersByOrderID returns every line item of an external order number.
func (db *DB) ListOrdersByOrderID(ctx context.Context, orderID string) ([]Order, error) {
	return db.ListOrders(ctx, Eq(KeyOrderID, orderID))
}

// UpdateOrderStatus merges a new status into an order.
func (db *DB) UpdateOrderStatus(ctx context.Context, id, status string) error {
	if err := db.BatchWrite(ctx, []WriteOp{Merge(CollectionOrders, id, map[string]any{KeyStatus: status})}); err != nil {
		return fmt.Errorf("update order %s status: %w", id, err)
	}
	return nil
}

// DeleteOrder hard-deletes an order. Only reachable from admin actions.
func (db *DB) DeleteOrder(ctx context.Context, id string) error {
	return db.BatchWrite(ctx, []WriteOp{Delete(CollectionOrders, id)})
}

// Fields is the document form of o. Status is included so a replacing write
// keeps it; importers that must not touch status build their own field set.
func (o Order) Fields() map[string]any {
	var week any
	if o.WeekNumber != nil {
		week = *o.WeekNumber
	}
	return map[string]any{
		KeyOrderID:          o.OrderID,
		KeyManufacturedItem: o.ManufacturedItem,
		KeyItemCode:         o.ItemCode,
		KeyItemDesc:         o.ItemDesc,
		KeyCode:             o.Code,
		KeyMachine:          o.Machine,
		KeyMachineLabel:     o.MachineLabel,
		KeyDeliveryDate:     dateValue(o.DeliveryDate),
		KeyPlannedDate:      dateValue(o.PlannedDate),
		KeyWeekNumber:       week,
		KeyPlan:             o.Plan,
		KeyStatus:           o.Status,
	}
}
