// Package production runs the lot lifecycle reported by station terminals.
package production

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/planning"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

var (
	ErrInvalidTransition = errors.New("invalid lot transition")
	ErrNotFound          = errors.New("lot not found")
	ErrDuplicateLot      = errors.New("lot number already in production")
)

// Store is the persistence the manager needs.
type Store interface {
	ListOrdersByOrderID(ctx context.Context, orderID string) ([]store.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) error
	GetTrackedProduct(ctx context.Context, id string) (*store.TrackedProduct, error)
	SaveTrackedProduct(ctx context.Context, p store.TrackedProduct) error
	ListTrackedProducts(ctx context.Context, filters ...store.Filter) ([]store.TrackedProduct, error)
}

// Manager handles the lot lifecycle state machine.
type Manager struct {
	db      Store
	emitter EventEmitter
	now     func() time.Time
}

// NewManager creates a production manager.
func NewManager(db Store, emitter EventEmitter) *Manager {
	return &Manager{db: db, emitter: emitter, now: time.Now}
}

func (m *Manager) timestamp() *time.Time {
	t := m.now().UTC().Truncate(time.Second)
	return &t
}

// StartLot registers a new lot on a machine and moves pending order lines
// with the same order number to in_progress. The order is not required to
// exist; lots reference orders by number only.
func (m *Manager) StartLot(ctx context.Context, orderID, machine, lotNumber, operator string) (*store.TrackedProduct, error) {
	orderID = strings.TrimSpace(orderID)
	lotNumber = strings.TrimSpace(lotNumber)
	machine = planning.NormalizeMachine(machine)
	if orderID == "" || lotNumber == "" {
		return nil, fmt.Errorf("start lot: order and lot number are required")
	}
	if machine == planning.NoMachine {
		return nil, fmt.Errorf("start lot: machine is required")
	}

	existing, err := m.db.ListTrackedProducts(ctx, store.Eq("lotNumber", lotNumber), store.Eq(store.KeyStatus, store.ProductInProduction))
	if err != nil {
		return nil, fmt.Errorf("start lot: %w", err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateLot, lotNumber)
	}

	p := store.TrackedProduct{
		ID:          uuid.NewString(),
		LotNumber:   lotNumber,
		OrderID:     orderID,
		Machine:     machine,
		CurrentStep: Steps[0],
		Status:      store.ProductInProduction,
		Operator:    strings.TrimSpace(operator),
		StartedAt:   m.timestamp(),
	}
	if err := m.db.SaveTrackedProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("start lot %s: %w", lotNumber, err)
	}
	m.emitter.EmitLotStarted(p)

	lines, err := m.db.ListOrdersByOrderID(ctx, orderID)
	if err != nil {
		log.Printf("production: list order %s: %v", orderID, err)
		return &p, nil
	}
	if len(lines) == 0 {
		log.Printf("production: lot %s started for unknown order %s", lotNumber, orderID)
	}
	for _, o := range lines {
		if o.Status == store.OrderPending {
			m.transitionOrder(ctx, o, store.OrderInProgress)
		}
	}
	return &p, nil
}

// AdvanceStep moves a lot forward. Moving to the Finished step finishes it.
func (m *Manager) AdvanceStep(ctx context.Context, id, step string) (*store.TrackedProduct, error) {
	if step == StepFinished {
		return m.Finish(ctx, id)
	}
	p, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(p.Status) || !IsValidStepMove(p.CurrentStep, step) {
		return nil, fmt.Errorf("%w: %s from %s (%s) to %s", ErrInvalidTransition, p.LotNumber, p.CurrentStep, p.Status, step)
	}
	from := p.CurrentStep
	p.CurrentStep = step
	if err := m.db.SaveTrackedProduct(ctx, *p); err != nil {
		return nil, fmt.Errorf("advance lot %s: %w", p.LotNumber, err)
	}
	m.emitter.EmitLotAdvanced(*p, from)
	return p, nil
}

// Finish marks a lot finished and completes its order once enough lots of
// that order number are finished.
func (m *Manager) Finish(ctx context.Context, id string) (*store.TrackedProduct, error) {
	p, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(p.Status) {
		return nil, fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, p.LotNumber, p.Status)
	}
	p.Status = store.ProductFinished
	p.CurrentStep = StepFinished
	p.FinishedAt = m.timestamp()
	if err := m.db.SaveTrackedProduct(ctx, *p); err != nil {
		return nil, fmt.Errorf("finish lot %s: %w", p.LotNumber, err)
	}
	m.emitter.EmitLotFinished(*p)
	m.checkOrderCompletion(ctx, p.OrderID)
	return p, nil
}

// Reject takes a lot out of production. The current step is kept.
func (m *Manager) Reject(ctx context.Context, id, reason string) (*store.TrackedProduct, error) {
	p, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(p.Status) {
		return nil, fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, p.LotNumber, p.Status)
	}
	p.Status = store.ProductRejected
	p.FinishedAt = m.timestamp()
	if err := m.db.SaveTrackedProduct(ctx, *p); err != nil {
		return nil, fmt.Errorf("reject lot %s: %w", p.LotNumber, err)
	}
	m.emitter.EmitLotRejected(*p, reason)
	return p, nil
}

// FindByLotNumber returns the most recent lot with the given number.
func (m *Manager) FindByLotNumber(ctx context.Context, lotNumber string) (*store.TrackedProduct, error) {
	list, err := m.db.ListTrackedProducts(ctx, store.Eq("lotNumber", strings.TrimSpace(lotNumber)))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	latest := list[0]
	for _, p := range list[1:] {
		if p.StartedAt != nil && (latest.StartedAt == nil || p.StartedAt.After(*latest.StartedAt)) {
			latest = p
		}
	}
	return &latest, nil
}

// ListLots returns the lots of an order number, or every lot when orderID is empty.
func (m *Manager) ListLots(ctx context.Context, orderID string) ([]store.TrackedProduct, error) {
	if orderID == "" {
		return m.db.ListTrackedProducts(ctx)
	}
	return m.db.ListTrackedProducts(ctx, store.Eq(store.KeyOrderID, orderID))
}

func (m *Manager) get(ctx context.Context, id string) (*store.TrackedProduct, error) {
	p, err := m.db.GetTrackedProduct(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get lot %s: %w", id, err)
	}
	return p, nil
}

func (m *Manager) checkOrderCompletion(ctx context.Context, orderID string) {
	lines, err := m.db.ListOrdersByOrderID(ctx, orderID)
	if err != nil || len(lines) == 0 {
		return
	}
	finished, err := m.db.ListTrackedProducts(ctx, store.Eq(store.KeyOrderID, orderID), store.Eq(store.KeyStatus, store.ProductFinished))
	if err != nil {
		log.Printf("production: count finished lots of %s: %v", orderID, err)
		return
	}
	planned := 0
	for _, o := range lines {
		planned += o.Plan
	}
	if len(finished) < planned {
		return
	}
	for _, o := range lines {
		if o.Status != store.OrderCompleted {
			m.transitionOrder(ctx, o, store.OrderCompleted)
		}
	}
}

func (m *Manager) transitionOrder(ctx context.Context, o store.Order, status string) {
	if !IsValidOrderTransition(o.Status, status) {
		return
	}
	if err := m.db.UpdateOrderStatus(ctx, o.ID, status); err != nil {
		log.Printf("production: order %s -> %s: %v", o.ID, status, err)
		return
	}
	m.emitter.EmitOrderStatusChanged(o.ID, o.OrderID, o.Status, status)
}
