package production

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/config"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

type mockEmitter struct {
	started, advanced, finished, rejected int
	orderChanges                          []string
}

func (m *mockEmitter) EmitLotStarted(store.TrackedProduct)          { m.started++ }
func (m *mockEmitter) EmitLotAdvanced(store.TrackedProduct, string) { m.advanced++ }
func (m *mockEmitter) EmitLotFinished(store.TrackedProduct)         { m.finished++ }
func (m *mockEmitter) EmitLotRejected(store.TrackedProduct, string) { m.rejected++ }
func (m *mockEmitter) EmitOrderStatusChanged(id, orderID, oldStatus, newStatus string) {
	m.orderChanges = append(m.orderChanges, id+":"+oldStatus+"->"+newStatus)
}

func setup(t *testing.T, plan int) (*Manager, *store.DB, *mockEmitter) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	o := store.Order{ID: "N100000001_A", OrderID: "N100000001", ManufacturedItem: "A", Machine: "10", Plan: plan, Status: store.OrderPending}
	if err := db.BatchWrite(context.Background(), []store.WriteOp{store.Set(store.CollectionOrders, o.ID, o.Fields())}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	em := &mockEmitter{}
	return NewManager(db, em), db, em
}

func TestLotLifecycleCompletesOrder(t *testing.T) {
	m, db, em := setup(t, 2)
	ctx := context.Background()

	p1, err := m.StartLot(ctx, "N100000001", "4010", "1000000001", "Jan")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if p1.CurrentStep != StepWikkelen || p1.Status != store.ProductInProduction || p1.Machine != "10" {
		t.Errorf("started lot = %+v", p1)
	}
	o, _ := db.GetOrder(ctx, "N100000001_A")
	if o.Status != store.OrderInProgress {
		t.Errorf("order status = %q, want in_progress", o.Status)
	}

	if _, err := m.AdvanceStep(ctx, p1.ID, StepMazak); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := m.AdvanceStep(ctx, p1.ID, StepLossen); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("backward move err = %v, want ErrInvalidTransition", err)
	}
	if _, err := m.AdvanceStep(ctx, p1.ID, StepFinished); err != nil {
		t.Fatalf("finish via advance: %v", err)
	}
	o, _ = db.GetOrder(ctx, "N100000001_A")
	if o.Status != store.OrderInProgress {
		t.Errorf("after 1 of 2 lots status = %q, want in_progress", o.Status)
	}

	p2, _ := m.StartLot(ctx, "N100000001", "10", "1000000002", "Jan")
	if _, err := m.Finish(ctx, p2.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}
	o, _ = db.GetOrder(ctx, "N100000001_A")
	if o.Status != store.OrderCompleted {
		t.Errorf("after 2 of 2 lots status = %q, want completed", o.Status)
	}

	if em.started != 2 || em.advanced != 1 || em.finished != 2 {
		t.Errorf("emitter counts = %+v", em)
	}
	want := []string{"N100000001_A:pending->in_progress", "N100000001_A:in_progress->completed"}
	if len(em.orderChanges) != 2 || em.orderChanges[0] != want[0] || em.orderChanges[1] != want[1] {
		t.Errorf("order changes = %v, want %v", em.orderChanges, want)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	m, _, em := setup(t, 1)
	ctx := context.Background()

	p, _ := m.StartLot(ctx, "N100000001", "4010", "1000000001", "")
	if _, err := m.Reject(ctx, p.ID, "delaminated"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := m.Finish(ctx, p.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("finish after reject err = %v", err)
	}
	if _, err := m.AdvanceStep(ctx, p.ID, StepLossen); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("advance after reject err = %v", err)
	}
	if em.rejected != 1 {
		t.Errorf("rejected = %d", em.rejected)
	}

	// A rejected lot number can be started again.
	if _, err := m.StartLot(ctx, "N100000001", "4010", "1000000001", ""); err != nil {
		t.Errorf("restart rejected lot: %v", err)
	}
}

func TestStartLotValidation(t *testing.T) {
	m, _, _ := setup(t, 1)
	ctx := context.Background()

	if _, err := m.StartLot(ctx, "", "4010", "1", ""); err == nil {
		t.Error("expected error for missing order")
	}
	if _, err := m.StartLot(ctx, "N1", "  ", "1", ""); err == nil {
		t.Error("expected error for missing machine")
	}
	m.StartLot(ctx, "N100000001", "4010", "1000000001", "")
	if _, err := m.StartLot(ctx, "N100000001", "4010", "1000000001", ""); !errors.Is(err, ErrDuplicateLot) {
		t.Errorf("duplicate lot err = %v", err)
	}
	if _, err := m.StartLot(ctx, "N999999999", "4011", "1000000009", ""); err != nil {
		t.Errorf("lot for unknown order should be accepted: %v", err)
	}
}

func TestGetUnknownLot(t *testing.T) {
	m, _, _ := setup(t, 1)
	if _, err := m.Finish(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFindAndListLots(t *testing.T) {
	m, _, _ := setup(t, 5)
	ctx := context.Background()
	m.StartLot(ctx, "N100000001", "4010", "1000000001", "")
	m.StartLot(ctx, "N100000002", "4011", "1000000002", "")

	p, err := m.FindByLotNumber(ctx, "1000000002")
	if err != nil || p.OrderID != "N100000002" {
		t.Errorf("find = %+v, %v", p, err)
	}
	if _, err := m.FindByLotNumber(ctx, "42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("find missing err = %v", err)
	}
	lots, _ := m.ListLots(ctx, "N100000001")
	if len(lots) != 1 {
		t.Errorf("lots for order = %d, want 1", len(lots))
	}
	all, _ := m.ListLots(ctx, "")
	if len(all) != 2 {
		t.Errorf("all lots = %d, want 2", len(all))
	}
}

func TestStepMoves(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StepWikkelen, StepLossen, true},
		{StepWikkelen, StepEindinspectie, true},
		{StepMazak, StepLossen, false},
		{StepMazak, StepMazak, false},
		{"", StepMazak, true},
		{StepLossen, "Verpakken", false},
	}
	for _, c := range cases {
		if got := IsValidStepMove(c.from, c.to); got != c.want {
			t.Errorf("IsValidStepMove(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
