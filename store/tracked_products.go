package store

import (
	"context"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/planning"
)

// CollectionTrackedProducts holds one document per physical lot.
const CollectionTrackedProducts = "trackedProducts"

// Tracked product statuses.
const (
	ProductInProduction = "In Production"
	ProductFinished     = "Finished"
	ProductRejected     = "Rejected"
)

// TrackedProduct is the normalized shape of a trackedProducts document.
type TrackedProduct struct {
	ID          string     `json:"id"`
	LotNumber   string     `json:"lotNumber"`
	OrderID     string     `json:"orderId"`
	Machine     string     `json:"machine"`
	CurrentStep string     `json:"currentStep"`
	Status      string     `json:"status"`
	Operator    string     `json:"operator"`
	StartedAt   *time.Time `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DecodeTrackedProduct maps a raw document onto TrackedProduct.
func DecodeTrackedProduct(doc Document) TrackedProduct {
	d := doc.Data
	p := TrackedProduct{
		ID:          doc.ID,
		LotNumber:   fieldString(d, "lotNumber", "lot"),
		OrderID:     fieldString(d, KeyOrderID, "order"),
		Machine:     planning.NormalizeMachine(fieldString(d, KeyMachine, "originMachine", "station")),
		CurrentStep: fieldString(d, "currentStep", "currentStation"),
		Operator:    fieldString(d, "operator"),
		StartedAt:   fieldTime(d, "startedAt"),
		FinishedAt:  fieldTime(d, "finishedAt"),
		UpdatedAt:   doc.UpdatedAt,
	}
	switch s := fieldString(d, KeyStatus); s {
	case ProductFinished, ProductRejected:
		p.Status = s
	default:
		p.Status = ProductInProduction
	}
	return p
}

// Fields is the document form of p.
func (p TrackedProduct) Fields() map[string]any {
	return map[string]any{
		"lotNumber":   p.LotNumber,
		KeyOrderID:    p.OrderID,
		KeyMachine:    p.Machine,
		"currentStep": p.CurrentStep,
		KeyStatus:     p.Status,
		"operator":    p.Operator,
		"startedAt":   timeValue(p.StartedAt),
		"finishedAt":  timeValue(p.FinishedAt),
	}
}

// ListTrackedProducts returns decoded tracked products matching filters.
func (db *DB) ListTrackedProducts(ctx context.Context, filters ...Filter) ([]TrackedProduct, error) {
	docs, err := db.QueryDocuments(ctx, CollectionTrackedProducts, filters...)
	if err != nil {
		return nil, err
	}
	return DecodeTrackedProducts(docs), nil
}

// DecodeTrackedProducts decodes a result set.
func DecodeTrackedProducts(docs []Document) []TrackedProduct {
	out := make([]TrackedProduct, 0, len(docs))
	for _, d := range docs {
		out = append(out, DecodeTrackedProduct(d))
	}
	return out
}

// GetTrackedProduct returns a single lot by document ID.
func (db *DB) GetTrackedProduct(ctx context.Context, id string) (*TrackedProduct, error) {
	doc, err := db.GetDocument(ctx, CollectionTrackedProducts, id)
	if err != nil {
		return nil, err
	}
	p := DecodeTrackedProduct(*doc)
	return &p, nil
}

// SaveTrackedProduct replaces the lot document with p.
func (db *DB) SaveTrackedProduct(ctx context.Context, p TrackedProduct) error {
	return db.BatchWrite(ctx, []WriteOp{Set(CollectionTrackedProducts, p.ID, p.Fields())})
}
