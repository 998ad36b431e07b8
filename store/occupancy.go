package store

import (
	"context"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/planning"
)

// CollectionOccupancy holds current operator-to-machine assignments.
const CollectionOccupancy = "machineOccupancy"

// Occupancy assigns one operator to one machine.
type Occupancy struct {
	ID           string    `json:"id"`
	MachineID    string    `json:"machineId"`
	OperatorName string    `json:"operatorName"`
	AssignedAt   time.Time `json:"assignedAt"`
}

// DecodeOccupancy maps a raw document onto Occupancy.
func DecodeOccupancy(doc Document) Occupancy {
	d := doc.Data
	o := Occupancy{
		ID:           doc.ID,
		MachineID:    planning.NormalizeMachine(fieldString(d, "machineId", KeyMachine, "station")),
		OperatorName: fieldString(d, "operatorName", "operator", "name"),
	}
	if t := fieldTime(d, "assignedAt"); t != nil {
		o.AssignedAt = *t
	} else {
		o.AssignedAt = doc.UpdatedAt
	}
	return o
}

// DecodeOccupancies decodes a result set.
func DecodeOccupancies(docs []Document) []Occupancy {
	out := make([]Occupancy, 0, len(docs))
	for _, d := range docs {
		out = append(out, DecodeOccupancy(d))
	}
	return out
}

// Fields is the document form of o.
func (o Occupancy) Fields() map[string]any {
	return map[string]any{
		"machineId":    o.MachineID,
		"operatorName": o.OperatorName,
		"assignedAt":   timeValue(&o.AssignedAt),
	}
}

// ListOccupancy returns decoded occupancy records matching filters.
func (db *DB) ListOccupancy(ctx context.Context, filters ...Filter) ([]Occupancy, error) {
	docs, err := db.QueryDocuments(ctx, CollectionOccupancy, filters...)
	if err != nil {
		return nil, err
	}
	return DecodeOccupancies(docs), nil
}

// SaveOccupancy writes o.
func (db *DB) SaveOccupancy(ctx context.Context, o Occupancy) error {
	return db.BatchWrite(ctx, []WriteOp{Set(CollectionOccupancy, o.ID, o.Fields())})
}

// DeleteOccupancy removes an assignment.
func (db *DB) DeleteOccupancy(ctx context.Context, id string) error {
	return db.BatchWrite(ctx, []WriteOp{Delete(CollectionOccupancy, id)})
}

// GetOccupancy returns a single assignment. Missing records yield sql.ErrNoRows.
func (db *DB) GetOccupancy(ctx context.Context, id string) (*Occupancy, error) {
	doc, err := db.GetDocument(ctx, CollectionOccupancy, id)
	if err != nil {
		return nil, err
	}
	o := DecodeOccupancy(*doc)
	return &o, nil
}
