package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

// Snapshot is the set of order IDs that existed at FetchedAt. It is a
// point-in-time view: orders created by a concurrent import after FetchedAt
// are not in it, so a row may be classified as new when it no longer is.
type Snapshot struct {
	IDs       map[string]struct{}
	FetchedAt time.Time
}

// NewSnapshot builds a snapshot from a list of IDs.
func NewSnapshot(ids []string, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{IDs: make(map[string]struct{}, len(ids)), FetchedAt: fetchedAt}
	for _, id := range ids {
		s.IDs[id] = struct{}{}
	}
	return s
}

// Contains reports whether id existed. A nil snapshot contains nothing.
func (s *Snapshot) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.IDs[id]
	return ok
}

// Len returns the number of IDs.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.IDs)
}

// IDLister lists the document IDs of a collection.
type IDLister interface {
	ListDocumentIDs(ctx context.Context, collection string) ([]string, error)
}

// FetchSnapshot reads the current order IDs.
func FetchSnapshot(ctx context.Context, l IDLister) (*Snapshot, error) {
	ids, err := l.ListDocumentIDs(ctx, store.CollectionOrders)
	if err != nil {
		return nil, fmt.Errorf("fetch existing order ids: %w", err)
	}
	return NewSnapshot(ids, time.Now()), nil
}
