package lookup

import (
	"sync"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

// Index keeps the materialized candidate list that searches scan. It is fed
// from live order and product snapshots.
type Index struct {
	mu         sync.RWMutex
	orders     []store.Order
	products   []store.TrackedProduct
	candidates []Record
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

// SetOrders replaces the order snapshot.
func (ix *Index) SetOrders(orders []store.Order) {
	ix.mu.Lock()
	ix.orders = orders
	ix.rebuildLocked()
	ix.mu.Unlock()
}

// SetProducts replaces the tracked product snapshot.
func (ix *Index) SetProducts(products []store.TrackedProduct) {
	ix.mu.Lock()
	ix.products = products
	ix.rebuildLocked()
	ix.mu.Unlock()
}

func (ix *Index) rebuildLocked() {
	c := FromOrders(ix.orders, ix.products)
	ix.candidates = append(c, FromProducts(ix.products)...)
}

// Search runs a query over the current candidates.
func (ix *Index) Search(query string) []Result {
	ix.mu.RLock()
	candidates := ix.candidates
	ix.mu.RUnlock()
	return SearchRanked(query, candidates)
}

// Len returns the number of candidates.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.candidates)
}
