package metrics

import (
	"sync"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

// Sink receives every recomputed metrics set.
type Sink func([]StationMetrics)

// Live holds the latest snapshot of each input stream and recomputes the
// aggregate whenever one of them is replaced.
type Live struct {
	mu        sync.Mutex
	orders    []store.Order
	products  []store.TrackedProduct
	occupancy []store.Occupancy
	machines  []string
	current   []StationMetrics
	seq       uint64
	sink      Sink

	// pubMu orders sink calls; a result older than the last published one
	// is dropped.
	pubMu     sync.Mutex
	published uint64
}

// NewLive returns a Live for the given machines. sink may be nil.
func NewLive(machines []string, sink Sink) *Live {
	l := &Live{machines: machines, sink: sink}
	l.current = Aggregate(nil, nil, nil, machines)
	return l
}

func (l *Live) SetOrders(orders []store.Order) {
	l.update(func() { l.orders = orders })
}

func (l *Live) SetProducts(products []store.TrackedProduct) {
	l.update(func() { l.products = products })
}

func (l *Live) SetOccupancy(occupancy []store.Occupancy) {
	l.update(func() { l.occupancy = occupancy })
}

func (l *Live) SetMachines(machines []string) {
	l.update(func() { l.machines = machines })
}

func (l *Live) update(apply func()) {
	l.mu.Lock()
	apply()
	result := Aggregate(l.orders, l.products, l.occupancy, l.machines)
	l.current = result
	l.seq++
	seq := l.seq
	l.mu.Unlock()
	l.publish(seq, result)
}

func (l *Live) publish(seq uint64, result []StationMetrics) {
	if l.sink == nil {
		return
	}
	l.pubMu.Lock()
	defer l.pubMu.Unlock()
	if seq <= l.published {
		return
	}
	l.published = seq
	l.sink(result)
}

// Current returns the last computed metrics.
func (l *Live) Current() []StationMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// For computes metrics for an ad hoc machine list from the held snapshots
// without changing the live machine set.
func (l *Live) For(machines []string) []StationMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Aggregate(l.orders, l.products, l.occupancy, machines)
}
