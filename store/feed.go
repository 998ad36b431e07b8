package store

import (
	"context"
	"log"
	"sync"
)

type subscription struct {
	id         uint64
	collection string
	filters    []Filter
	fn         func([]Document)

	// One goroutine at a time runs deliveries. A commit seen while one is
	// running marks the subscription dirty and the runner queries again.
	mu      sync.Mutex
	running bool
	dirty   bool
}

// feed fans committed writes out to live query subscribers.
type feed struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
}

func newFeed() *feed {
	return &feed{subs: make(map[uint64]*subscription)}
}

func (f *feed) add(s *subscription) {
	f.mu.Lock()
	f.nextID++
	s.id = f.nextID
	f.subs[s.id] = s
	f.mu.Unlock()
}

func (f *feed) remove(id uint64) {
	f.mu.Lock()
	delete(f.subs, id)
	f.mu.Unlock()
}

func (f *feed) live(id uint64) bool {
	f.mu.RLock()
	_, ok := f.subs[id]
	f.mu.RUnlock()
	return ok
}

func (f *feed) notify(db *DB, collections map[string]bool) {
	f.mu.RLock()
	var targets []*subscription
	for _, s := range f.subs {
		if collections[s.collection] {
			targets = append(targets, s)
		}
	}
	f.mu.RUnlock()

	for _, s := range targets {
		s.mu.Lock()
		if s.running {
			s.dirty = true
			s.mu.Unlock()
			continue
		}
		s.running = true
		s.mu.Unlock()
		f.run(db, s)
	}
}

// run delivers fresh result sets until no commit arrived during the last
// one. The caller must have set s.running.
func (f *feed) run(db *DB, s *subscription) {
	for {
		s.mu.Lock()
		s.dirty = false
		s.mu.Unlock()

		docs, err := db.QueryDocuments(context.Background(), s.collection, s.filters...)
		if err != nil {
			log.Printf("store: refresh subscription %d on %s: %v", s.id, s.collection, err)
		} else if f.live(s.id) {
			s.fn(docs)
		}

		s.mu.Lock()
		if !s.dirty {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// Subscribe delivers the current result set of the query to fn, then a fresh
// result set after every committed write to the collection. The returned func
// cancels the subscription; cancelling ctx does the same.
func (db *DB) Subscribe(ctx context.Context, collection string, filters []Filter, fn func([]Document)) (func(), error) {
	// Register before the first query so no commit falls between the
	// snapshot and the first notification.
	s := &subscription{collection: collection, filters: filters, fn: fn, running: true}
	db.feed.add(s)
	docs, err := db.QueryDocuments(ctx, collection, filters...)
	if err != nil {
		db.feed.remove(s.id)
		return nil, err
	}
	fn(docs)
	s.mu.Lock()
	if s.dirty {
		s.mu.Unlock()
		db.feed.run(db, s)
	} else {
		s.running = false
		s.mu.Unlock()
	}

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			db.feed.remove(s.id)
			close(stop)
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				cancel()
			case <-stop:
			}
		}()
	}
	return cancel, nil
}
