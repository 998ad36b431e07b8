package engine

import (
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/importer"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/messaging"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/protocol"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

func (e *Engine) wireEventHandlers() {
	e.busSubs = append(e.busSubs, Handle(e.Events, func(t EventType, ev LotEvent) {
		switch t {
		case EventLotStarted:
			e.logFn("engine: lot %s started on %s for order %s", ev.Lot.LotNumber, ev.Lot.Machine, ev.Lot.OrderID)
		case EventLotAdvanced:
			e.debugFn("engine: lot %s %s -> %s", ev.Lot.LotNumber, ev.FromStep, ev.Lot.CurrentStep)
		case EventLotFinished:
			e.logFn("engine: lot %s finished", ev.Lot.LotNumber)
		case EventLotRejected:
			e.logFn("engine: lot %s rejected at %s: %s", ev.Lot.LotNumber, ev.Lot.CurrentStep, ev.Reason)
		}
	}, EventLotStarted, EventLotAdvanced, EventLotFinished, EventLotRejected))

	e.busSubs = append(e.busSubs, Handle(e.Events, func(_ EventType, ev OrderStatusChangedEvent) {
		e.logFn("engine: order line %s (%s) %s -> %s", ev.ID, ev.OrderID, ev.OldStatus, ev.NewStatus)
	}, EventOrderStatusChanged))

	e.busSubs = append(e.busSubs, Handle(e.Events, func(_ EventType, ev ImportCompletedEvent) {
		r := ev.Report.Result
		e.logFn("engine: import %s (%s) committed %d of %d rows, skipped %d", ev.Report.Source, r.Mode, r.CommittedRows, r.TotalRows, r.Skipped)
	}, EventImportCompleted))

	e.busSubs = append(e.busSubs, Handle(e.Events, func(_ EventType, ev ConnectionEvent) {
		e.logFn("engine: %s", ev.Detail)
	}, EventMessagingConnected, EventMessagingDisconnected))
}

// startFeeds subscribes to the three live collections. Each listener
// replaces one stream in the metrics aggregate and the lookup index.
func (e *Engine) startFeeds() error {
	unsub, err := e.db.Subscribe(e.ctx, store.CollectionOrders, nil, func(docs []store.Document) {
		orders := make([]store.Order, len(docs))
		open := 0
		for i, d := range docs {
			orders[i] = store.DecodeOrder(d)
			if orders[i].Status != store.OrderCompleted {
				open++
			}
		}
		e.statsMu.Lock()
		e.openOrders = open
		e.statsMu.Unlock()
		e.index.SetOrders(orders)
		e.metrics.SetOrders(orders)
		e.Events.Emit(Event{Type: EventOrdersChanged, Payload: OrdersChangedEvent{Count: len(orders)}})
	})
	if err != nil {
		return err
	}
	e.unsubs = append(e.unsubs, unsub)

	unsub, err = e.db.Subscribe(e.ctx, store.CollectionTrackedProducts, nil, func(docs []store.Document) {
		products := store.DecodeTrackedProducts(docs)
		active := 0
		for _, p := range products {
			if p.Status == store.ProductInProduction {
				active++
			}
		}
		e.statsMu.Lock()
		e.activeLots = active
		e.statsMu.Unlock()
		e.index.SetProducts(products)
		e.metrics.SetProducts(products)
	})
	if err != nil {
		return err
	}
	e.unsubs = append(e.unsubs, unsub)

	unsub, err = e.db.Subscribe(e.ctx, store.CollectionOccupancy, nil, func(docs []store.Document) {
		occ := store.DecodeOccupancies(docs)
		e.metrics.SetOccupancy(occ)
		e.Events.Emit(Event{Type: EventOccupancyChanged, Payload: OccupancyChangedEvent{Occupancy: occ}})
	})
	if err != nil {
		return err
	}
	e.unsubs = append(e.unsubs, unsub)
	return nil
}

func (e *Engine) stopFeeds() {
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
}

// handleImportCommitted announces a commit on the bus and queues
// import.completed for the station terminals.
func (e *Engine) handleImportCommitted(r importer.CommitReport) {
	e.Events.Emit(Event{Type: EventImportCompleted, Payload: ImportCompletedEvent{Report: r}})

	if !e.cfg.Messaging.Enabled {
		return
	}
	env, err := protocol.NewEnvelope(protocol.TypeImportCompleted,
		protocol.Address{Role: protocol.RolePlanner, Node: e.cfg.NodeID()},
		protocol.Address{Role: protocol.RoleTerminal, Node: "*"},
		&protocol.ImportCompleted{
			Source:            r.Source,
			Mode:              string(r.Result.Mode),
			TotalRows:         r.Result.TotalRows,
			CommittedRows:     r.Result.CommittedRows,
			Skipped:           r.Result.Skipped,
			FailedAtChunk:     r.Result.FailedAtChunk,
			SnapshotFetchedAt: r.SnapshotFetchedAt,
		})
	if err != nil {
		e.logFn("engine: build import.completed: %v", err)
		return
	}
	if err := messaging.Enqueue(e.db, e.cfg.Messaging.EventsTopic, env); err != nil {
		e.logFn("engine: %v", err)
	}
}
