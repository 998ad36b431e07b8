// Package stationstate tracks which operators are assigned to which machine.
package stationstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/planning"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

// ErrNotFound is returned when an occupancy record does not exist.
var ErrNotFound = errors.New("occupancy not found")

// Store is the occupancy persistence the manager writes through.
type Store interface {
	ListOccupancy(ctx context.Context, filters ...store.Filter) ([]store.Occupancy, error)
	GetOccupancy(ctx context.Context, id string) (*store.Occupancy, error)
	SaveOccupancy(ctx context.Context, o store.Occupancy) error
	DeleteOccupancy(ctx context.Context, id string) error
}

// Manager provides write-through occupancy management: SQL first, then Redis.
// A nil Redis store runs SQL only.
type Manager struct {
	db    Store
	redis *RedisStore
	now   func() time.Time
}

func NewManager(db Store, redis *RedisStore) *Manager {
	return &Manager{db: db, redis: redis, now: time.Now}
}

// Assign puts operator on machine. Assigning the same operator twice returns
// the existing record; several operators may share a machine.
func (m *Manager) Assign(ctx context.Context, machine, operator string) (store.Occupancy, error) {
	machine = planning.NormalizeMachine(machine)
	operator = strings.TrimSpace(operator)
	if machine == planning.NoMachine {
		return store.Occupancy{}, fmt.Errorf("assign: machine is required")
	}
	if operator == "" {
		return store.Occupancy{}, fmt.Errorf("assign: operator is required")
	}
	current, err := m.db.ListOccupancy(ctx, store.Eq("machineId", machine))
	if err != nil {
		return store.Occupancy{}, fmt.Errorf("assign: list machine %s: %w", machine, err)
	}
	for _, o := range current {
		if strings.EqualFold(o.OperatorName, operator) {
			return o, nil
		}
	}
	o := store.Occupancy{
		ID:           uuid.NewString(),
		MachineID:    machine,
		OperatorName: operator,
		AssignedAt:   m.now().UTC().Truncate(time.Second),
	}
	if err := m.db.SaveOccupancy(ctx, o); err != nil {
		return store.Occupancy{}, fmt.Errorf("assign %s to %s: %w", operator, machine, err)
	}
	m.refreshMachineRedis(ctx, machine)
	return o, nil
}

// Release removes one assignment by ID.
func (m *Manager) Release(ctx context.Context, id string) (store.Occupancy, error) {
	o, err := m.db.GetOccupancy(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Occupancy{}, ErrNotFound
	}
	if err != nil {
		return store.Occupancy{}, err
	}
	if err := m.db.DeleteOccupancy(ctx, id); err != nil {
		return store.Occupancy{}, fmt.Errorf("release %s: %w", id, err)
	}
	m.refreshMachineRedis(ctx, o.MachineID)
	return *o, nil
}

// ReleaseOperator removes every assignment of operator on machine and
// returns how many were removed.
func (m *Manager) ReleaseOperator(ctx context.Context, machine, operator string) (int, error) {
	machine = planning.NormalizeMachine(machine)
	current, err := m.db.ListOccupancy(ctx, store.Eq("machineId", machine))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range current {
		if !strings.EqualFold(o.OperatorName, strings.TrimSpace(operator)) {
			continue
		}
		if err := m.db.DeleteOccupancy(ctx, o.ID); err != nil {
			return n, fmt.Errorf("release %s: %w", o.ID, err)
		}
		n++
	}
	if n > 0 {
		m.refreshMachineRedis(ctx, machine)
	}
	return n, nil
}

// ListByMachine reads a machine's team from Redis, falling back to SQL.
func (m *Manager) ListByMachine(ctx context.Context, machine string) (*MachineState, error) {
	machine = planning.NormalizeMachine(machine)
	if m.redis != nil {
		ops, ok, err := m.redis.GetMachine(ctx, machine)
		if err == nil && ok {
			return &MachineState{Machine: machine, Operators: ops, Count: len(ops)}, nil
		}
	}
	list, err := m.db.ListOccupancy(ctx, store.Eq("machineId", machine))
	if err != nil {
		return nil, err
	}
	ops := toOperators(list)
	return &MachineState{Machine: machine, Operators: ops, Count: len(ops)}, nil
}

// ListAll returns every occupied machine, sorted by machine ID.
func (m *Manager) ListAll(ctx context.Context) ([]*MachineState, error) {
	if m.redis != nil {
		machines, err := m.redis.GetAllMachines(ctx)
		if err == nil && len(machines) > 0 {
			sort.Strings(machines)
			var states []*MachineState
			for _, mc := range machines {
				st, err := m.ListByMachine(ctx, mc)
				if err == nil && st.Count > 0 {
					states = append(states, st)
				}
			}
			return states, nil
		}
	}

	list, err := m.db.ListOccupancy(ctx)
	if err != nil {
		return nil, err
	}
	byMachine := make(map[string][]store.Occupancy)
	var order []string
	for _, o := range list {
		if _, ok := byMachine[o.MachineID]; !ok {
			order = append(order, o.MachineID)
		}
		byMachine[o.MachineID] = append(byMachine[o.MachineID], o)
	}
	sort.Strings(order)
	states := make([]*MachineState, 0, len(order))
	for _, mc := range order {
		ops := toOperators(byMachine[mc])
		states = append(states, &MachineState{Machine: mc, Operators: ops, Count: len(ops)})
	}
	return states, nil
}

// SyncRedisFromSQL rebuilds the cache from SQL. Called on startup.
func (m *Manager) SyncRedisFromSQL(ctx context.Context) error {
	if m.redis == nil {
		return nil
	}
	m.redis.FlushAll(ctx)
	list, err := m.db.ListOccupancy(ctx)
	if err != nil {
		return err
	}
	byMachine := make(map[string][]store.Occupancy)
	for _, o := range list {
		byMachine[o.MachineID] = append(byMachine[o.MachineID], o)
	}
	for mc, occ := range byMachine {
		if err := m.redis.SetMachine(ctx, mc, toOperators(occ)); err != nil {
			log.Printf("stationstate: sync machine %s: %v", mc, err)
		}
	}
	log.Printf("stationstate: synced %d machines to redis", len(byMachine))
	return nil
}

func (m *Manager) refreshMachineRedis(ctx context.Context, machine string) {
	if m.redis == nil {
		return
	}
	list, err := m.db.ListOccupancy(ctx, store.Eq("machineId", machine))
	if err != nil {
		log.Printf("stationstate: refresh redis for machine %s: %v", machine, err)
		return
	}
	if len(list) == 0 {
		m.redis.RemoveMachine(ctx, machine)
		return
	}
	if err := m.redis.SetMachine(ctx, machine, toOperators(list)); err != nil {
		log.Printf("stationstate: refresh redis for machine %s: %v", machine, err)
	}
}

func toOperators(list []store.Occupancy) []Operator {
	ops := make([]Operator, len(list))
	for i, o := range list {
		ops[i] = Operator{OccupancyID: o.ID, Name: o.OperatorName, AssignedAt: o.AssignedAt}
	}
	return ops
}
