// Package metrics folds orders, tracked products and occupancy into
// per-station dashboard counters.
package metrics

import (
	"strings"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/planning"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

// StationMetrics are the counters of one dashboard tile.
type StationMetrics struct {
	Machine       string   `json:"machine"`
	Label         string   `json:"label"`
	Planned       int      `json:"planned"`
	Active        int      `json:"active"`
	Finished      int      `json:"finished"`
	OperatorCount int      `json:"operatorCount"`
	Operators     []string `json:"operators"`
	OperatorNames string   `json:"operatorNames"`
}

// Aggregate computes one entry per allowed machine, in the given order.
// Machines without any matching records still get an all-zero entry.
func Aggregate(orders []store.Order, products []store.TrackedProduct, occupancy []store.Occupancy, allowedMachines []string) []StationMetrics {
	planned := make(map[string]int)
	for _, o := range orders {
		planned[planning.NormalizeMachine(o.Machine)] += o.Plan
	}
	active := make(map[string]int)
	finished := make(map[string]int)
	for _, p := range products {
		m := planning.NormalizeMachine(p.Machine)
		switch p.Status {
		case store.ProductInProduction:
			active[m]++
		case store.ProductFinished:
			finished[m]++
		}
	}
	operators := make(map[string][]string)
	for _, occ := range occupancy {
		m := planning.NormalizeMachine(occ.MachineID)
		operators[m] = append(operators[m], occ.OperatorName)
	}

	out := make([]StationMetrics, 0, len(allowedMachines))
	for _, raw := range allowedMachines {
		m := planning.NormalizeMachine(raw)
		names := operators[m]
		if names == nil {
			names = []string{}
		}
		out = append(out, StationMetrics{
			Machine:       m,
			Label:         raw,
			Planned:       planned[m],
			Active:        active[m],
			Finished:      finished[m],
			OperatorCount: len(names),
			Operators:     names,
			OperatorNames: strings.Join(names, ", "),
		})
	}
	return out
}
