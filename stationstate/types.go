package stationstate

import "time"

// Operator is one cached occupancy entry.
type Operator struct {
	OccupancyID string    `json:"occupancy_id"`
	Name        string    `json:"name"`
	AssignedAt  time.Time `json:"assigned_at"`
}

// MachineState is the current team on a machine.
type MachineState struct {
	Machine   string     `json:"machine"`
	Operators []Operator `json:"operators"`
	Count     int        `json:"count"`
}
