package protocol

import "time"

// --- Terminal -> Planner ---

// LotStart is scanned at a machine when a new lot goes into production.
type LotStart struct {
	OrderID   string `json:"order_id"`
	Machine   string `json:"machine"`
	LotNumber string `json:"lot_number"`
	Operator  string `json:"operator,omitempty"`
}

// LotAdvance moves a lot to a later step. LotID wins over LotNumber when set.
type LotAdvance struct {
	LotID     string `json:"lot_id,omitempty"`
	LotNumber string `json:"lot_number,omitempty"`
	Step      string `json:"step"`
}

type LotFinish struct {
	LotID     string `json:"lot_id,omitempty"`
	LotNumber string `json:"lot_number,omitempty"`
}

type LotReject struct {
	LotID     string `json:"lot_id,omitempty"`
	LotNumber string `json:"lot_number,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type OccupancyAssign struct {
	Machine  string `json:"machine"`
	Operator string `json:"operator"`
}

// OccupancyRelease removes an assignment by ID, or by machine and operator.
type OccupancyRelease struct {
	OccupancyID string `json:"occupancy_id,omitempty"`
	Machine     string `json:"machine,omitempty"`
	Operator    string `json:"operator,omitempty"`
}

type TerminalHeartbeat struct {
	StationID string `json:"station_id"`
	Machine   string `json:"machine"`
	Uptime    int64  `json:"uptime_s"`
	Version   string `json:"version,omitempty"`
}

// --- Planner -> Bus ---

// CommandAck answers a terminal command.
type CommandAck struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	LotID   string `json:"lot_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Step    string `json:"step,omitempty"`
}

type ImportCompleted struct {
	Source            string    `json:"source"`
	Mode              string    `json:"mode"`
	TotalRows         int       `json:"total_rows"`
	CommittedRows     int       `json:"committed_rows"`
	Skipped           int       `json:"skipped"`
	FailedAtChunk     int       `json:"failed_at_chunk,omitempty"`
	SnapshotFetchedAt time.Time `json:"snapshot_fetched_at"`
}

type PlannerHeartbeat struct {
	NodeID     string `json:"node_id"`
	Uptime     int64  `json:"uptime_s"`
	Orders     int    `json:"orders"`
	ActiveLots int    `json:"active_lots"`
}
