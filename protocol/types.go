package protocol

// Message type constants for the terminal protocol.
const (
	// Terminal -> Planner (published on the terminals topic)
	TypeLotStart          = "lot.start"
	TypeLotAdvance        = "lot.advance"
	TypeLotFinish         = "lot.finish"
	TypeLotReject         = "lot.reject"
	TypeOccupancyAssign   = "occupancy.assign"
	TypeOccupancyRelease  = "occupancy.release"
	TypeTerminalHeartbeat = "terminal.heartbeat"

	// Planner -> Bus (published on the events topic)
	TypeCommandAck       = "planner.ack"
	TypeImportCompleted  = "import.completed"
	TypePlannerHeartbeat = "planner.heartbeat"
)

// Roles for Address.Role.
const (
	RoleTerminal = "terminal"
	RolePlanner  = "planner"
)

// Protocol version.
const Version = 1
