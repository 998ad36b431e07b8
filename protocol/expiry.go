package protocol

import "time"

// Default TTLs by message type. Lot and occupancy commands are short-lived:
// a terminal that could not reach the planner for minutes re-scans instead.
var defaultTTLs = map[string]time.Duration{
	TypeTerminalHeartbeat: 90 * time.Second,
	TypePlannerHeartbeat:  90 * time.Second,

	TypeLotStart:         5 * time.Minute,
	TypeLotAdvance:       5 * time.Minute,
	TypeLotFinish:        5 * time.Minute,
	TypeLotReject:        5 * time.Minute,
	TypeOccupancyAssign:  5 * time.Minute,
	TypeOccupancyRelease: 5 * time.Minute,
	TypeCommandAck:       5 * time.Minute,

	TypeImportCompleted: 60 * time.Minute,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

// DefaultTTLFor returns the default TTL for a message type.
func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpired returns true if the envelope has passed its expiry time.
func IsExpired(env *Envelope) bool {
	if env.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(env.ExpiresAt)
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	if hdr.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(hdr.ExpiresAt)
}
