// Package planning holds the pure rules shared by import, lookup and the
// dashboards: machine identifier normalization and production date windows.
package planning

import "strings"

// NoMachine is returned for empty machine labels.
const NoMachine = "-"

// machinePrefix is the plant code spreadsheets put in front of station numbers.
const machinePrefix = "40"

// NormalizeMachine canonicalizes a machine or station label so spreadsheet
// values and live occupancy records can be compared. "4010" and "10" both
// normalize to "10".
func NormalizeMachine(raw string) string {
	m := strings.ToUpper(strings.TrimSpace(raw))
	for strings.HasPrefix(m, machinePrefix) {
		m = m[len(machinePrefix):]
	}
	if m == "" {
		return NoMachine
	}
	return m
}

// SameMachine reports whether two labels refer to the same station.
func SameMachine(a, b string) bool {
	return NormalizeMachine(a) == NormalizeMachine(b)
}
