package production

import "github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"

// Production steps, in the order a lot passes them.
const (
	StepWikkelen      = "Wikkelen"
	StepLossen        = "Lossen"
	StepMazak         = "Mazak"
	StepNabewerken    = "Nabewerken"
	StepEindinspectie = "Eindinspectie"
	StepFinished      = "Finished"
)

// Steps lists every step in order.
var Steps = []string{StepWikkelen, StepLossen, StepMazak, StepNabewerken, StepEindinspectie, StepFinished}

// StepIndex returns the position of step, or -1 for an unknown step.
func StepIndex(step string) int {
	for i, s := range Steps {
		if s == step {
			return i
		}
	}
	return -1
}

// IsValidStepMove reports whether a lot may move from one step to another.
// Only forward moves are allowed; steps may be skipped.
func IsValidStepMove(from, to string) bool {
	fi, ti := StepIndex(from), StepIndex(to)
	if ti < 0 {
		return false
	}
	if fi < 0 {
		return true
	}
	return ti > fi
}

// IsTerminal returns true if the lot status can no longer change.
func IsTerminal(status string) bool {
	return status == store.ProductFinished || status == store.ProductRejected
}

// validOrderTransitions defines which order status transitions lots may cause.
var validOrderTransitions = map[string][]string{
	store.OrderPending:    {store.OrderInProgress, store.OrderCompleted},
	store.OrderInProgress: {store.OrderCompleted},
}

// IsValidOrderTransition checks if an order status transition is allowed.
func IsValidOrderTransition(from, to string) bool {
	for _, s := range validOrderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
