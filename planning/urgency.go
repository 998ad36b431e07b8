package planning

import "time"

// Urgency is the display class of a delivery date.
type Urgency string

const (
	UrgencyRed   Urgency = "red"   // due within a week
	UrgencyBlue  Urgency = "blue"  // inside the lead time window
	UrgencyBlack Urgency = "black" // normal
)

// Urgency thresholds in calendar days. Boundaries fall into the more urgent class.
const (
	UrgentDays      = 7
	ApproachingDays = 14
)

// DaysUntil counts calendar days from now to delivery; past dates are negative.
func DaysUntil(delivery, now time.Time) int {
	from := dateOnly(now)
	to := dateOnly(delivery)
	return int(to.Sub(from).Hours() / 24)
}

// Classify buckets a delivery date relative to now.
func Classify(delivery, now time.Time) Urgency {
	days := DaysUntil(delivery, now)
	switch {
	case days <= UrgentDays:
		return UrgencyRed
	case days <= ApproachingDays:
		return UrgencyBlue
	default:
		return UrgencyBlack
	}
}

// ISOWeek returns the ISO 8601 week number of t.
func ISOWeek(t time.Time) int {
	_, w := t.ISOWeek()
	return w
}
