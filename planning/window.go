package planning

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DefaultLeadTimeDays is the fixed interval between planned start and delivery.
const DefaultLeadTimeDays = 14

// DateLayout is the persisted form of delivery and planned dates.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"2-1-2006",
	"2/1/2006",
	"02.01.2006",
}

// ProductionWindow is the derived pair of dates for one order. Both are nil
// when the source date could not be read.
type ProductionWindow struct {
	Delivery *time.Time `json:"delivery"`
	Planned  *time.Time `json:"planned"`
}

// Calculator derives planned production dates from delivery dates.
type Calculator struct {
	LeadTimeDays int
}

// NewCalculator returns a calculator; a non-positive lead time uses the default.
func NewCalculator(leadTimeDays int) Calculator {
	if leadTimeDays <= 0 {
		leadTimeDays = DefaultLeadTimeDays
	}
	return Calculator{LeadTimeDays: leadTimeDays}
}

// Window parses raw and subtracts the lead time. Unparseable input yields an
// empty window, not an error.
func (c Calculator) Window(raw any) ProductionWindow {
	d, ok := ParseDate(raw)
	if !ok {
		return ProductionWindow{}
	}
	lead := c.LeadTimeDays
	if lead <= 0 {
		lead = DefaultLeadTimeDays
	}
	planned := d.AddDate(0, 0, -lead)
	return ProductionWindow{Delivery: &d, Planned: &planned}
}

// DeriveProductionWindow uses the default 14 day lead time.
func DeriveProductionWindow(raw any) ProductionWindow {
	return NewCalculator(DefaultLeadTimeDays).Window(raw)
}

// ParseDate accepts a time, an ISO or day-first date string, or a
// spreadsheet date serial (number, or numeric string from 1990 on). The
// result is truncated to midnight UTC.
func ParseDate(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return dateOnly(v), true
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return dateOnly(*v), true
	case float64:
		return fromSerial(v)
	case float32:
		return fromSerial(float64(v))
	case int:
		return fromSerial(float64(v))
	case int64:
		return fromSerial(float64(v))
	case string:
		return parseDateString(v)
	case []byte:
		return parseDateString(string(v))
	}
	return time.Time{}, false
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		// Text cells holding small numbers are years or typos, not dates.
		if f < minTextSerial {
			return time.Time{}, false
		}
		return fromSerial(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}
	return time.Time{}, false
}

// minTextSerial is the serial of 1990-01-01, the earliest date accepted from
// a numeric string.
const minTextSerial = 32874

// fromSerial converts a 1900-system spreadsheet serial. Serials below 1 or
// beyond year 9999 are rejected.
func fromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < 1 || serial > 2958465 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return dateOnly(t), true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date pointer for persistence; nil stays nil.
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
