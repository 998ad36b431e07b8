package planning

import (
	"testing"
	"time"
)

func TestNormalizeMachine(t *testing.T) {
	cases := map[string]string{
		"4010":    "10",
		"40ab":    "AB",
		" 4012 ":  "12",
		"mazak":   "MAZAK",
		"1040":    "1040",
		"":        NoMachine,
		"   ":     NoMachine,
		"40":      NoMachine,
		"4040X":   "X",
		"BH11":    "BH11",
		"40-BH11": "-BH11",
	}
	for in, want := range cases {
		if got := NormalizeMachine(in); got != want {
			t.Errorf("NormalizeMachine(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeMachineIdempotent(t *testing.T) {
	inputs := []string{"4010", "404010", "40", "x40", "4040X", "", "-", "Mazak 2", "40a40"}
	for _, in := range inputs {
		once := NormalizeMachine(in)
		twice := NormalizeMachine(once)
		if once != twice {
			t.Errorf("NormalizeMachine not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSameMachine(t *testing.T) {
	if !SameMachine("4010", "10") {
		t.Error("4010 and 10 should match")
	}
	if SameMachine("4010", "4011") {
		t.Error("4010 and 4011 should not match")
	}
}

func TestWindowLeadTime(t *testing.T) {
	d := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	w := DeriveProductionWindow(d)
	if w.Delivery == nil || w.Planned == nil {
		t.Fatal("window should have both dates")
	}
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !w.Planned.Equal(want) {
		t.Errorf("Planned = %v, want %v", w.Planned, want)
	}
	if w.Planned.After(*w.Delivery) {
		t.Error("planned must not be after delivery")
	}
}

func TestWindowAcrossInputs(t *testing.T) {
	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	inputs := []any{
		"2024-06-15",
		"2024-06-15T10:30:00Z",
		"15-06-2024",
		"15/06/2024",
		45458.0,
		45458,
		"45458",
		time.Date(2024, 6, 15, 17, 45, 0, 0, time.UTC),
	}
	for _, in := range inputs {
		w := DeriveProductionWindow(in)
		if w.Delivery == nil {
			t.Errorf("Window(%v): delivery is nil", in)
			continue
		}
		if !w.Delivery.Equal(want) {
			t.Errorf("Window(%v).Delivery = %v, want %v", in, w.Delivery, want)
		}
		if got := w.Delivery.Sub(*w.Planned); got != 14*24*time.Hour {
			t.Errorf("Window(%v) lead = %v, want 336h", in, got)
		}
	}
}

func TestWindowUnparseable(t *testing.T) {
	for _, in := range []any{nil, "", "not a date", "32-13-2024", "2024", "24", "32873", -5.0, time.Time{}, struct{}{}} {
		w := DeriveProductionWindow(in)
		if w.Delivery != nil || w.Planned != nil {
			t.Errorf("Window(%v) = %+v, want empty", in, w)
		}
	}
}

func TestParseDateTextSerialFloor(t *testing.T) {
	got, ok := ParseDate("32874")
	if !ok || !got.Equal(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate(32874) = %v, %v, want 1990-01-01", got, ok)
	}
	if _, ok := ParseDate("2024"); ok {
		t.Error("a bare year must not parse as a serial")
	}
	if _, ok := ParseDate(2024.0); !ok {
		t.Error("numeric cells keep the full serial range")
	}
}

func TestCalculatorCustomLeadTime(t *testing.T) {
	c := NewCalculator(7)
	w := c.Window("2024-06-15")
	want := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	if w.Planned == nil || !w.Planned.Equal(want) {
		t.Errorf("Planned = %v, want %v", w.Planned, want)
	}
	if NewCalculator(0).LeadTimeDays != DefaultLeadTimeDays {
		t.Error("zero lead time should fall back to default")
	}
}

func TestClassifyBoundaries(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		days int
		want Urgency
	}{
		{-3, UrgencyRed},
		{0, UrgencyRed},
		{7, UrgencyRed},
		{8, UrgencyBlue},
		{14, UrgencyBlue},
		{15, UrgencyBlack},
		{60, UrgencyBlack},
	}
	for _, c := range cases {
		delivery := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, c.days)
		if got := Classify(delivery, now); got != c.want {
			t.Errorf("Classify(+%d days) = %q, want %q", c.days, got, c.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if FormatDate(nil) != nil {
		t.Error("nil date should format to nil")
	}
	d := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if s := FormatDate(&d); s == nil || *s != "2024-06-01" {
		t.Errorf("FormatDate = %v, want 2024-06-01", s)
	}
	if ISOWeek(d) != 22 {
		t.Errorf("ISOWeek = %d, want 22", ISOWeek(d))
	}
}
