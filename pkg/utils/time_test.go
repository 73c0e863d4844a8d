package utils

import (
	"testing"
	"time"
)

func TestFloorHour(t *testing.T) {
	in := time.Date(2025, 3, 4, 13, 45, 12, 0, time.UTC)
	want := time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)
	if got := FloorHour(in); !got.Equal(want) {
		t.Errorf("FloorHour = %v, expected %v", got, want)
	}
}

func TestStartOfDayAndSameDay(t *testing.T) {
	in := time.Date(2025, 3, 4, 13, 45, 0, 0, time.UTC)
	if got := StartOfDay(in); !got.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfDay = %v", got)
	}
	if !SameDay(in, in.Add(-13*time.Hour)) {
		t.Error("expected same day")
	}
	if SameDay(in, in.Add(11*time.Hour)) {
		t.Error("expected different days")
	}
}

func TestHoursBetween(t *testing.T) {
	a := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := HoursBetween(a, a.Add(49*time.Hour)); got != 49 {
		t.Errorf("HoursBetween = %d, expected 49", got)
	}
	if got := HoursBetween(a.Add(3*time.Hour), a); got != -3 {
		t.Errorf("HoursBetween = %d, expected -3", got)
	}
}

func TestDaysInYear(t *testing.T) {
	tests := []struct {
		year int
		days int
	}{
		{2023, 365},
		{2024, 366},
		{1900, 365},
		{2000, 366},
	}
	for _, tt := range tests {
		if got := DaysInYear(tt.year); got != tt.days {
			t.Errorf("DaysInYear(%d) = %d, expected %d", tt.year, got, tt.days)
		}
	}
}

func TestIsWeekend(t *testing.T) {
	sat := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	mon := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	if !IsWeekend(sat) || !IsWeekend(sat.Add(24*time.Hour)) {
		t.Error("Saturday and Sunday should be weekend days")
	}
	if IsWeekend(mon) {
		t.Error("Monday should not be a weekend day")
	}
}

func TestMinMaxTime(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	if !MinTime(t2, t1).Equal(t1) {
		t.Errorf("Expected min to be %v", t1)
	}
	if !MaxTime(t1, t2).Equal(t2) {
		t.Errorf("Expected max to be %v", t2)
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(1500 * time.Millisecond); got != "1.5s" {
		t.Errorf("FormatDuration = %s, expected 1.5s", got)
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2025, 1, 1, 6, 30, 0, 0, time.UTC)
	for _, in := range []string{"2025-01-01 06:30", " 2025-01-01 06:30:00 ", "2025-01-01T06:30", "2025-01-01T06:30:00Z"} {
		got, err := ParseTime(in)
		if err != nil {
			t.Fatalf("ParseTime(%q): %v", in, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %v, expected %v", in, got, want)
		}
	}
	day, err := ParseTime("2025-02-03")
	if err != nil || !day.Equal(time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseTime date-only = %v, %v", day, err)
	}
	if _, err := ParseTime("03/02/2025"); err == nil {
		t.Error("expected error for unsupported layout")
	}
}
