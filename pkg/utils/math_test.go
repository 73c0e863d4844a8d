package utils

import (
	"math"
	"testing"
)

func TestClampFloat64(t *testing.T) {
	tests := []struct {
		value, min, max, expected float64
	}{
		{5.5, 0, 10, 5.5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{3, math.Inf(-1), math.Inf(1), 3},
	}

	for _, tt := range tests {
		result := ClampFloat64(tt.value, tt.min, tt.max)
		if result != tt.expected {
			t.Errorf("ClampFloat64(%f, %f, %f) = %f, expected %f", tt.value, tt.min, tt.max, result, tt.expected)
		}
	}
}

func TestClampInt(t *testing.T) {
	if got := ClampInt(-3, 0, 5); got != 0 {
		t.Errorf("ClampInt(-3, 0, 5) = %d, expected 0", got)
	}
	if got := ClampInt(9, 0, 5); got != 5 {
		t.Errorf("ClampInt(9, 0, 5) = %d, expected 5", got)
	}
	if got := ClampInt(2, 0, 5); got != 2 {
		t.Errorf("ClampInt(2, 0, 5) = %d, expected 2", got)
	}
}

func TestCeilDiv(t *testing.T) {
	tests := []struct{ a, b, expected int }{
		{10, 3, 4},
		{9, 3, 3},
		{1, 5, 1},
		{0, 5, 0},
	}
	for _, tt := range tests {
		if got := CeilDiv(tt.a, tt.b); got != tt.expected {
			t.Errorf("CeilDiv(%d, %d) = %d, expected %d", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestLinearRamp(t *testing.T) {
	tests := []struct {
		name                    string
		x, low, high, full, exp float64
	}{
		{"below low", -10, 0, 10, 100, 0},
		{"at low", 0, 0, 10, 100, 0},
		{"midpoint", 5, 0, 10, 100, 50},
		{"at high", 10, 0, 10, 100, 100},
		{"above high", 50, 0, 10, 100, 100},
		{"degenerate bracket", 5, 5, 5, 100, 0},
		{"infinite bracket", 5, math.Inf(1), math.Inf(1), 100, 0},
		{"zero capacity", 5, 0, 10, 0, 0},
		{"negative prices", -100, -200, -50, 30, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LinearRamp(tt.x, tt.low, tt.high, tt.full)
			if math.Abs(got-tt.exp) > 1e-9 {
				t.Errorf("LinearRamp = %f, expected %f", got, tt.exp)
			}
		})
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) {
		t.Error("1.5 should be finite")
	}
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || IsFinite(math.Inf(-1)) {
		t.Error("NaN and infinities should not be finite")
	}
}

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("Mean = %f, expected 2.5", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %f, expected 0", got)
	}
}

func TestStdDev(t *testing.T) {
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.0) > 1e-9 {
		t.Errorf("StdDev = %f, expected 2", got)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		percentile float64
		expected   float64
	}{
		{0, 1},
		{50, 5.5},
		{100, 10},
	}

	for _, tt := range tests {
		result := Percentile(values, tt.percentile)
		if math.Abs(result-tt.expected) > 1e-9 {
			t.Errorf("Percentile(%f) = %f, expected %f", tt.percentile, result, tt.expected)
		}
	}

	if Percentile(nil, 50) != 0 {
		t.Error("Percentile of empty slice should be 0")
	}
}

func TestRound(t *testing.T) {
	if got := Round(3.14159, 2); got != 3.14 {
		t.Errorf("Round = %f, expected 3.14", got)
	}
}
