package utils

import (
	"math"
	"testing"
)

func TestCalculateGap(t *testing.T) {
	tests := []struct {
		name     string
		priceA   float64
		priceB   float64
		expected float64
	}{
		{
			name:     "positive gap A above B",
			priceA:   0.5200,
			priceB:   0.5197,
			expected: (0.5200 - 0.5197) / 0.5197 * 100,
		},
		{
			name:     "negative gap A below B",
			priceA:   0.5190,
			priceB:   0.5197,
			expected: (0.5190 - 0.5197) / 0.5197 * 100,
		},
		{
			name:     "equal prices",
			priceA:   100.0,
			priceB:   100.0,
			expected: 0,
		},
		{
			name:     "zero reference price",
			priceA:   100.0,
			priceB:   0,
			expected: 0,
		},
		{
			name:     "negative reference price",
			priceA:   100.0,
			priceB:   -1,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateGap(tt.priceA, tt.priceB)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("CalculateGap(%v, %v) = %v, expected %v",
					tt.priceA, tt.priceB, got, tt.expected)
			}
		})
	}
}

func TestCalculateGapSign(t *testing.T) {
	// Знак гэпа определяется относительно второй цены
	if got := CalculateGap(101, 100); got <= 0 {
		t.Errorf("expected positive gap, got %v", got)
	}
	if got := CalculateGap(99, 100); got >= 0 {
		t.Errorf("expected negative gap, got %v", got)
	}
}

func TestTopNotional(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		volume   float64
		expected float64
	}{
		{"normal", 0.52, 2000, 1040},
		{"zero price", 0, 2000, 0},
		{"zero volume", 0.52, 0, 0},
		{"negative volume", 0.52, -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopNotional(tt.price, tt.volume)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("TopNotional(%v, %v) = %v, expected %v",
					tt.price, tt.volume, got, tt.expected)
			}
		})
	}
}

func TestMinOf(t *testing.T) {
	if got := MinOf(1040, 980, 1100, 1005); got != 980 {
		t.Errorf("MinOf = %v, expected 980", got)
	}
	if got := MinOf(); got != 0 {
		t.Errorf("MinOf() = %v, expected 0", got)
	}
	if got := MinOf(5); got != 5 {
		t.Errorf("MinOf(5) = %v, expected 5", got)
	}
}

func TestRoundTo(t *testing.T) {
	tests := []struct {
		value    float64
		digits   int
		expected float64
	}{
		{0.05771, 2, 0.06},
		{-0.0649, 2, -0.06},
		{1.005, 0, 1},
		{123.456, 1, 123.5},
	}

	for _, tt := range tests {
		got := RoundTo(tt.value, tt.digits)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("RoundTo(%v, %d) = %v, expected %v",
				tt.value, tt.digits, got, tt.expected)
		}
	}
}
