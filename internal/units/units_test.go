package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false", u)
		}
	}
	for _, u := range []string{"", "knots", "MPS"} {
		if IsValid(u) {
			t.Errorf("IsValid(%q) = true", u)
		}
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"10 kmh", KmhToMps(10), 2.7777777},
		{"36 kmh", KmhToMps(36), 10},
		{"10 mps to kmh", MpsToKmh(10), 36},
		{"mph round trip", ConvertSpeed(MphToMps(60), MPH), 60},
		{"kph", ConvertSpeed(10, KPH), 36},
		{"kmph", ConvertSpeed(10, KMPH), 36},
		{"mps", ConvertSpeed(10, MPS), 10},
		{"unknown", ConvertSpeed(10, "furlongs"), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-6 {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
