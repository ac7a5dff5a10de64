package units

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBatteryStatus(t *testing.T) {
	tests := []struct {
		code int64
		want string
	}{
		{code: 1, want: "Normal"},
		{code: 0, want: "Low"},
		{code: 2, want: "Unknown"},
		{code: -1, want: "Unknown"},
	}
	for _, tt := range tests {
		if got := BatteryStatus(tt.code); got != tt.want {
			t.Errorf("BatteryStatus(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name string
		fn   func(float64) float64
		in   float64
		want float64
	}{
		{name: "in to mm", fn: InchesToMillimeters, in: 1, want: 25.4},
		{name: "in to mm zero", fn: InchesToMillimeters, in: 0, want: 0},
		{name: "freezing", fn: FahrenheitToCelsius, in: 32, want: 0},
		{name: "boiling", fn: FahrenheitToCelsius, in: 212, want: 100},
		{name: "minus forty", fn: FahrenheitToCelsius, in: -40, want: -40},
		{name: "inhg to hpa", fn: InHgToHPa, in: 1, want: 33.86389},
		{name: "mph to kph", fn: MPHToKPH, in: 10, want: 16.09344},
		{name: "mph to mps", fn: MPHToMPS, in: 10, want: 4.4704},
		{name: "mph to ftps", fn: MPHToFTPS, in: 10, want: 14.66667},
		{name: "mph to knots", fn: MPHToKnots, in: 10, want: 8.68976},
		{name: "wm2 to lux", fn: WM2ToLux, in: 100, want: 12670},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); !almostEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in        float64
		precision int
		want      float64
	}{
		{in: 16.09344, precision: 2, want: 16.09},
		{in: 14.66667, precision: 2, want: 14.67},
		{in: FahrenheitToCelsius(98.6), precision: 2, want: 37},
		{in: 1.005, precision: 0, want: 1},
		{in: 2.5, precision: 0, want: 3},
		{in: -0.001, precision: 2, want: 0},
		{in: 29.9213, precision: 3, want: 29.921},
	}
	for _, tt := range tests {
		got := Round(tt.in, tt.precision)
		if got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.in, tt.precision, got, tt.want)
		}
		if math.Signbit(got) && got == 0 {
			t.Errorf("Round(%v, %d) returned negative zero", tt.in, tt.precision)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{in: 55, want: 55},
		{in: 55.9, want: 55},
		{in: -3.7, want: -3},
		{in: 0.2, want: 0},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in); got != tt.want {
			t.Errorf("Truncate(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
