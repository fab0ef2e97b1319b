package safe

import (
	"math"
	"testing"
)

func TestUint64ToInt64(t *testing.T) {
	tests := []struct {
		name    string
		in      uint64
		want    int64
		clamped bool
	}{
		{"zero", 0, 0, false},
		{"small", 42, 42, false},
		{"max int64", math.MaxInt64, math.MaxInt64, false},
		{"overflow", math.MaxInt64 + 1, math.MaxInt64, true},
		{"max uint64", math.MaxUint64, math.MaxInt64, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := Uint64ToInt64(tt.in)
			if got != tt.want || clamped != tt.clamped {
				t.Errorf("Uint64ToInt64(%d) = (%d, %v), want (%d, %v)", tt.in, got, clamped, tt.want, tt.clamped)
			}
		})
	}
}

func TestIntToInt32(t *testing.T) {
	tests := []struct {
		name    string
		in      int
		want    int32
		clamped bool
	}{
		{"zero", 0, 0, false},
		{"negative", -7, -7, false},
		{"max int32", math.MaxInt32, math.MaxInt32, false},
		{"overflow", math.MaxInt32 + 1, math.MaxInt32, true},
		{"underflow", math.MinInt32 - 1, math.MinInt32, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := IntToInt32(tt.in)
			if got != tt.want || clamped != tt.clamped {
				t.Errorf("IntToInt32(%d) = (%d, %v), want (%d, %v)", tt.in, got, clamped, tt.want, tt.clamped)
			}
		})
	}
}
