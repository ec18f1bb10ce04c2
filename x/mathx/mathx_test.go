package mathx

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want int
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{5, 10, 0, 5}, // swapped bounds
		{20, 10, 0, 10},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d): expected %d, got %d", tt.v, tt.lo, tt.hi, tt.want, got)
		}
	}
}

func TestMinMax(t *testing.T) {
	if Min(3, 7) != 3 || Min(7, 3) != 3 {
		t.Error("Min returned the larger value")
	}
	if Max(uint8(3), uint8(7)) != 7 {
		t.Error("Max returned the smaller value")
	}
}

func TestCeilDiv(t *testing.T) {
	if got := CeilDiv(uint32(10), 3); got != 4 {
		t.Errorf("Expected 4, got %d", got)
	}
	if got := CeilDiv(uint32(9), 3); got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}
	if got := CeilDiv(uint64(1), 0); got != 0 {
		t.Errorf("Expected 0 for zero divisor, got %d", got)
	}
}
