package windowing

import (
	"math"
	"testing"
)

func TestHannPeriodic(t *testing.T) {
	w := NewHann(8, false)
	c := w.Coefficients()

	if c[0] != 0 {
		t.Errorf("c[0] = %v, want 0", c[0])
	}
	if math.Abs(c[4]-1.0) > 1e-12 {
		t.Errorf("c[4] = %v, want 1", c[4])
	}
	// periodic: c[i] == c[N-i]
	for i := 1; i < 4; i++ {
		if math.Abs(c[i]-c[8-i]) > 1e-12 {
			t.Errorf("c[%d]=%v != c[%d]=%v", i, c[i], 8-i, c[8-i])
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind    Type
		size    int
		first   float64
		wantErr bool
	}{
		{TypeHann, 16, 0, false},
		{"HANN", 16, 0, false},
		{TypeHamming, 16, 0.08, false},
		{TypeRectangular, 4, 1, false},
		{"kaiser", 16, 0, true},
		{TypeHann, 0, 0, true},
	}

	for _, tt := range tests {
		w, err := New(tt.kind, tt.size, true)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s/%d: expected error", tt.kind, tt.size)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tt.kind, err)
		}
		if got := w.Coefficients()[0]; math.Abs(got-tt.first) > 1e-12 {
			t.Errorf("%s: first coefficient = %v, want %v", tt.kind, got, tt.first)
		}
		if w.Size() != tt.size {
			t.Errorf("%s: size = %d", tt.kind, w.Size())
		}
	}
}

func TestApplyTo(t *testing.T) {
	w := NewHann(4, false)
	dst := make([]float64, 4)

	if err := w.ApplyTo(dst, []float64{2, 2, 2, 2}); err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 1, 2, 1}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-12 {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}

	if err := w.ApplyTo(dst, []float64{1, 2}); err == nil {
		t.Error("expected length mismatch error")
	}
}
