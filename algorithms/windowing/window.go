package windowing

import (
	"fmt"
	"math"
	"strings"
)

// Type names a window function
type Type string

const (
	TypeHann        Type = "hann"
	TypeHamming     Type = "hamming"
	TypeRectangular Type = "rectangular"
)

// Window holds precomputed coefficients for one window length.
// A Window is read-only after construction and safe for concurrent use.
type Window struct {
	kind         Type
	size         int
	symmetric    bool
	coefficients []float64
}

// New creates a window by type name. Periodic windows (symmetric=false)
// match the FFT-bin convention used for STFT analysis.
func New(kind Type, size int, symmetric bool) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive: %d", size)
	}

	w := &Window{
		kind:      Type(strings.ToLower(string(kind))),
		size:      size,
		symmetric: symmetric,
	}

	switch w.kind {
	case TypeHann:
		w.generateCosine(0.5, 0.5)
	case TypeHamming:
		w.generateCosine(0.54, 0.46)
	case TypeRectangular, "":
		w.kind = TypeRectangular
		w.coefficients = make([]float64, size)
		for i := range w.coefficients {
			w.coefficients[i] = 1.0
		}
	default:
		return nil, fmt.Errorf("unsupported window type: %s", kind)
	}

	return w, nil
}

// NewHann creates a Hann window
func NewHann(size int, symmetric bool) *Window {
	w, err := New(TypeHann, size, symmetric)
	if err != nil {
		return &Window{kind: TypeHann}
	}
	return w
}

// generateCosine fills a0 - a1*cos(2*pi*i/N)
func (w *Window) generateCosine(a0, a1 float64) {
	w.coefficients = make([]float64, w.size)

	denominator := float64(w.size)
	if w.symmetric {
		denominator = float64(w.size - 1)
	}
	if denominator <= 0 {
		w.coefficients[0] = 1.0
		return
	}

	for i := range w.size {
		w.coefficients[i] = a0 - a1*math.Cos(2*math.Pi*float64(i)/denominator)
	}
}

// ApplyTo writes signal*window into dst. Both must have the window length.
func (w *Window) ApplyTo(dst, signal []float64) error {
	if len(signal) != w.size || len(dst) != w.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	for i, c := range w.coefficients {
		dst[i] = signal[i] * c
	}

	return nil
}

// Apply applies the window to a signal (creates new array)
func (w *Window) Apply(signal []float64) ([]float64, error) {
	out := make([]float64, len(signal))
	if err := w.ApplyTo(out, signal); err != nil {
		return nil, err
	}
	return out, nil
}

// Coefficients returns a copy of the window coefficients
func (w *Window) Coefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// Size returns the window size
func (w *Window) Size() int {
	return w.size
}

// Type returns the window type
func (w *Window) Type() Type {
	return w.kind
}
