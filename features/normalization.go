package features

import (
	"fmt"
	"strings"
)

// Unit selects the divisor applied to a frequency in Hz
type Unit string

const (
	UnitHz      Unit = "hz"
	UnitKHz     Unit = "khz"
	UnitNyquist Unit = "nyquist"
)

// Divisor returns the value a frequency in Hz is divided by
func (u Unit) Divisor(nyquist float64) (float64, error) {
	switch Unit(strings.ToLower(string(u))) {
	case UnitHz:
		return 1.0, nil
	case UnitKHz:
		return 1000.0, nil
	case UnitNyquist:
		if nyquist <= 0 {
			return 0, fmt.Errorf("nyquist must be positive: %v", nyquist)
		}
		return nyquist, nil
	default:
		return 0, fmt.Errorf("unknown frequency unit: %q", u)
	}
}

// Normalization sets the units of the frequency-valued features.
// Spectral covers meanfreq, sd, median, Q25, Q75, IQR, mode and centroid;
// Track covers the fundamental and dominant frequency features.
type Normalization struct {
	Spectral Unit `yaml:"spectral" json:"spectral"`
	Track    Unit `yaml:"track" json:"track"`
}

// DefaultNormalization divides spectral statistics by the Nyquist frequency
// and reports pitch and dominant tracks in kHz
func DefaultNormalization() *Normalization {
	return &Normalization{
		Spectral: UnitNyquist,
		Track:    UnitKHz,
	}
}

// Validate checks both units are known
func (n *Normalization) Validate() error {
	if _, err := n.Spectral.Divisor(1); err != nil {
		return fmt.Errorf("spectral: %w", err)
	}
	if _, err := n.Track.Divisor(1); err != nil {
		return fmt.Errorf("track: %w", err)
	}
	return nil
}
