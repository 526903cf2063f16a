package transcode

import (
	"fmt"
	"time"
)

// Waveform is a decoded mono signal at a known sample rate.
// It belongs to a single prediction request; call Release once the
// analyzer is done with it.
type Waveform struct {
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
	// SourceRate and SourceChannels describe the input before conversion
	SourceRate     int    `json:"source_rate,omitempty"`
	SourceChannels int    `json:"source_channels,omitempty"`
	Codec          string `json:"codec,omitempty"`
}

// NewWaveform wraps samples that are already mono at sampleRate
func NewWaveform(samples []float64, sampleRate int) *Waveform {
	return &Waveform{
		Samples:        samples,
		SampleRate:     sampleRate,
		SourceRate:     sampleRate,
		SourceChannels: 1,
		Codec:          "pcm",
	}
}

// Validate checks the non-empty / positive-rate invariants
func (w *Waveform) Validate() error {
	if w == nil {
		return fmt.Errorf("nil waveform")
	}
	if w.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %d", w.SampleRate)
	}
	if len(w.Samples) == 0 {
		return fmt.Errorf("waveform has no samples")
	}
	return nil
}

// Duration returns the length of the signal
func (w *Waveform) Duration() time.Duration {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Nyquist returns half the sample rate in Hz
func (w *Waveform) Nyquist() float64 {
	return float64(w.SampleRate) / 2.0
}

// Release drops the sample buffer. Safe to call more than once.
func (w *Waveform) Release() {
	if w != nil {
		w.Samples = nil
	}
}
