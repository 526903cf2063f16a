package analysis

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-voz/algorithms/pitch"
	"github.com/RyanBlaney/sonido-voz/algorithms/windowing"
)

// FreqRange is a frequency band in Hz. Max <= 0 means up to Nyquist.
type FreqRange struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Config holds analyzer configuration
type Config struct {
	WindowSize int            `yaml:"window_size" json:"window_size"`
	HopSize    int            `yaml:"hop_size" json:"hop_size"`
	WindowType windowing.Type `yaml:"window_type" json:"window_type"`

	// Band is the range used for the spectral distribution and the
	// dominant frequency search
	Band FreqRange `yaml:"band" json:"band"`

	// SilenceFloor is the mean squared amplitude below which a frame is
	// treated as silent (no pitch, no dominant frequency)
	SilenceFloor float64 `yaml:"silence_floor" json:"silence_floor"`

	// FrameDescriptors fills Frame.Centroid, Entropy and Flatness
	FrameDescriptors bool `yaml:"frame_descriptors" json:"frame_descriptors"`

	PitchMethod      pitch.Method `yaml:"pitch_method" json:"pitch_method"`
	PitchMin         float64      `yaml:"pitch_min" json:"pitch_min"`
	PitchMax         float64      `yaml:"pitch_max" json:"pitch_max"`
	VoicingThreshold float64      `yaml:"voicing_threshold" json:"voicing_threshold"`
	YinThreshold     float64      `yaml:"yin_threshold" json:"yin_threshold"`
}

// DefaultConfig returns STFT settings matching the reference extractor
// (2048-sample Hann window, 512 hop) and a 50-280 Hz voice pitch band
func DefaultConfig() *Config {
	defaults := pitch.DefaultParams(0)
	return &Config{
		WindowSize:       2048,
		HopSize:          512,
		WindowType:       windowing.TypeHann,
		Band:             FreqRange{Min: 20, Max: 0},
		SilenceFloor:     1e-8,
		PitchMethod:      defaults.Method,
		PitchMin:         defaults.MinFreq,
		PitchMax:         defaults.MaxFreq,
		VoicingThreshold: defaults.VoicingThreshold,
		YinThreshold:     defaults.YinThreshold,
	}
}

// Validate validates the analyzer configuration
func (c *Config) Validate() error {
	var errs []error

	if c.WindowSize < 64 {
		errs = append(errs, fmt.Errorf("window size must be at least 64: %d", c.WindowSize))
	}
	if c.HopSize <= 0 || c.HopSize > c.WindowSize {
		errs = append(errs, fmt.Errorf("hop size must be in (0, window size]: %d", c.HopSize))
	}
	if c.Band.Min < 0 || (c.Band.Max > 0 && c.Band.Max <= c.Band.Min) {
		errs = append(errs, fmt.Errorf("invalid band: %.1f-%.1f Hz", c.Band.Min, c.Band.Max))
	}
	if c.SilenceFloor < 0 {
		errs = append(errs, fmt.Errorf("silence floor must not be negative: %v", c.SilenceFloor))
	}
	if c.PitchMin <= 0 || c.PitchMax <= c.PitchMin {
		errs = append(errs, fmt.Errorf("invalid pitch range: %.1f-%.1f Hz", c.PitchMin, c.PitchMax))
	}
	if c.VoicingThreshold < 0 || c.VoicingThreshold > 1 {
		errs = append(errs, fmt.Errorf("voicing threshold must be in [0,1]: %v", c.VoicingThreshold))
	}
	if c.YinThreshold <= 0 || c.YinThreshold >= 1 {
		errs = append(errs, fmt.Errorf("yin threshold must be in (0,1): %v", c.YinThreshold))
	}

	return errors.Join(errs...)
}

// ValidateRate checks the settings that depend on the sample rate: the pitch
// range must sit below Nyquist and its longest lag must fit in one window
func (c *Config) ValidateRate(sampleRate int) error {
	if _, err := pitch.NewDetector(c.pitchParams(sampleRate), c.WindowSize); err != nil {
		return fmt.Errorf("pitch at %d Hz: %w", sampleRate, err)
	}
	return nil
}

// pitchParams builds detector params for a sample rate
func (c *Config) pitchParams(sampleRate int) pitch.Params {
	return pitch.Params{
		Method:           c.PitchMethod,
		SampleRate:       sampleRate,
		MinFreq:          c.PitchMin,
		MaxFreq:          c.PitchMax,
		VoicingThreshold: c.VoicingThreshold,
		YinThreshold:     c.YinThreshold,
		SilenceFloor:     c.SilenceFloor,
	}
}
