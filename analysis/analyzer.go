package analysis

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-voz/algorithms/pitch"
	"github.com/RyanBlaney/sonido-voz/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voz/algorithms/windowing"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/transcode"
	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// Frame holds the measurements of one analysis window
type Frame struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`

	// Pitch is the F0 in Hz, meaningful only when Voiced
	Pitch           float64 `json:"pitch,omitempty"`
	PitchConfidence float64 `json:"pitch_confidence"`
	Voiced          bool    `json:"voiced"`

	// Magnitude is the one-sided magnitude spectrum of the windowed frame
	Magnitude []float64 `json:"-"`
	Energy    float64   `json:"energy"`
	Silent    bool      `json:"silent"`

	// Per-frame descriptors, filled only with Config.FrameDescriptors.
	// The feature vector derives sp.ent, sfm and centroid from the mean
	// spectrum, so these are for inspection only.
	Centroid float64 `json:"centroid,omitempty"` // Hz
	Entropy  float64 `json:"entropy,omitempty"`  // normalized [0,1]
	Flatness float64 `json:"flatness,omitempty"`

	// Dominant is the strongest in-band frequency in Hz, absent on silent frames
	Dominant    float64 `json:"dominant,omitempty"`
	HasDominant bool    `json:"has_dominant"`
}

// Analyzer produces frame sequences from waveforms. It is stateless and
// safe for concurrent use; each sequence owns its own buffers.
type Analyzer struct {
	config *Config
	window *windowing.Window
	logger logging.Logger
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(config *Config) (*Analyzer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}

	window, err := windowing.New(config.WindowType, config.WindowSize, false)
	if err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}

	return &Analyzer{
		config: config,
		window: window,
		logger: logging.WithFields(logging.Fields{
			"component": "frame_analyzer",
		}),
	}, nil
}

// Config returns the analyzer configuration
func (a *Analyzer) Config() Config {
	return *a.config
}

// FrameCount returns how many full windows fit in n samples
func (a *Analyzer) FrameCount(n int) int {
	if n < a.config.WindowSize {
		return 0
	}
	return 1 + (n-a.config.WindowSize)/a.config.HopSize
}

// Frames starts a lazy, single-pass frame sequence over w. The waveform
// must not be modified or released until the sequence is exhausted.
func (a *Analyzer) Frames(w *transcode.Waveform) (*FrameSequence, error) {
	const op = "analysis.Frames"

	if err := w.Validate(); err != nil {
		return nil, voiceerr.New(voiceerr.KindInsufficientSignal, op, err)
	}
	if len(w.Samples) < a.config.WindowSize {
		return nil, voiceerr.Errorf(voiceerr.KindInsufficientSignal, op,
			"%d samples is shorter than one %d-sample window", len(w.Samples), a.config.WindowSize)
	}

	detector, err := pitch.NewDetector(a.config.pitchParams(w.SampleRate), a.config.WindowSize)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindInvalidConfig, op, err)
	}

	lo, hi := spectral.BandBins(a.config.WindowSize, w.SampleRate, a.config.Band.Min, a.config.Band.Max)

	a.logger.Debug("Starting frame sequence", logging.Fields{
		"function":    "Frames",
		"samples":     len(w.Samples),
		"sample_rate": w.SampleRate,
		"frames":      a.FrameCount(len(w.Samples)),
		"band_bins":   fmt.Sprintf("%d-%d", lo, hi),
	})

	return &FrameSequence{
		analyzer: a,
		samples:  w.Samples,
		rate:     w.SampleRate,
		total:    a.FrameCount(len(w.Samples)),
		detector: detector,
		fft:      spectral.NewFFT(),
		freqs:    spectral.BinFrequencies(a.config.WindowSize, w.SampleRate),
		bandLo:   lo,
		bandHi:   hi,
		windowed: make([]float64, a.config.WindowSize),
	}, nil
}

// FrameSequence yields frames in order, scanner style:
//
//	for seq.Next() {
//		f := seq.Frame()
//	}
//	if err := seq.Err(); err != nil { ... }
type FrameSequence struct {
	analyzer *Analyzer
	samples  []float64
	rate     int
	total    int

	detector *pitch.Detector
	fft      *spectral.FFT
	freqs    []float64
	bandLo   int
	bandHi   int
	windowed []float64

	next    int
	current *Frame
	err     error
}

// Next advances to the next frame. It returns false when the sequence is
// exhausted or failed.
func (s *FrameSequence) Next() bool {
	if s.err != nil || s.next >= s.total {
		s.current = nil
		return false
	}

	f, err := s.measure(s.next)
	if err != nil {
		s.err = err
		s.current = nil
		return false
	}

	s.current = f
	s.next++
	return true
}

// Frame returns the frame produced by the last successful Next
func (s *FrameSequence) Frame() *Frame {
	return s.current
}

// Err returns the first error encountered
func (s *FrameSequence) Err() error {
	return s.err
}

// Len returns the total number of frames in the sequence
func (s *FrameSequence) Len() int {
	return s.total
}

// BinFrequencies returns the bin center frequencies in Hz
func (s *FrameSequence) BinFrequencies() []float64 {
	return s.freqs
}

// Band returns the [lo, hi) bin range of the analysis band
func (s *FrameSequence) Band() (int, int) {
	return s.bandLo, s.bandHi
}

// SampleRate returns the waveform sample rate
func (s *FrameSequence) SampleRate() int {
	return s.rate
}

func (s *FrameSequence) measure(index int) (*Frame, error) {
	cfg := s.analyzer.config
	start := index * cfg.HopSize
	raw := s.samples[start : start+cfg.WindowSize]

	if err := s.analyzer.window.ApplyTo(s.windowed, raw); err != nil {
		return nil, voiceerr.New(voiceerr.KindInvalidConfig, "analysis.FrameSequence.Next", err)
	}

	magnitude := s.fft.Magnitude(s.windowed)

	f := &Frame{
		Index:     index,
		Start:     time.Duration(start) * time.Second / time.Duration(s.rate),
		Magnitude: magnitude,
		Energy:    spectral.Energy(raw),
	}
	f.Silent = f.Energy < cfg.SilenceFloor

	if cfg.FrameDescriptors {
		power := spectral.Power(magnitude)
		f.Centroid = spectral.Centroid(magnitude, s.freqs)
		f.Entropy = spectral.Entropy(power)
		f.Flatness = spectral.Flatness(power)
	}

	if !f.Silent {
		f.Dominant, f.HasDominant = spectral.Dominant(magnitude, s.freqs, s.bandLo, s.bandHi)

		est := s.detector.Detect(raw)
		f.Voiced = est.Voiced
		f.PitchConfidence = est.Confidence
		if est.Voiced {
			f.Pitch = est.Frequency
		}
	}

	return f, nil
}
