package pitch

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Method selects the F0 estimator
type Method int

const (
	// Autocorrelation picks the strongest normalized autocorrelation peak
	Autocorrelation Method = iota
	// Yin uses the cumulative mean normalized difference function
	Yin
)

// String returns the config name of the method
func (m Method) String() string {
	switch m {
	case Autocorrelation:
		return "acf"
	case Yin:
		return "yin"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod maps a config name to a Method
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "acf", "autocorrelation":
		return Autocorrelation, nil
	case "yin":
		return Yin, nil
	default:
		return 0, fmt.Errorf("unknown pitch method: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Params contains parameters for pitch detection
type Params struct {
	Method     Method  `yaml:"method" json:"method"`
	SampleRate int     `yaml:"-" json:"sample_rate"`
	MinFreq    float64 `yaml:"min_freq" json:"min_freq"` // Hz
	MaxFreq    float64 `yaml:"max_freq" json:"max_freq"` // Hz

	// VoicingThreshold is the minimum normalized autocorrelation peak for
	// a frame to count as voiced (ACF only)
	VoicingThreshold float64 `yaml:"voicing_threshold" json:"voicing_threshold"`
	// YinThreshold is the CMNDF dip threshold (YIN only)
	YinThreshold float64 `yaml:"yin_threshold" json:"yin_threshold"`
	// SilenceFloor is the frame energy below which no pitch is searched
	SilenceFloor float64 `yaml:"silence_floor" json:"silence_floor"`
}

// DefaultParams returns voice-band defaults for the given sample rate
func DefaultParams(sampleRate int) Params {
	return Params{
		Method:           Autocorrelation,
		SampleRate:       sampleRate,
		MinFreq:          50.0,  // low male voice
		MaxFreq:          280.0, // high female voice
		VoicingThreshold: 0.3,
		YinThreshold:     0.15,
		SilenceFloor:     1e-8,
	}
}

// Validate checks the parameter ranges
func (p Params) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %d", p.SampleRate)
	}
	if p.MinFreq <= 0 || p.MaxFreq <= p.MinFreq {
		return fmt.Errorf("invalid pitch range: %.1f-%.1f Hz", p.MinFreq, p.MaxFreq)
	}
	if p.MaxFreq >= float64(p.SampleRate)/2 {
		return fmt.Errorf("max pitch %.1f Hz must be below nyquist", p.MaxFreq)
	}
	if p.VoicingThreshold < 0 || p.VoicingThreshold > 1 {
		return fmt.Errorf("voicing threshold must be in [0,1]: %v", p.VoicingThreshold)
	}
	if p.YinThreshold <= 0 || p.YinThreshold >= 1 {
		return fmt.Errorf("yin threshold must be in (0,1): %v", p.YinThreshold)
	}
	return nil
}

// Estimate is the pitch of one frame. Frequency is meaningful only when
// Voiced is true.
type Estimate struct {
	Frequency  float64 `json:"frequency"`
	Confidence float64 `json:"confidence"`
	Voiced     bool    `json:"voiced"`
}

// Detector estimates F0 for fixed-size frames.
// Not safe for concurrent use; it reuses internal buffers.
type Detector struct {
	params Params
	minLag int
	maxLag int

	buf []float64
	aux []float64
}

// NewDetector creates a detector for frames of frameSize samples
func NewDetector(params Params, frameSize int) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	minLag := int(math.Floor(float64(params.SampleRate) / params.MaxFreq))
	maxLag := int(math.Ceil(float64(params.SampleRate) / params.MinFreq))
	minLag = max(minLag, 2)

	limit := frameSize - 2
	if params.Method == Yin {
		limit = frameSize/2 - 2
	}
	if maxLag > limit {
		return nil, fmt.Errorf("frame of %d samples too short for %.1f Hz (needs lag %d)", frameSize, params.MinFreq, maxLag)
	}

	return &Detector{
		params: params,
		minLag: minLag,
		maxLag: maxLag,
		buf:    make([]float64, maxLag+2),
		aux:    make([]float64, maxLag+2),
	}, nil
}

// Params returns the detector configuration
func (d *Detector) Params() Params {
	return d.params
}

// Detect estimates the pitch of one frame
func (d *Detector) Detect(frame []float64) Estimate {
	if len(frame) <= d.maxLag+1 {
		return Estimate{}
	}

	energy := floats.Dot(frame, frame)
	if energy/float64(len(frame)) < d.params.SilenceFloor {
		return Estimate{}
	}

	var period, confidence float64
	switch d.params.Method {
	case Yin:
		period, confidence = d.yin(frame)
	default:
		period, confidence = d.acf(frame, energy)
	}

	if period <= 0 {
		return Estimate{}
	}

	freq := float64(d.params.SampleRate) / period
	if freq < d.params.MinFreq || freq > d.params.MaxFreq {
		return Estimate{}
	}

	return Estimate{Frequency: freq, Confidence: confidence, Voiced: true}
}

// acf finds the strongest normalized autocorrelation lag in range
func (d *Detector) acf(frame []float64, energy float64) (float64, float64) {
	n := len(frame)
	r := d.buf

	// Lags minLag-1..maxLag+1 so interpolation has neighbours
	for tau := d.minLag - 1; tau <= d.maxLag+1; tau++ {
		r[tau] = floats.Dot(frame[:n-tau], frame[tau:]) / energy
	}

	best := d.minLag
	for tau := d.minLag + 1; tau <= d.maxLag; tau++ {
		if r[tau] > r[best] {
			best = tau
		}
	}

	if r[best] < d.params.VoicingThreshold {
		return 0, r[best]
	}

	// Edge of the search range is not a true peak
	if r[best] < r[best-1] || r[best] < r[best+1] {
		return 0, r[best]
	}

	return parabolicInterpolation(r, best), r[best]
}

// yin implements de Cheveigné & Kawahara (2002) restricted to the lag range
func (d *Detector) yin(frame []float64) (float64, float64) {
	halfN := len(frame) / 2
	if halfN+d.maxLag+1 > len(frame) {
		return 0, 0
	}
	diff := d.buf
	cmndf := d.aux

	cmndf[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau <= d.maxLag+1; tau++ {
		sum := 0.0
		for j := range halfN {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		diff[tau] = sum
		runningSum += sum

		if runningSum == 0 {
			cmndf[tau] = 1.0
			continue
		}
		cmndf[tau] = sum * float64(tau) / runningSum
	}

	// First dip below threshold, then walk down to its local minimum
	for tau := d.minLag; tau <= d.maxLag; tau++ {
		if cmndf[tau] >= d.params.YinThreshold {
			continue
		}
		for tau+1 <= d.maxLag && cmndf[tau+1] < cmndf[tau] {
			tau++
		}
		return parabolicInterpolation(cmndf[:d.maxLag+2], tau), 1.0 - cmndf[tau]
	}

	return 0, 0
}

// parabolicInterpolation refines a peak (or trough) index from its neighbours
func parabolicInterpolation(data []float64, peakIdx int) float64 {
	if peakIdx <= 0 || peakIdx >= len(data)-1 {
		return float64(peakIdx)
	}

	y1 := data[peakIdx-1]
	y2 := data[peakIdx]
	y3 := data[peakIdx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2

	if a == 0 {
		return float64(peakIdx)
	}

	offset := -b / (2 * a)
	if math.Abs(offset) > 1 {
		return float64(peakIdx)
	}

	return float64(peakIdx) + offset
}
