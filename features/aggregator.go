package features

import (
	"context"

	"github.com/RyanBlaney/sonido-voz/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voz/algorithms/stats"
	"github.com/RyanBlaney/sonido-voz/analysis"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/transcode"
	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// ctxCheckInterval is how many frames are consumed between context checks
const ctxCheckInterval = 32

// Aggregator reduces a frame sequence to a Vector. It holds no per-call
// state and is safe for concurrent use.
type Aggregator struct {
	norm   Normalization
	logger logging.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(norm *Normalization) *Aggregator {
	if norm == nil {
		norm = DefaultNormalization()
	}
	return &Aggregator{
		norm: *norm,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_aggregator",
		}),
	}
}

// Extract runs the analyzer over w and aggregates the result
func (a *Aggregator) Extract(ctx context.Context, analyzer *analysis.Analyzer, w *transcode.Waveform) (Vector, error) {
	seq, err := analyzer.Frames(w)
	if err != nil {
		return Vector{}, err
	}
	return a.Aggregate(ctx, seq)
}

// Aggregate consumes seq and computes the feature vector
func (a *Aggregator) Aggregate(ctx context.Context, seq *analysis.FrameSequence) (Vector, error) {
	const op = "features.Aggregate"

	nyquist := float64(seq.SampleRate()) / 2
	spectralDiv, err := a.norm.Spectral.Divisor(nyquist)
	if err != nil {
		return Vector{}, voiceerr.New(voiceerr.KindInvalidConfig, op, err)
	}
	trackDiv, err := a.norm.Track.Divisor(nyquist)
	if err != nil {
		return Vector{}, voiceerr.New(voiceerr.KindInvalidConfig, op, err)
	}

	lo, hi := seq.Band()
	freqs := seq.BinFrequencies()[lo:hi]
	meanSpectrum := make([]float64, hi-lo)

	var (
		frames   int
		pitches  []float64
		dominant []float64
	)

	for seq.Next() {
		f := seq.Frame()

		for i, m := range f.Magnitude[lo:hi] {
			meanSpectrum[i] += m
		}
		if f.Voiced {
			pitches = append(pitches, f.Pitch/trackDiv)
		}
		if f.HasDominant {
			dominant = append(dominant, f.Dominant/trackDiv)
		}

		frames++
		if frames%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Vector{}, err
			}
		}
	}
	if err := seq.Err(); err != nil {
		return Vector{}, err
	}
	if frames == 0 {
		return Vector{}, voiceerr.Errorf(voiceerr.KindInsufficientSignal, op, "no frames produced")
	}

	for i := range meanSpectrum {
		meanSpectrum[i] /= float64(frames)
	}

	scaled := make([]float64, len(freqs))
	for i, hz := range freqs {
		scaled[i] = hz / spectralDiv
	}

	dist, err := stats.Describe(scaled, meanSpectrum)
	if err != nil {
		return Vector{}, voiceerr.New(voiceerr.KindInsufficientSignal, op, err)
	}

	power := spectral.Power(meanSpectrum)
	fun := stats.SummarizeTrack(pitches)
	dom := stats.SummarizeTrack(dominant)

	var v Vector
	v[MeanFreq] = dist.Mean
	v[SD] = dist.StdDev
	v[Median] = dist.Median
	v[Q25] = dist.Q25
	v[Q75] = dist.Q75
	v[IQR] = dist.IQR
	v[Skew] = dist.Skewness
	v[Kurt] = dist.Kurtosis
	v[SpEnt] = spectral.Entropy(power)
	v[SFM] = spectral.Flatness(power)
	v[Mode] = dist.Mode
	v[Centroid] = dist.Mean
	v[MeanFun] = fun.Mean
	v[MinFun] = fun.Min
	v[MaxFun] = fun.Max
	v[MeanDom] = dom.Mean
	v[MinDom] = dom.Min
	v[MaxDom] = dom.Max
	v[DFRange] = dom.Range
	v[ModIndx] = dom.ModulationIndex

	a.logger.Debug("Features aggregated", logging.Fields{
		"function":        "Aggregate",
		"frames":          frames,
		"voiced_frames":   len(pitches),
		"dominant_frames": len(dominant),
		"meanfun":         v[MeanFun],
	})

	return v, nil
}
