// Package predictor ties the pipeline together: signal loading, frame
// analysis, feature aggregation and the trained classifier chain.
//
// A Predictor is safe for concurrent use. Artifacts are loaded once, on
// first use unless WithEagerLoad is given, and shared read-only by every
// request afterwards.
package predictor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-voz/analysis"
	"github.com/RyanBlaney/sonido-voz/features"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/model"
	"github.com/RyanBlaney/sonido-voz/model/bundled"
	"github.com/RyanBlaney/sonido-voz/transcode"
	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// artifacts is the immutable state built from a bundle
type artifacts struct {
	bundle     *model.Bundle
	aggregator *features.Aggregator
}

// Predictor predicts the speaker gender of audio input
type Predictor struct {
	loader   *transcode.Loader
	analyzer *analysis.Analyzer
	metrics  *Metrics
	logger   logging.Logger
	workers  int

	load func() (*artifacts, error)
}

// New creates a predictor
func New(opts ...Option) (*Predictor, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	loaderCfg := o.loaderConfig
	if loaderCfg == nil {
		loaderCfg = transcode.DefaultLoaderConfig()
	}
	if err := loaderCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loader config: %w", err)
	}

	analyzer, err := analysis.NewAnalyzer(o.analysis)
	if err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	analysisCfg := analyzer.Config()
	if err := analysisCfg.ValidateRate(loaderCfg.TargetSampleRate); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}

	if o.normalization != nil {
		if err := o.normalization.Validate(); err != nil {
			return nil, fmt.Errorf("invalid normalization: %w", err)
		}
	}

	metrics := DefaultMetrics()
	if o.meterProvider != nil {
		if metrics, err = NewMetrics(o.meterProvider); err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	logger := o.logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	workers := o.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &Predictor{
		loader:   transcode.NewLoader(loaderCfg),
		analyzer: analyzer,
		metrics:  metrics,
		logger:   logger.WithFields(logging.Fields{"component": "predictor"}),
		workers:  workers,
	}
	p.load = sync.OnceValues(func() (*artifacts, error) {
		return p.loadArtifacts(o)
	})

	if o.eager {
		if _, err := p.load(); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Predictor) loadArtifacts(o *options) (*artifacts, error) {
	ctx := context.Background()
	start := time.Now()
	defer p.metrics.RecordStage(ctx, StageLoadArtifacts, start)

	var (
		b      *model.Bundle
		err    error
		origin string
	)
	switch {
	case o.bundle != nil:
		b, origin = o.bundle, "provided"
		if b.Chain == nil || b.Classifier == nil || b.Labels == nil {
			err = voiceerr.Errorf(voiceerr.KindArtifactLoad, "predictor.loadArtifacts", "incomplete bundle")
		} else {
			err = b.Validate()
		}
	case o.bundleDir != "":
		origin = o.bundleDir
		b, err = model.LoadDir(o.bundleDir)
	case o.bundleFS != nil:
		origin = "fs"
		b, err = model.Load(o.bundleFS)
	default:
		origin = "embedded"
		b, err = bundled.Load()
	}
	if err != nil {
		p.metrics.RecordFailure(ctx, StageLoadArtifacts, err)
		p.logger.Error(err, "Failed to load artifact bundle", logging.Fields{"origin": origin})
		return nil, err
	}

	norm := o.normalization
	if norm == nil {
		norm = b.Normalization()
	}

	p.logger.Info("Artifact bundle loaded", logging.Fields{
		"origin":     origin,
		"version":    b.Version(),
		"classifier": b.Classifier.Kind(),
		"components": b.Chain.OutputDim(),
		"classes":    b.Labels.Len(),
		"spectral":   string(norm.Spectral),
		"track":      string(norm.Track),
	})

	return &artifacts{
		bundle:     b,
		aggregator: features.NewAggregator(norm),
	}, nil
}

// Bundle returns the loaded artifact bundle, loading it if needed
func (p *Predictor) Bundle() (*model.Bundle, error) {
	a, err := p.load()
	if err != nil {
		return nil, err
	}
	return a.bundle, nil
}

// Predict classifies an in-memory audio file
func (p *Predictor) Predict(ctx context.Context, audio []byte) (*Result, error) {
	w, err := p.decode(ctx, func() (*transcode.Waveform, error) {
		return p.loader.LoadBytes(ctx, audio)
	})
	if err != nil {
		return nil, err
	}
	return p.predictWaveform(ctx, w)
}

// PredictFile classifies an audio file on disk
func (p *Predictor) PredictFile(ctx context.Context, path string) (*Result, error) {
	w, err := p.decode(ctx, func() (*transcode.Waveform, error) {
		return p.loader.LoadFile(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	return p.predictWaveform(ctx, w)
}

// PredictSamples classifies an already decoded mono signal. The signal is
// converted to the analysis rate first; w is not modified.
func (p *Predictor) PredictSamples(ctx context.Context, w *transcode.Waveform) (*Result, error) {
	conformed, err := p.decode(ctx, func() (*transcode.Waveform, error) {
		return p.loader.Conform(w)
	})
	if err != nil {
		return nil, err
	}
	return p.predictWaveform(ctx, conformed)
}

// ExtractFeatures returns the feature vector of an in-memory audio file
func (p *Predictor) ExtractFeatures(ctx context.Context, audio []byte) (features.Vector, error) {
	w, err := p.decode(ctx, func() (*transcode.Waveform, error) {
		return p.loader.LoadBytes(ctx, audio)
	})
	if err != nil {
		return features.Vector{}, err
	}
	defer w.Release()
	return p.extract(ctx, w)
}

// ExtractFeaturesFile returns the feature vector of an audio file on disk
func (p *Predictor) ExtractFeaturesFile(ctx context.Context, path string) (features.Vector, error) {
	w, err := p.decode(ctx, func() (*transcode.Waveform, error) {
		return p.loader.LoadFile(ctx, path)
	})
	if err != nil {
		return features.Vector{}, err
	}
	defer w.Release()
	return p.extract(ctx, w)
}

// PredictFromFeatures classifies a precomputed feature vector
func (p *Predictor) PredictFromFeatures(ctx context.Context, v features.Vector) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.classify(ctx, v, SourceFeatures)
}

// PredictFromValues classifies values given in canonical feature order
func (p *Predictor) PredictFromValues(ctx context.Context, values []float64) (*Result, error) {
	v, err := features.FromSlice(values)
	if err != nil {
		p.metrics.RecordFailure(ctx, StageClassify, err)
		return nil, err
	}
	return p.PredictFromFeatures(ctx, v)
}

// PredictBatch classifies audio files concurrently, bounded by the worker
// count. Failures are reported per item and never abort the batch.
func (p *Predictor) PredictBatch(ctx context.Context, paths []string) []BatchItem {
	items := make([]BatchItem, len(paths))

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, path := range paths {
		items[i].Input = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			items[i].Result, items[i].Err = p.PredictFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	return items
}

func (p *Predictor) decode(ctx context.Context, fn func() (*transcode.Waveform, error)) (*transcode.Waveform, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	w, err := fn()
	p.metrics.RecordStage(ctx, StageDecode, start)
	if err != nil {
		p.metrics.RecordFailure(ctx, StageDecode, err)
		p.logger.Debug("Decode failed", logging.Fields{"error": err.Error()})
		return nil, err
	}
	return w, nil
}

func (p *Predictor) predictWaveform(ctx context.Context, w *transcode.Waveform) (*Result, error) {
	defer w.Release()

	v, err := p.extract(ctx, w)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.classify(ctx, v, SourceAudio)
}

func (p *Predictor) extract(ctx context.Context, w *transcode.Waveform) (features.Vector, error) {
	a, err := p.load()
	if err != nil {
		return features.Vector{}, err
	}
	if err := ctx.Err(); err != nil {
		return features.Vector{}, err
	}

	start := time.Now()
	v, err := a.aggregator.Extract(ctx, p.analyzer, w)
	p.metrics.RecordStage(ctx, StageAnalyze, start)
	if err != nil {
		p.metrics.RecordFailure(ctx, StageAnalyze, err)
		return features.Vector{}, err
	}
	return v, nil
}

func (p *Predictor) classify(ctx context.Context, v features.Vector, source Source) (*Result, error) {
	a, err := p.load()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := a.run(v, source)
	p.metrics.RecordStage(ctx, StageClassify, start)
	if err != nil {
		p.metrics.RecordFailure(ctx, StageClassify, err)
		return nil, err
	}

	p.metrics.RecordPrediction(ctx, res.Label, source)
	p.logger.Debug("Prediction complete", logging.Fields{
		"label":      res.Label,
		"confidence": res.Confidence,
		"source":     string(source),
	})
	return res, nil
}

// run applies the scaler, projector and classifier to v
func (a *artifacts) run(v features.Vector, source Source) (*Result, error) {
	scaled, projected, err := a.bundle.Chain.Apply(v.Slice())
	if err != nil {
		return nil, err
	}

	idx, probs, err := a.bundle.Classifier.Predict(projected)
	if err != nil {
		return nil, err
	}

	label, err := a.bundle.Labels.Decode(idx)
	if err != nil {
		return nil, err
	}
	byLabel, err := a.bundle.Labels.Probabilities(probs)
	if err != nil {
		return nil, err
	}

	return &Result{
		Label:         label,
		Confidence:    probs[idx],
		Probabilities: byLabel,
		Features:      v,
		Scaled:        scaled,
		Projected:     projected,
		Source:        source,
		BundleVersion: a.bundle.Version(),
	}, nil
}
