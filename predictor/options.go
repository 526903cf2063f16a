package predictor

import (
	"io/fs"

	"go.opentelemetry.io/otel/metric"

	"github.com/RyanBlaney/sonido-voz/analysis"
	"github.com/RyanBlaney/sonido-voz/features"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/model"
	"github.com/RyanBlaney/sonido-voz/transcode"
)

// Option configures a Predictor
type Option func(*options)

type options struct {
	bundle        *model.Bundle
	bundleDir     string
	bundleFS      fs.FS
	loaderConfig  *transcode.LoaderConfig
	analysis      *analysis.Config
	normalization *features.Normalization
	logger        logging.Logger
	meterProvider metric.MeterProvider
	workers       int
	eager         bool
}

// WithBundle uses an already loaded artifact bundle
func WithBundle(b *model.Bundle) Option {
	return func(o *options) { o.bundle = b }
}

// WithBundleDir loads artifacts from a directory on first use
func WithBundleDir(dir string) Option {
	return func(o *options) { o.bundleDir = dir }
}

// WithBundleFS loads artifacts from fsys on first use
func WithBundleFS(fsys fs.FS) Option {
	return func(o *options) { o.bundleFS = fsys }
}

// WithLoaderConfig sets the signal loader configuration
func WithLoaderConfig(cfg *transcode.LoaderConfig) Option {
	return func(o *options) { o.loaderConfig = cfg }
}

// WithAnalysisConfig sets the frame analyzer configuration
func WithAnalysisConfig(cfg *analysis.Config) Option {
	return func(o *options) { o.analysis = cfg }
}

// WithNormalization overrides the feature units recorded in the bundle
func WithNormalization(n *features.Normalization) Option {
	return func(o *options) { o.normalization = n }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMeterProvider records metrics on mp instead of the global provider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithWorkers bounds PredictBatch parallelism
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithEagerLoad loads the artifacts in New instead of on first use
func WithEagerLoad() Option {
	return func(o *options) { o.eager = true }
}
