package predictor

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// meterName is the instrumentation scope for all predictor metrics
const meterName = "github.com/RyanBlaney/sonido-voz/predictor"

// Pipeline stage names used as the "stage" attribute
const (
	StageLoadArtifacts = "load_artifacts"
	StageDecode        = "decode"
	StageAnalyze       = "analyze"
	StageClassify      = "classify"
)

// Metrics holds the OpenTelemetry instruments of the predictor.
// All fields are safe for concurrent use.
type Metrics struct {
	// Predictions counts successful predictions. Attributes: label, source
	Predictions metric.Int64Counter

	// Failures counts failed requests. Attributes: stage, kind
	Failures metric.Int64Counter

	// StageDuration tracks per-stage latency. Attribute: stage
	StageDuration metric.Float64Histogram
}

// latencyBuckets in seconds; decode and analysis of a few seconds of audio
// lands in the low tens of milliseconds
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5,
}

// NewMetrics creates the instruments on mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Predictions, err = m.Int64Counter("sonido_voz.predictions",
		metric.WithDescription("Completed predictions by label and input source."),
	); err != nil {
		return nil, err
	}
	if met.Failures, err = m.Int64Counter("sonido_voz.failures",
		metric.WithDescription("Failed predictions by pipeline stage and error kind."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("sonido_voz.stage.duration",
		metric.WithDescription("Latency of each pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments on the global meter provider
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("predictor: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordPrediction counts a completed prediction
func (m *Metrics) RecordPrediction(ctx context.Context, label string, source Source) {
	m.Predictions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("label", label),
			attribute.String("source", string(source)),
		),
	)
}

// RecordFailure counts a failed request at stage
func (m *Metrics) RecordFailure(ctx context.Context, stage string, err error) {
	kind := voiceerr.KindOf(err).String()
	if kind == voiceerr.KindUnknown.String() && ctx.Err() != nil {
		kind = "canceled"
	}
	m.Failures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("kind", kind),
		),
	)
}

// RecordStage records the time since start for stage
func (m *Metrics) RecordStage(ctx context.Context, stage string, start time.Time) {
	m.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}
