package server

import (
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/RyanBlaney/sonido-voz/server"

// Metrics holds the HTTP instruments
type Metrics struct {
	// HTTPRequestDuration tracks request latency. Attributes: method, route, status
	HTTPRequestDuration metric.Float64Histogram
}

var httpBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewMetrics creates the instruments on mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	dur, err := m.Float64Histogram("sonido_voz.http.request.duration",
		metric.WithDescription("Duration of HTTP requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpBuckets...),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{HTTPRequestDuration: dur}, nil
}
