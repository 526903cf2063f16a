package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/RyanBlaney/sonido-voz/features"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/predictor"
)

var maleReference = []float64{
	0.0598, 0.0642, 0.0320, 0.0151, 0.0902, 0.0751, 12.863, 274.40, 0.8934, 0.4919,
	0.0, 0.0598, 0.0843, 0.0157, 0.2759, 0.0078, 0.0078, 0.0078, 0.0, 0.0,
}

type fixture struct {
	handler http.Handler
	reader  *sdkmetric.ManualReader
	spans   *tracetest.InMemoryExporter
}

func newFixture(t *testing.T, cfg *Config) *fixture {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	p, err := predictor.New(predictor.WithMeterProvider(mp), predictor.WithLogger(&logging.NoOpLogger{}))
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(p, cfg,
		WithMetrics(m),
		WithLogger(&logging.NoOpLogger{}),
		WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		})),
	)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{handler: s.Handler(), reader: reader, spans: exp}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func voiceWAV(t *testing.T, seconds, f0 float64) []byte {
	t.Helper()

	const rate = 22050
	data := make([]int, int(seconds*rate))
	for i := range data {
		x := float64(i) / rate
		data[i] = int(12000 * (math.Sin(2*math.Pi*f0*x) + 0.5*math.Sin(4*math.Pi*f0*x)))
	}

	// wav.Encoder needs an io.WriteSeeker
	path := filepath.Join(t.TempDir(), "voice.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[healthResponse](t, rec)
	if got.Status != "ok" || got.BundleVersion != "reference-1" {
		t.Errorf("unexpected health %+v", got)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing X-Correlation-ID header")
	}
}

func TestPredictUpload(t *testing.T) {
	f := newFixture(t, nil)
	wavData := voiceWAV(t, 1, 130)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", "voice.wav")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(wavData)
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/api/predict", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	got := decode[predictResponse](t, rec)
	if !got.Success || got.ExtractedFeatures == nil || len(got.PCAFeatures) != 6 {
		t.Errorf("unexpected response %+v", got)
	}
	if p := got.Probabilities["male"] + got.Probabilities["female"]; math.Abs(p-1) > 1e-9 {
		t.Errorf("probabilities sum to %v", p)
	}

	// Raw body gives the same answer
	raw := httptest.NewRequest("POST", "/api/predict", bytes.NewReader(wavData))
	raw.Header.Set("Content-Type", "audio/wav")
	rawRec := f.do(raw)
	if rawRec.Code != http.StatusOK {
		t.Fatalf("raw status = %d", rawRec.Code)
	}
	if decode[predictResponse](t, rawRec).Confidence != got.Confidence {
		t.Error("multipart and raw uploads disagree")
	}
}

func TestFeaturesEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest("POST", "/api/features", bytes.NewReader(voiceWAV(t, 1, 180))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	got := decode[map[string]json.RawMessage](t, rec)
	var feats map[string]float64
	if err := json.Unmarshal(got["extracted_features"], &feats); err != nil || len(feats) != 20 {
		t.Errorf("extracted_features = %s (%v)", got["extracted_features"], err)
	}
}

func TestPredictErrors(t *testing.T) {
	f := newFixture(t, &Config{Addr: ":0", MaxUploadBytes: 64 << 10, ShutdownTimeout: time.Second})

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
		kind   string
	}{
		{"empty body", func() *http.Request {
			return httptest.NewRequest("POST", "/api/predict", nil)
		}, http.StatusUnprocessableEntity, "empty_audio"},
		{"not audio", func() *http.Request {
			return httptest.NewRequest("POST", "/api/predict", strings.NewReader("hello"))
		}, http.StatusUnprocessableEntity, "decode"},
		{"too short", func() *http.Request {
			return httptest.NewRequest("POST", "/api/predict", bytes.NewReader(voiceWAV(t, 0.05, 120)))
		}, http.StatusUnprocessableEntity, "insufficient_signal"},
		{"too large", func() *http.Request {
			return httptest.NewRequest("POST", "/api/predict", bytes.NewReader(make([]byte, 128<<10)))
		}, http.StatusRequestEntityTooLarge, ""},
		{"multipart without audio", func() *http.Request {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			_ = mw.WriteField("other", "x")
			_ = mw.Close()
			req := httptest.NewRequest("POST", "/api/predict", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			return req
		}, http.StatusBadRequest, ""},
		{"wrong method", func() *http.Request {
			return httptest.NewRequest("GET", "/api/predict", nil)
		}, http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.req())
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.kind == "" {
				return
			}
			if got := decode[errorResponse](t, rec); got.Success || got.Kind != tt.kind {
				t.Errorf("unexpected error response %+v", got)
			}
		})
	}
}

func TestTestSample(t *testing.T) {
	f := newFixture(t, nil)

	body, _ := json.Marshal(testSampleRequest{SampleName: "male 1", Features: maleReference})
	rec := f.do(httptest.NewRequest("POST", "/api/test-sample", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	got := decode[predictResponse](t, rec)
	if got.Prediction != "male" || got.SampleName != "male 1" || len(got.RawFeatures) != 20 {
		t.Errorf("unexpected response %+v", got)
	}

	short, _ := json.Marshal(testSampleRequest{Features: maleReference[:19]})
	rec = f.do(httptest.NewRequest("POST", "/api/test-sample", bytes.NewReader(short)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("19 features: status = %d", rec.Code)
	}
	if got := decode[errorResponse](t, rec); got.Kind != "artifact_shape_mismatch" {
		t.Errorf("kind = %q", got.Kind)
	}

	rec = f.do(httptest.NewRequest("POST", "/api/test-sample", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: status = %d", rec.Code)
	}
}

func TestTestSamplesRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest("GET", "/api/test-samples", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	samples := decode[map[string]struct {
		Features map[string]float64 `json:"features"`
		Expected string             `json:"expected"`
	}](t, rec)
	if len(samples) != 4 {
		t.Fatalf("got %d samples", len(samples))
	}

	for name, smp := range samples {
		var ordered []float64
		for _, key := range features.Names() {
			ordered = append(ordered, smp.Features[key])
		}
		body, _ := json.Marshal(testSampleRequest{SampleName: name, Features: ordered})

		rec := f.do(httptest.NewRequest("POST", "/api/test-sample", bytes.NewReader(body)))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
		if got := decode[predictResponse](t, rec).Prediction; got != smp.Expected {
			t.Errorf("%s: prediction = %q, want %q", name, got, smp.Expected)
		}
	}
}

func TestMiddlewareRecords(t *testing.T) {
	f := newFixture(t, nil)

	f.do(httptest.NewRequest("GET", "/api/health", nil))
	f.do(httptest.NewRequest("GET", "/nope", nil))

	var rm metricdata.ResourceMetrics
	if err := f.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}

	routes := map[string]uint64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "sonido_voz.http.request.duration" {
				continue
			}
			hist := m.Data.(metricdata.Histogram[float64])
			for _, dp := range hist.DataPoints {
				route, _ := dp.Attributes.Value("route")
				routes[route.AsString()] += dp.Count
			}
		}
	}
	if routes["GET /api/health"] != 1 || routes["unmatched"] != 1 {
		t.Errorf("routes = %v", routes)
	}

	if spans := f.spans.GetSpans(); len(spans) != 2 {
		t.Errorf("got %d spans, want 2", len(spans))
	}
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# metrics") {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestServeShutdown(t *testing.T) {
	p, err := predictor.New(predictor.WithLogger(&logging.NoOpLogger{}))
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(p, &Config{Addr: "127.0.0.1:0", MaxUploadBytes: 1 << 20, ShutdownTimeout: time.Second},
		WithLogger(&logging.NoOpLogger{}))
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config: %v", err)
	}
	if err := (&Config{}).Validate(); err == nil {
		t.Error("expected error for empty config")
	}
	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for nil predictor")
	}
}
