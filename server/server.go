// Package server exposes the predictor over HTTP.
//
// Routes:
//
//	GET  /api/health        liveness plus bundle version
//	POST /api/predict       audio upload (multipart field "audio" or raw body)
//	POST /api/features      audio upload, returns the feature vector only
//	POST /api/test-sample   {"sample_name": ..., "features": [20 numbers]}
//	GET  /api/test-samples  labelled reference vectors
//	GET  /metrics           Prometheus scrape endpoint, when configured
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"

	"github.com/RyanBlaney/sonido-voz/features"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/model/bundled"
	"github.com/RyanBlaney/sonido-voz/predictor"
	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// multipartMemory is how much of a multipart upload is kept in memory
// before spilling to temp files
const multipartMemory = 4 << 20

// Server serves predictions over HTTP
type Server struct {
	predictor      *predictor.Predictor
	config         Config
	metrics        *Metrics
	metricsHandler http.Handler
	logger         logging.Logger
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records HTTP metrics on m instead of the global provider
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler serves h at GET /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server for p
func New(p *predictor.Predictor, config *Config, opts ...Option) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("predictor is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	s := &Server{
		predictor: p,
		config:    *config,
		logger:    logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		s.metrics = m
	}
	s.logger = s.logger.WithFields(logging.Fields{"component": "http_server"})

	return s, nil
}

// Handler returns the routed, instrumented handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/predict", s.handlePredict)
	mux.HandleFunc("POST /api/features", s.handleFeatures)
	mux.HandleFunc("POST /api/test-sample", s.handleTestSample)
	mux.HandleFunc("GET /api/test-samples", s.handleTestSamples)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return middleware(s.metrics, s.logger)(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", logging.Fields{"addr": ln.Addr().String()})
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	BundleVersion string `json:"bundle_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

type predictResponse struct {
	Success           bool               `json:"success"`
	SampleName        string             `json:"sample_name,omitempty"`
	Prediction        string             `json:"prediction"`
	Confidence        float64            `json:"confidence"`
	Probabilities     map[string]float64 `json:"probabilities"`
	ExtractedFeatures *features.Vector   `json:"extracted_features,omitempty"`
	RawFeatures       []float64          `json:"raw_features,omitempty"`
	ScaledFeatures    []float64          `json:"scaled_features"`
	PCAFeatures       []float64          `json:"pca_features"`
	BundleVersion     string             `json:"bundle_version"`
}

type featuresResponse struct {
	Success           bool            `json:"success"`
	ExtractedFeatures features.Vector `json:"extracted_features"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

type testSampleRequest struct {
	SampleName string    `json:"sample_name"`
	Features   []float64 `json:"features"`
}

type testSample struct {
	Features features.Vector `json:"features"`
	Expected string          `json:"expected"`
}

func newPredictResponse(r *predictor.Result) predictResponse {
	resp := predictResponse{
		Success:        true,
		Prediction:     r.Label,
		Confidence:     r.Confidence,
		Probabilities:  r.Probabilities,
		ScaledFeatures: r.Scaled,
		PCAFeatures:    r.Projected,
		BundleVersion:  r.BundleVersion,
	}
	if r.Source == predictor.SourceAudio {
		v := r.Features
		resp.ExtractedFeatures = &v
	} else {
		resp.RawFeatures = r.Features.Slice()
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	b, err := s.predictor.Bundle()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:  "fail",
			Message: "artifact bundle unavailable",
			Error:   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Message:       "Voice Prediction API is running",
		BundleVersion: b.Version(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	data, err := s.readAudio(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.predictor.Predict(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPredictResponse(res))
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	data, err := s.readAudio(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	v, err := s.predictor.ExtractFeatures(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, featuresResponse{Success: true, ExtractedFeatures: v})
}

func (s *Server) handleTestSample(w http.ResponseWriter, r *http.Request) {
	var req testSampleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, badRequest(fmt.Errorf("invalid request body: %w", err)))
		return
	}
	if req.Features == nil {
		s.writeError(w, r, badRequest(errors.New("features array is required")))
		return
	}

	res, err := s.predictor.PredictFromValues(r.Context(), req.Features)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := newPredictResponse(res)
	resp.SampleName = req.SampleName
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTestSamples(w http.ResponseWriter, r *http.Request) {
	samples, err := bundled.Samples()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make(map[string]testSample, len(samples))
	for _, smp := range samples {
		out[smp.Name] = testSample{Features: smp.Features, Expected: smp.Expected}
	}
	writeJSON(w, http.StatusOK, out)
}

// readAudio returns the uploaded audio from the multipart "audio" field or,
// for any other content type, the raw request body
func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	f, _, err := r.FormFile("audio")
	if err != nil {
		return nil, badRequest(errors.New("no audio file uploaded"))
	}
	defer f.Close()
	return io.ReadAll(f)
}

// requestError is a client error that carries no pipeline kind
type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &requestError{err} }

// statusFor maps an error to an HTTP status code
func statusFor(err error) int {
	var (
		maxBytes *http.MaxBytesError
		reqErr   *requestError
	)
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}

	switch voiceerr.KindOf(err) {
	case voiceerr.KindDecode, voiceerr.KindEmptyAudio, voiceerr.KindInsufficientSignal:
		return http.StatusUnprocessableEntity
	case voiceerr.KindArtifactShapeMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Success: false, Error: err.Error()}
	if kind := voiceerr.KindOf(err); kind != voiceerr.KindUnknown {
		resp.Kind = kind.String()
	}

	logger := s.logger.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error(err, "Request failed", logging.Fields{"path": r.URL.Path, "status": status})
	} else {
		logger.Debug("Request rejected", logging.Fields{"path": r.URL.Path, "status": status, "error": err.Error()})
	}

	writeJSON(w, status, resp)
}

// writeJSON encodes v as JSON with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error(err, "Failed to encode response")
	}
}
