// Package server exposes the conversion pipeline over HTTP: a
// synchronous multipart convert endpoint that streams back the ZIP,
// an optional asynchronous jobs API backed by the queue, and health.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/whereissushi/zpravodaj-api/convert"
	"github.com/whereissushi/zpravodaj-api/flipbook"
	"github.com/whereissushi/zpravodaj-api/observability"
	"github.com/whereissushi/zpravodaj-api/queue"
	"github.com/whereissushi/zpravodaj-api/storage"
)

// Converter runs one conversion. *convert.Converter satisfies it.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) (*flipbook.Bundle, *convert.Report, error)
}

// Enqueuer submits asynchronous jobs. *queue.Enqueuer satisfies it.
type Enqueuer interface {
	EnqueueConversion(ctx context.Context, p queue.Payload) (string, error)
}

// JobLog is the slice of the conversions log the HTTP layer needs.
// *storage.ConversionLog satisfies it.
type JobLog interface {
	Create(ctx context.Context, id, account, title, slug string) error
	Get(ctx context.Context, id string) (storage.Conversion, error)
	MarkFailed(ctx context.Context, id, code, message string) error
	Record(ctx context.Context, c storage.Conversion) error
}

// Check is a named health probe run by GET /healthz.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server routes conversion requests. Construct with New; the zero
// value is not usable.
type Server struct {
	converter      Converter
	enqueuer       Enqueuer
	jobs           JobLog
	checks         []Check
	logger         observability.Logger
	account        string
	maxUploadBytes int64
	convertTimeout time.Duration
	mux            *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger attaches a request and error logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithQueue enables the async jobs API.
func WithQueue(e Enqueuer) Option {
	return func(s *Server) { s.enqueuer = e }
}

// WithJobLog enables conversion bookkeeping and job lookups.
func WithJobLog(l JobLog) Option {
	return func(s *Server) { s.jobs = l }
}

// WithCheck registers a health probe.
func WithCheck(name string, probe func(ctx context.Context) error) Option {
	return func(s *Server) { s.checks = append(s.checks, Check{Name: name, Probe: probe}) }
}

// WithAccount sets the account recorded when requests omit one.
func WithAccount(account string) Option {
	return func(s *Server) { s.account = account }
}

// WithMaxUploadBytes bounds the request body size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) { s.maxUploadBytes = n }
}

// WithConvertTimeout bounds a synchronous conversion.
func WithConvertTimeout(d time.Duration) Option {
	return func(s *Server) { s.convertTimeout = d }
}

// New builds the server around a converter.
func New(conv Converter, opts ...Option) *Server {
	s := &Server{
		converter:      conv,
		logger:         observability.NopLogger{},
		account:        "default",
		maxUploadBytes: 100 << 20,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("POST /api/convert", s.handleConvert)
	s.mux.HandleFunc("POST /api/jobs", s.handleSubmitJob)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(sw, r)
	if r.URL.Path == "/healthz" {
		return
	}
	s.logger.Info("request",
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
		observability.Int("status", sw.status),
		observability.Duration("elapsed", time.Since(start)))
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps conversion error codes onto HTTP statuses: bad input
// is the client's fault, a missing recognizer is the host's.
func statusFor(code string) int {
	switch code {
	case convert.CodeDecodeError:
		return http.StatusBadRequest
	case convert.CodeOCRUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
