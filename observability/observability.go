package observability

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type int64Field struct {
	key string
	val int64
}

func (f int64Field) Key() string        { return f.key }
func (f int64Field) Value() interface{} { return f.val }

type float64Field struct {
	key string
	val float64
}

func (f float64Field) Key() string        { return f.key }
func (f float64Field) Value() interface{} { return f.val }

type durationField struct {
	key string
	val time.Duration
}

func (f durationField) Key() string        { return f.key }
func (f durationField) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field             { return stringField{key, value} }
func Int(key string, value int) Field            { return intField{key, value} }
func Int64(key string, value int64) Field        { return int64Field{key, value} }
func Float64(key string, value float64) Field    { return float64Field{key, value} }
func Duration(key string, d time.Duration) Field { return durationField{key, d} }
func Error(key string, err error) Field          { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// TextLogger writes one key=value line per entry. It is the logger the
// service binaries install; libraries default to NopLogger.
type TextLogger struct {
	mu    *sync.Mutex
	out   io.Writer
	min   Level
	bound []Field
	now   func() time.Time
}

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// NewTextLogger writes entries at or above min to out.
func NewTextLogger(out io.Writer, min Level) *TextLogger {
	return &TextLogger{mu: &sync.Mutex{}, out: out, min: min, now: time.Now}
}

func (l *TextLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *TextLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *TextLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *TextLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

// With shares the parent's writer lock so interleaved children stay
// line-atomic.
func (l *TextLogger) With(fields ...Field) Logger {
	child := &TextLogger{mu: l.mu, out: l.out, min: l.min, now: l.now}
	child.bound = append(append([]Field{}, l.bound...), fields...)
	return child
}

func (l *TextLogger) log(lv Level, msg string, fields []Field) {
	if lv < l.min {
		return
	}
	var b strings.Builder
	b.WriteString(l.now().UTC().Format(time.RFC3339))
	b.WriteString(" level=")
	b.WriteString(lv.String())
	b.WriteString(" msg=")
	b.WriteString(quoteIfNeeded(msg))
	for _, f := range l.bound {
		writeField(&b, f)
	}
	for _, f := range fields {
		writeField(&b, f)
	}
	b.WriteByte('\n')
	l.mu.Lock()
	io.WriteString(l.out, b.String())
	l.mu.Unlock()
}

func writeField(b *strings.Builder, f Field) {
	b.WriteByte(' ')
	b.WriteString(f.Key())
	b.WriteByte('=')
	b.WriteString(quoteIfNeeded(fmt.Sprint(f.Value())))
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	if s == "" {
		return `""`
	}
	return s
}

// Tracer provides span hooks around pipeline stages.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents one timed stage.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// LogTracer reports span durations and tags through a Logger when the
// span finishes.
func LogTracer(logger Logger) Tracer { return logTracer{logger: logger} }

type logTracer struct{ logger Logger }

func (t logTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &logSpan{logger: t.logger, name: name, start: time.Now(), tags: map[string]interface{}{}}
}

type logSpan struct {
	mu     sync.Mutex
	logger Logger
	name   string
	start  time.Time
	tags   map[string]interface{}
	err    error
}

func (s *logSpan) SetTag(key string, value interface{}) {
	s.mu.Lock()
	s.tags[key] = value
	s.mu.Unlock()
}

func (s *logSpan) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *logSpan) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := []Field{String("span", s.name), Duration("elapsed", time.Since(s.start))}
	keys := make([]string, 0, len(s.tags))
	for k := range s.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, String(k, fmt.Sprint(s.tags[k])))
	}
	if s.err != nil {
		fields = append(fields, Error("error", s.err))
		s.logger.Error("span finished", fields...)
		return
	}
	s.logger.Debug("span finished", fields...)
}
