package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/whereissushi/zpravodaj-api/convert"
	"github.com/whereissushi/zpravodaj-api/flipbook"
	"github.com/whereissushi/zpravodaj-api/observability"
	"github.com/whereissushi/zpravodaj-api/upload"
)

// Converter runs one conversion. *convert.Converter satisfies it.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) (*flipbook.Bundle, *convert.Report, error)
}

// Recorder persists job state transitions. *storage.ConversionLog
// satisfies it; a nil Recorder skips bookkeeping.
type Recorder interface {
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, pageCount, words int, bundleBytes int64, bundleURL string) error
	MarkFailed(ctx context.Context, id, code, message string) error
}

// Handler processes conversion tasks: load the PDF, convert, publish,
// record. Transient failures return plain errors so asynq retries
// them; hopeless inputs are wrapped with asynq.SkipRetry.
type Handler struct {
	Converter Converter
	Uploader  upload.Uploader
	Recorder  Recorder
	// Timeout bounds a single conversion; zero means the task context
	// alone governs.
	Timeout time.Duration
	// Client fetches pdf_url payloads; nil uses a 60s default.
	Client *http.Client
	Logger observability.Logger
}

func (h *Handler) logger() observability.Logger {
	if h.Logger == nil {
		return observability.NopLogger{}
	}
	return h.Logger
}

func (h *Handler) httpClient() *http.Client {
	if h.Client == nil {
		return &http.Client{Timeout: 60 * time.Second}
	}
	return h.Client
}

// HandleConversion is the asynq handler for TypeConversionProcess.
func (h *Handler) HandleConversion(ctx context.Context, task *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode conversion payload: %v: %w", err, asynq.SkipRetry)
	}
	log := h.logger().With(
		observability.String("job", p.JobID),
		observability.String("account", p.Account))

	pdf, err := h.loadPDF(ctx, p)
	if err != nil {
		h.markFailed(ctx, log, p.JobID, "input_error", err)
		return err
	}

	if h.Recorder != nil {
		if err := h.Recorder.MarkRunning(ctx, p.JobID); err != nil {
			log.Warn("mark running failed", observability.Error("error", err))
		}
	}

	cctx := ctx
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	bundle, report, err := h.Converter.Convert(cctx, convert.Request{
		Title:           p.Title,
		PDF:             pdf,
		SummaryMarkdown: p.Summary,
		IncludeSource:   p.IncludeSource,
	})
	if err != nil {
		code := convert.Classify(err)
		h.markFailed(ctx, log, p.JobID, code, err)
		if convert.Terminal(err) {
			return fmt.Errorf("conversion failed (%s): %v: %w", code, err, asynq.SkipRetry)
		}
		return fmt.Errorf("conversion failed (%s): %w", code, err)
	}

	manifest, err := h.Uploader.Upload(ctx, bundle, p.UploadPrefix)
	if err != nil {
		h.markFailed(ctx, log, p.JobID, "upload_error", err)
		return fmt.Errorf("publish bundle: %w", err)
	}

	if h.Recorder != nil {
		if err := h.Recorder.MarkCompleted(ctx, p.JobID, report.PageCount,
			report.Words, report.BundleBytes, manifest.IndexURL()); err != nil {
			log.Warn("mark completed failed", observability.Error("error", err))
		}
	}
	log.Info("conversion published",
		observability.Int("pages", report.PageCount),
		observability.Int("words", report.Words),
		observability.String("url", manifest.IndexURL()),
		observability.Duration("elapsed", report.Elapsed))
	return nil
}

func (h *Handler) markFailed(ctx context.Context, log observability.Logger, id, code string, cause error) {
	if h.Recorder == nil {
		return
	}
	if err := h.Recorder.MarkFailed(ctx, id, code, cause.Error()); err != nil {
		log.Warn("mark failed failed", observability.Error("error", err))
	}
}

// loadPDF resolves the task's document bytes. Corrupt payloads and
// client-error fetch responses are terminal; transport failures and
// 5xx responses are worth a retry.
func (h *Handler) loadPDF(ctx context.Context, p Payload) ([]byte, error) {
	switch {
	case p.PDFBase64 != "":
		data, err := base64.StdEncoding.DecodeString(p.PDFBase64)
		if err != nil {
			return nil, fmt.Errorf("decode pdf payload: %v: %w", err, asynq.SkipRetry)
		}
		return data, nil
	case p.PDFURL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.PDFURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build pdf request: %v: %w", err, asynq.SkipRetry)
		}
		resp, err := h.httpClient().Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch pdf: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, fmt.Errorf("fetch pdf: server returned %s: %w", resp.Status, asynq.SkipRetry)
			}
			return nil, fmt.Errorf("fetch pdf: server returned %s", resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read pdf body: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("payload has neither pdf_base64 nor pdf_url: %w", asynq.SkipRetry)
	}
}

// retryDelay backs off exponentially, capped at a minute.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}

// WorkerConfig sizes the asynq server.
type WorkerConfig struct {
	RedisURL    string
	Concurrency int
}

// Worker consumes conversion tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger observability.Logger
}

// NewWorker builds the asynq server and routes TypeConversionProcess
// to the handler. Conversions get queue priority over default tasks.
func NewWorker(cfg WorkerConfig, h *Handler) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	logger := h.logger()
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueConversions: 10,
			"default":        1,
		},
		RetryDelayFunc: retryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed",
				observability.String("type", task.Type()),
				observability.Error("error", err))
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeConversionProcess, h.HandleConversion)
	return &Worker{server: server, mux: mux, logger: logger}, nil
}

// Run blocks until Shutdown.
func (w *Worker) Run() error {
	w.logger.Info("worker started")
	return w.server.Run(w.mux)
}

// Shutdown waits for in-flight conversions to finish.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("worker stopped")
}
