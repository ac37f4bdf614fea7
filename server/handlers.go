package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/whereissushi/zpravodaj-api/convert"
	"github.com/whereissushi/zpravodaj-api/observability"
	"github.com/whereissushi/zpravodaj-api/queue"
	"github.com/whereissushi/zpravodaj-api/slug"
	"github.com/whereissushi/zpravodaj-api/storage"
)

// multipartMemory caps how much of a parsed form stays in memory;
// larger uploads spill to temp files.
const multipartMemory = 32 << 20

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readConversionForm(w, r)
	if !ok {
		return
	}
	if len(req.pdf) == 0 {
		s.writeError(w, http.StatusBadRequest, "bad_request", "form field pdf is required")
		return
	}

	ctx := r.Context()
	if s.convertTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.convertTimeout)
		defer cancel()
	}
	bundle, report, err := s.converter.Convert(ctx, convert.Request{
		Title:           req.title,
		PDF:             req.pdf,
		SummaryMarkdown: req.summary,
		IncludeSource:   req.includeSource,
	})
	if err != nil {
		code := convert.Classify(err)
		s.record(r.Context(), req, storage.Conversion{
			Status:       storage.StatusFailed,
			ErrorCode:    code,
			ErrorMessage: err.Error(),
		})
		s.writeError(w, statusFor(code), code, err.Error())
		return
	}

	s.record(r.Context(), req, storage.Conversion{
		Status:      storage.StatusCompleted,
		PageCount:   report.PageCount,
		Words:       report.Words,
		BundleBytes: report.BundleBytes,
	})

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bundle.ZipName()))
	if err := bundle.WriteZip(w); err != nil {
		// Headers are gone; all we can do is log the broken stream.
		s.logger.Error("zip stream failed", observability.Error("error", err))
		return
	}
	s.logger.Info("conversion served",
		observability.String("title", bundle.Title),
		observability.Int("pages", report.PageCount),
		observability.Int("words", report.Words),
		observability.Duration("elapsed", report.Elapsed))
}

// conversionForm is the decoded multipart convert/jobs request.
type conversionForm struct {
	title         string
	account       string
	summary       string
	includeSource bool
	pdf           []byte
	pdfURL        string
}

func (s *Server) readConversionForm(w http.ResponseWriter, r *http.Request) (conversionForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return conversionForm{}, false
		}
		s.writeError(w, http.StatusBadRequest, "bad_request", "parse multipart form: "+err.Error())
		return conversionForm{}, false
	}

	form := conversionForm{
		title:   r.FormValue("title"),
		account: r.FormValue("account"),
		summary: r.FormValue("summary"),
		pdfURL:  r.FormValue("pdf_url"),
	}
	if form.account == "" {
		form.account = s.account
	}
	switch r.FormValue("include_source") {
	case "1", "true", "on", "yes":
		form.includeSource = true
	}

	file, _, err := r.FormFile("pdf")
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "bad_request", "read pdf upload: "+err.Error())
			return conversionForm{}, false
		}
		form.pdf = data
	} else if !errors.Is(err, http.ErrMissingFile) {
		s.writeError(w, http.StatusBadRequest, "bad_request", "form field pdf: "+err.Error())
		return conversionForm{}, false
	}
	return form, true
}

// record writes a sync-path conversion to the log, best effort. The
// row should land even when the client has already disconnected.
func (s *Server) record(ctx context.Context, req conversionForm, c storage.Conversion) {
	if s.jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	c.ID = uuid.NewString()
	c.Account = req.account
	c.Title = req.title
	c.Slug = slug.Make(req.title)
	if err := s.jobs.Record(ctx, c); err != nil {
		s.logger.Warn("conversion log write failed", observability.Error("error", err))
	}
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.enqueuer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "no queue is configured")
		return
	}
	req, ok := s.readConversionForm(w, r)
	if !ok {
		return
	}
	if len(req.pdf) == 0 && req.pdfURL == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "either a pdf upload or pdf_url is required")
		return
	}

	p := queue.Payload{
		Account:       req.account,
		Title:         req.title,
		PDFURL:        req.pdfURL,
		Summary:       req.summary,
		IncludeSource: req.includeSource,
	}
	if len(req.pdf) > 0 {
		p.PDFBase64 = base64.StdEncoding.EncodeToString(req.pdf)
		p.PDFURL = ""
	}
	p = p.Normalized()

	ctx := r.Context()
	if s.jobs != nil {
		if err := s.jobs.Create(ctx, p.JobID, p.Account, p.Title, slug.Make(p.Title)); err != nil {
			s.logger.Warn("job row create failed",
				observability.String("job", p.JobID),
				observability.Error("error", err))
		}
	}
	id, err := s.enqueuer.EnqueueConversion(ctx, p)
	if err != nil {
		if s.jobs != nil {
			if merr := s.jobs.MarkFailed(ctx, p.JobID, "queue_error", err.Error()); merr != nil {
				s.logger.Warn("job row update failed", observability.Error("error", merr))
			}
		}
		s.writeError(w, http.StatusBadGateway, "queue_error", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": id,
		"status": storage.StatusQueued,
	})
}

// jobResponse is the public JSON shape of a conversion row.
type jobResponse struct {
	ID           string     `json:"id"`
	Account      string     `json:"account"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	PageCount    int        `json:"page_count"`
	Words        int        `json:"words"`
	BundleBytes  int64      `json:"bundle_bytes"`
	BundleURL    string     `json:"bundle_url,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "no conversions log is configured")
		return
	}
	id := r.PathValue("id")
	c, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			s.writeError(w, http.StatusNotFound, "not_found", "no such job")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	resp := jobResponse{
		ID:           c.ID,
		Account:      c.Account,
		Title:        c.Title,
		Status:       c.Status,
		PageCount:    c.PageCount,
		Words:        c.Words,
		BundleBytes:  c.BundleBytes,
		BundleURL:    c.BundleURL,
		ErrorCode:    c.ErrorCode,
		ErrorMessage: c.ErrorMessage,
		CreatedAt:    c.CreatedAt,
	}
	if c.FinishedAt.Valid {
		t := c.FinishedAt.Time
		resp.FinishedAt = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for _, check := range s.checks {
		if err := check.Probe(ctx); err != nil {
			results[check.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "ok"
	}
	body := map[string]interface{}{"checks": results}
	if status == http.StatusOK {
		body["status"] = "ok"
	} else {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
