// Package queue moves conversions through Redis. The enqueue client
// and the worker share one task type; payloads carry either the PDF
// itself (small uploads, base64) or a URL to fetch it from.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/whereissushi/zpravodaj-api/slug"
)

// TypeConversionProcess is the task type handled by the worker.
const TypeConversionProcess = "conversion:process"

// QueueConversions is the asynq queue conversions are routed to.
const QueueConversions = "conversions"

// Payload is the JSON body of a conversion task.
type Payload struct {
	JobID         string `json:"job_id"`
	Account       string `json:"account"`
	Title         string `json:"title"`
	PDFBase64     string `json:"pdf_base64,omitempty"`
	PDFURL        string `json:"pdf_url,omitempty"`
	UploadPrefix  string `json:"upload_prefix"`
	Summary       string `json:"summary,omitempty"`
	IncludeSource bool   `json:"include_source,omitempty"`
}

// Normalized fills the payload fields the caller may leave empty: a
// fresh job ID, the default account, and the upload prefix derived
// from account and title.
func (p Payload) Normalized() Payload {
	if p.JobID == "" {
		p.JobID = uuid.NewString()
	}
	if p.Account == "" {
		p.Account = "default"
	}
	if p.UploadPrefix == "" {
		p.UploadPrefix = DefaultPrefix(p.Account, p.Title)
	}
	return p
}

// DefaultPrefix builds the upload folder for a conversion. The unix
// timestamp keeps re-conversions of the same title from overwriting
// each other.
func DefaultPrefix(account, title string) string {
	return fmt.Sprintf("%s/%s-%d", account, slug.Make(title), time.Now().Unix())
}

// NewConversionTask validates the payload and wraps it in a task.
func NewConversionTask(p Payload) (*asynq.Task, error) {
	if p.JobID == "" {
		return nil, fmt.Errorf("conversion task needs a job ID")
	}
	if p.PDFBase64 == "" && p.PDFURL == "" {
		return nil, fmt.Errorf("conversion task needs pdf_base64 or pdf_url")
	}
	if p.UploadPrefix == "" {
		return nil, fmt.Errorf("conversion task needs an upload prefix")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode conversion payload: %w", err)
	}
	return asynq.NewTask(TypeConversionProcess, data), nil
}
