package convert

import (
	"context"
	"errors"
	"fmt"

	"github.com/whereissushi/zpravodaj-api/raster"
	"github.com/whereissushi/zpravodaj-api/searchidx"
)

// The conversion surfaces three caller-distinguishable failures. Decode
// and embed errors are defined by the packages that raise them and
// re-exported here so callers only import convert.
type (
	DecodeError = raster.DecodeError
	EmbedError  = searchidx.EmbedError
)

// RecognitionUnavailableError reports that the text recognition engine
// could not run at all. Any engine failure is treated as environmental
// rather than input-dependent, so the conversion fails without retries
// against the same input.
type RecognitionUnavailableError struct {
	Page int
	Err  error
}

func (e *RecognitionUnavailableError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("text recognition unavailable on page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("text recognition unavailable: %v", e.Err)
}

func (e *RecognitionUnavailableError) Unwrap() error { return e.Err }

// Error codes for transport surfaces. HTTP handlers and queue workers
// map them to status codes and retry policy.
const (
	CodeDecodeError    = "decode_error"
	CodeOCRUnavailable = "ocr_unavailable"
	CodeEmbedError     = "embed_error"
	CodeCanceled       = "canceled"
	CodeInternal       = "internal_error"
)

// Classify maps a conversion error onto its transport code.
func Classify(err error) string {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return CodeDecodeError
	}
	var recogErr *RecognitionUnavailableError
	if errors.As(err, &recogErr) {
		return CodeOCRUnavailable
	}
	var embedErr *EmbedError
	if errors.As(err, &embedErr) {
		return CodeEmbedError
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	return CodeInternal
}

// Terminal reports whether retrying the same input can ever succeed.
// Decode failures are a property of the input and recognition
// unavailability is a property of the host; a queue retry helps with
// neither.
func Terminal(err error) bool {
	switch Classify(err) {
	case CodeDecodeError, CodeOCRUnavailable, CodeEmbedError:
		return true
	}
	return false
}
