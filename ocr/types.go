package ocr

import "context"

// ImageFormat identifies the content type of a recognition input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Region describes a rectangular area in pixel coordinates with the
// origin in the upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// TextWord is a single recognized token. Bounds are expressed in the
// pixel space of the input image; Confidence is the engine's word
// confidence on a 0..100 scale.
type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// Input encapsulates one page image submitted for recognition.
type Input struct {
	// ID is an optional caller-provided identifier echoed back in the
	// corresponding Result.
	ID string
	// Image is the encoded payload in the format specified by Format.
	Image []byte
	// Format declares the image content type.
	Format ImageFormat
	// Page is the 1-based page number the image was rendered from.
	Page int
	// DPI carries the effective dots-per-inch of the rendered image.
	// Engines use it for layout heuristics; zero means unknown.
	DPI int
	// Languages lists trained-data hints (e.g., "ces", "eng").
	Languages []string
	// Metadata passes engine-specific knobs (e.g., Tesseract variables)
	// without hard-coding them into the API surface.
	Metadata map[string]string
}

// Result is the flat bag of words recognized on one page, in detection
// order. The pipeline treats each page as a raster annotated with word
// boxes; no line or paragraph structure is reconstructed.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// Page mirrors Input.Page.
	Page int
	// Words holds every detection the engine reported, unfiltered.
	Words []TextWord
	// Language is the first configured language hint, if any.
	Language string
}

// Engine is the recognition provider contract: one image in, one word
// bag out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine handles multiple images in a single call, for providers
// that amortize setup costs or remote round-trips.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}
