package ocr

import (
	"fmt"

	"github.com/whereissushi/zpravodaj-api/raster"
)

// InputFromPage converts a rendered page into a recognition input. The
// full-resolution JPEG variant is submitted as-is; word boxes in the
// result are therefore in the same pixel space as raster.PageImage.
func InputFromPage(page raster.PageImage, opts ...InputOption) Input {
	in := Input{
		ID:     fmt.Sprintf("page-%d", page.Index),
		Image:  page.Full,
		Format: ImageFormatJPEG,
		Page:   page.Index,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in
}
