// Package mupdf implements raster.Renderer on the MuPDF engine via
// go-fitz.
package mupdf

import (
	"context"
	"image"

	fitz "github.com/gen2brain/go-fitz"

	"github.com/whereissushi/zpravodaj-api/raster"
)

// Renderer rasterizes pages of one open document. The underlying engine
// serializes page access internally; Renderer is safe for concurrent
// RenderPage calls.
type Renderer struct {
	doc   *fitz.Document
	pages int
}

// Open decodes a PDF from memory. Invalid input yields *raster.DecodeError.
func Open(data []byte) (*Renderer, error) {
	if len(data) == 0 {
		return nil, &raster.DecodeError{Reason: "empty input"}
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &raster.DecodeError{Reason: "open document", Err: err}
	}
	pages := doc.NumPage()
	if pages < 1 {
		doc.Close()
		return nil, &raster.DecodeError{Reason: "document has no pages"}
	}
	return &Renderer{doc: doc, pages: pages}, nil
}

func (r *Renderer) PageCount() int { return r.pages }

// RenderPage rasterizes the 1-based page index at the given DPI.
func (r *Renderer) RenderPage(ctx context.Context, index int, dpi float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 1 || index > r.pages {
		return nil, &raster.DecodeError{Page: index, Reason: "page out of range"}
	}
	img, err := r.doc.ImageDPI(index-1, dpi)
	if err != nil {
		return nil, &raster.DecodeError{Page: index, Reason: "render page", Err: err}
	}
	return img, nil
}

func (r *Renderer) Close() error { return r.doc.Close() }
