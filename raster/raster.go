// Package raster renders document pages into the JPEG variants the
// flipbook bundle ships: a full-resolution scan and a fit-within
// thumbnail per page.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

// Renderer decodes a document and rasterizes single pages. Implementations
// wrap the PDF engine; page indices are 1-based and dense.
type Renderer interface {
	PageCount() int
	RenderPage(ctx context.Context, index int, dpi float64) (image.Image, error)
	Close() error
}

// DecodeError reports an unreadable document or page. Page is 0 when the
// document itself cannot be opened.
type DecodeError struct {
	Page   int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Page > 0 {
		if e.Err != nil {
			return fmt.Sprintf("decode page %d: %s: %v", e.Page, e.Reason, e.Err)
		}
		return fmt.Sprintf("decode page %d: %s", e.Page, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("decode document: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode document: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Options control rasterization. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	DPI          float64
	Quality      int
	ThumbWidth   int
	ThumbHeight  int
	ThumbQuality int
}

// DefaultOptions returns the production settings: 150 DPI full pages at
// JPEG quality 85, thumbnails fit within 200x300 at quality 75.
func DefaultOptions() Options {
	return Options{
		DPI:          150,
		Quality:      85,
		ThumbWidth:   200,
		ThumbHeight:  300,
		ThumbQuality: 75,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.DPI <= 0 {
		o.DPI = d.DPI
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = d.Quality
	}
	if o.ThumbWidth <= 0 {
		o.ThumbWidth = d.ThumbWidth
	}
	if o.ThumbHeight <= 0 {
		o.ThumbHeight = d.ThumbHeight
	}
	if o.ThumbQuality <= 0 || o.ThumbQuality > 100 {
		o.ThumbQuality = d.ThumbQuality
	}
	return o
}

// PageImage is one rendered page in both variants. Width and Height are
// the full-resolution pixel dimensions; word boxes produced later are
// expressed in that space.
type PageImage struct {
	Index       int
	Width       int
	Height      int
	Full        []byte
	Thumb       []byte
	ThumbWidth  int
	ThumbHeight int
}

// FitWithin computes the largest size at most boxW x boxH that preserves
// the w:h aspect ratio. It never upscales.
func FitWithin(w, h, boxW, boxH int) (int, int) {
	if w <= 0 || h <= 0 || boxW <= 0 || boxH <= 0 {
		return 0, 0
	}
	scale := math.Min(float64(boxW)/float64(w), float64(boxH)/float64(h))
	if scale >= 1 {
		return w, h
	}
	fw := int(math.Round(float64(w) * scale))
	fh := int(math.Round(float64(h) * scale))
	if fw < 1 {
		fw = 1
	}
	if fh < 1 {
		fh = 1
	}
	return fw, fh
}

// Thumbnail scales src to fit within boxW x boxH, preserving aspect.
func Thumbnail(src image.Image, boxW, boxH int) image.Image {
	b := src.Bounds()
	tw, th := FitWithin(b.Dx(), b.Dy(), boxW, boxH)
	if tw == b.Dx() && th == b.Dy() {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPage encodes a rendered page into its two bundle variants.
func BuildPage(img image.Image, index int, opts Options) (PageImage, error) {
	opts = opts.normalized()
	b := img.Bounds()
	full, err := EncodeJPEG(img, opts.Quality)
	if err != nil {
		return PageImage{}, fmt.Errorf("encode page %d: %w", index, err)
	}
	thumbImg := Thumbnail(img, opts.ThumbWidth, opts.ThumbHeight)
	tb := thumbImg.Bounds()
	thumb, err := EncodeJPEG(thumbImg, opts.ThumbQuality)
	if err != nil {
		return PageImage{}, fmt.Errorf("encode thumbnail %d: %w", index, err)
	}
	return PageImage{
		Index:       index,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Full:        full,
		Thumb:       thumb,
		ThumbWidth:  tb.Dx(),
		ThumbHeight: tb.Dy(),
	}, nil
}
