// Package tesseract implements ocr.Engine on the gosseract client.
// Importing it registers the engine as the package ocr default.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/whereissushi/zpravodaj-api/ocr"
)

func init() {
	ocr.SetDefaultEngine(NewEngine())
}

// Engine recognizes word boxes with Tesseract. Each call constructs its
// own client, so one Engine value is safe for concurrent use across
// page workers.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// NewEngine constructs a Tesseract-backed engine.
func NewEngine() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs word-level recognition on a single page image.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.clientFactory()
	defer c.Close()
	return e.recognizeWithClient(c, in)
}

// RecognizeBatch processes inputs sequentially. Callers that want
// parallelism run Recognize from their own workers instead.
func (e *Engine) RecognizeBatch(ctx context.Context, inputs []ocr.Input) ([]ocr.Result, error) {
	results := make([]ocr.Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		c := e.clientFactory()
		res, err := e.recognizeWithClient(c, in)
		c.Close()
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) recognizeWithClient(c *gosseract.Client, in ocr.Input) (ocr.Result, error) {
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("bounding boxes: %w", err)
	}
	words := make([]ocr.TextWord, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		words = append(words, ocr.TextWord{
			Text: b.Word,
			Bounds: ocr.Region{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
			// Tesseract reports word confidence on a 0..100 scale;
			// it is carried through unscaled.
			Confidence: b.Confidence,
		})
	}
	return ocr.Result{
		InputID:  in.ID,
		Page:     in.Page,
		Words:    words,
		Language: firstLanguage(in.Languages),
	}, nil
}

func firstLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}
