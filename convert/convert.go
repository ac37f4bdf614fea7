// Package convert orchestrates a whole conversion: rasterize the PDF,
// recognize page text, build the search index, and assemble the
// flipbook bundle. A failure anywhere discards everything; no partial
// bundle ever leaves this package.
package convert

import (
	"context"
	"sync"
	"time"

	"github.com/whereissushi/zpravodaj-api/flipbook"
	"github.com/whereissushi/zpravodaj-api/observability"
	"github.com/whereissushi/zpravodaj-api/ocr"
	"github.com/whereissushi/zpravodaj-api/raster"
	"github.com/whereissushi/zpravodaj-api/raster/mupdf"
	"github.com/whereissushi/zpravodaj-api/searchidx"
)

// RendererFactory opens a renderer over raw document bytes.
type RendererFactory func(data []byte) (raster.Renderer, error)

// Request is one document to convert.
type Request struct {
	Title string
	PDF   []byte
	// SummaryMarkdown, when present, becomes the viewer's summary
	// overlay.
	SummaryMarkdown string
	// IncludeSource ships the original PDF inside the bundle as a
	// download.
	IncludeSource bool
}

// Report summarizes what a successful conversion produced.
type Report struct {
	PageCount int
	// Words is the number of indexed words after confidence filtering.
	Words int
	// DroppedWords counts detections discarded for low confidence.
	DroppedWords int
	// EmptyPages lists pages that yielded no indexed text.
	EmptyPages []int
	// BundleBytes is the total size of the assembled bundle.
	BundleBytes int64
	Elapsed     time.Duration
}

// Converter runs conversions. One Converter is safe for concurrent
// use; per-conversion state lives on the stack of Convert.
type Converter struct {
	opts         Options
	openRenderer RendererFactory
	engine       ocr.Engine
	assembler    *flipbook.Assembler
	logger       observability.Logger
	tracer       observability.Tracer
	hub          *Hub
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger observability.Logger) Option {
	return func(c *Converter) { c.logger = logger }
}

// WithTracer sets the tracer for per-stage spans.
func WithTracer(tracer observability.Tracer) Option {
	return func(c *Converter) { c.tracer = tracer }
}

// WithEngine overrides the recognition engine. The default is the
// registered global engine.
func WithEngine(engine ocr.Engine) Option {
	return func(c *Converter) { c.engine = engine }
}

// WithRendererFactory overrides how documents are opened. The default
// renders through MuPDF.
func WithRendererFactory(factory RendererFactory) Option {
	return func(c *Converter) { c.openRenderer = factory }
}

// WithHook registers a progress hook.
func WithHook(hook Hook) Option {
	return func(c *Converter) { c.hub.Register(hook) }
}

// New constructs a Converter with the given profile.
func New(opts Options, options ...Option) (*Converter, error) {
	assembler, err := flipbook.NewAssembler()
	if err != nil {
		return nil, err
	}
	c := &Converter{
		opts: opts.normalized(),
		openRenderer: func(data []byte) (raster.Renderer, error) {
			return mupdf.Open(data)
		},
		engine:    ocr.DefaultEngine(),
		assembler: assembler,
		logger:    observability.NopLogger{},
		tracer:    observability.NopTracer(),
		hub:       NewHub(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Convert turns one PDF into a verified flipbook bundle.
func (c *Converter) Convert(ctx context.Context, req Request) (*flipbook.Bundle, *Report, error) {
	start := time.Now()
	ctx, span := c.tracer.StartSpan(ctx, "convert")
	defer span.Finish()

	renderer, err := c.openRenderer(req.PDF)
	if err != nil {
		span.SetError(err)
		c.hub.Emit(ctx, Event{Phase: PhaseOpen, Err: err})
		return nil, nil, err
	}
	defer renderer.Close()

	total := renderer.PageCount()
	span.SetTag("pages", total)
	c.hub.Emit(ctx, Event{Phase: PhaseOpen, Total: total})
	c.logger.Info("conversion started",
		observability.String("title", req.Title),
		observability.Int("pages", total))

	pages, detections, err := c.processPages(ctx, renderer, total)
	if err != nil {
		span.SetError(err)
		return nil, nil, err
	}

	index, report := c.buildIndex(pages, detections)
	c.hub.Emit(ctx, Event{Phase: PhaseIndex, Total: total})

	src := flipbook.Source{
		Title:           req.Title,
		Pages:           pages,
		Index:           index,
		SummaryMarkdown: req.SummaryMarkdown,
	}
	if req.IncludeSource {
		src.PDF = req.PDF
	}
	bundle, err := c.assembler.Assemble(ctx, src)
	if err != nil {
		span.SetError(err)
		c.hub.Emit(ctx, Event{Phase: PhaseAssemble, Err: err})
		return nil, nil, err
	}
	c.hub.Emit(ctx, Event{Phase: PhaseAssemble, Total: total})

	if err := flipbook.Verify(ctx, bundle); err != nil {
		span.SetError(err)
		c.hub.Emit(ctx, Event{Phase: PhaseVerify, Err: err})
		return nil, nil, err
	}
	c.hub.Emit(ctx, Event{Phase: PhaseVerify, Total: total})

	report.BundleBytes = bundle.TotalBytes()
	report.Elapsed = time.Since(start)
	c.logger.Info("conversion finished",
		observability.String("title", req.Title),
		observability.Int("pages", report.PageCount),
		observability.Int("words", report.Words),
		observability.Int64("bundle_bytes", report.BundleBytes),
		observability.Duration("elapsed", report.Elapsed))
	return bundle, report, nil
}

type pageResult struct {
	index int
	page  raster.PageImage
	words []ocr.TextWord
	err   error
}

// processPages renders and recognizes every page with bounded
// parallelism. Page order is restored from the result indices; the
// first failure cancels the remaining work.
func (c *Converter) processPages(ctx context.Context, renderer raster.Renderer, total int) ([]raster.PageImage, [][]ocr.TextWord, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, c.opts.Workers)
	results := make(chan pageResult, total)

	var wg sync.WaitGroup
	for n := 1; n <= total; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- pageResult{index: n, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			page, words, err := c.processPage(ctx, renderer, n, total)
			results <- pageResult{index: n, page: page, words: words, err: err}
		}(n)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	pages := make([]raster.PageImage, total)
	detections := make([][]ocr.TextWord, total)
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		pages[res.index-1] = res.page
		detections[res.index-1] = res.words
	}
	if firstErr != nil {
		return nil, nil, firstErr
	}
	return pages, detections, nil
}

func (c *Converter) processPage(ctx context.Context, renderer raster.Renderer, n, total int) (raster.PageImage, []ocr.TextWord, error) {
	img, err := renderer.RenderPage(ctx, n, c.opts.DPI)
	if err != nil {
		if ctx.Err() == nil {
			c.hub.Emit(ctx, Event{Phase: PhaseRasterize, Page: n, Total: total, Err: err})
		}
		return raster.PageImage{}, nil, err
	}
	page, err := raster.BuildPage(img, n, raster.Options{
		DPI:          c.opts.DPI,
		Quality:      c.opts.Quality,
		ThumbWidth:   c.opts.ThumbWidth,
		ThumbHeight:  c.opts.ThumbHeight,
		ThumbQuality: c.opts.ThumbQuality,
	})
	if err != nil {
		c.hub.Emit(ctx, Event{Phase: PhaseRasterize, Page: n, Total: total, Err: err})
		return raster.PageImage{}, nil, err
	}
	c.hub.Emit(ctx, Event{Phase: PhaseRasterize, Page: n, Total: total})

	input := ocr.InputFromPage(page,
		ocr.WithLanguages(c.opts.Languages...),
		ocr.WithDPI(int(c.opts.DPI)))
	res, err := c.engine.Recognize(ctx, input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return raster.PageImage{}, nil, ctxErr
		}
		err = &RecognitionUnavailableError{Page: n, Err: err}
		c.hub.Emit(ctx, Event{Phase: PhaseRecognize, Page: n, Total: total, Err: err})
		return raster.PageImage{}, nil, err
	}
	c.hub.Emit(ctx, Event{Phase: PhaseRecognize, Page: n, Total: total})
	return page, res.Words, nil
}

// buildIndex applies the confidence floor and produces one record per
// page. A word enters the index only when its confidence strictly
// exceeds the floor; everything else is dropped silently and only
// counted.
func (c *Converter) buildIndex(pages []raster.PageImage, detections [][]ocr.TextWord) (*searchidx.Index, *Report) {
	index := searchidx.New()
	report := &Report{PageCount: len(pages)}
	for i, page := range pages {
		kept := detections[i][:0:0]
		for _, w := range detections[i] {
			if w.Confidence > c.opts.MinConfidence {
				kept = append(kept, w)
			}
		}
		report.DroppedWords += len(detections[i]) - len(kept)
		report.Words += len(kept)
		if len(kept) == 0 {
			report.EmptyPages = append(report.EmptyPages, page.Index)
			index.Add(searchidx.EmptyRecord(page.Index, page.Width, page.Height))
			continue
		}
		index.Add(searchidx.FromWords(page.Index, kept, page.Width, page.Height))
	}
	return index, report
}
