// Package flipbook assembles the self-contained viewer bundle: entry
// markup with the embedded search index, style sheet, viewer script,
// and the per-page image directories.
package flipbook

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/whereissushi/zpravodaj-api/raster"
	"github.com/whereissushi/zpravodaj-api/searchidx"
)

// Source carries everything one conversion produced for assembly.
type Source struct {
	Title string
	// Pages must be ordered by index 1..N with no gaps.
	Pages []raster.PageImage
	// Index must hold a record for every page.
	Index *searchidx.Index
	// SummaryMarkdown, when present, becomes the summary overlay.
	SummaryMarkdown string
	// PDF, when present, ships as a companion download.
	PDF []byte
}

// Assembler renders bundles from conversion output. One Assembler is
// safe for concurrent use.
type Assembler struct {
	tmpl *template.Template
}

// NewAssembler parses the embedded entry template.
func NewAssembler() (*Assembler, error) {
	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse entry template: %w", err)
	}
	return &Assembler{tmpl: tmpl}, nil
}

type templateData struct {
	Title       string
	PageCount   int
	DataJSON    template.JS
	SummaryHTML template.HTML
	HasSummary  bool
	HasSource   bool
	SourcePath  string
}

// Assemble produces the bundle. The source pages and index must be
// complete; gaps are an assembly error, not a silently thinner bundle.
func (a *Assembler) Assemble(ctx context.Context, src Source) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := len(src.Pages)
	if n == 0 {
		return nil, fmt.Errorf("assemble: no pages")
	}
	for i, p := range src.Pages {
		if p.Index != i+1 {
			return nil, fmt.Errorf("assemble: page %d carries index %d", i+1, p.Index)
		}
		if len(p.Full) == 0 || len(p.Thumb) == 0 {
			return nil, fmt.Errorf("assemble: page %d is missing an image variant", p.Index)
		}
	}
	if src.Index == nil || src.Index.Len() != n {
		got := 0
		if src.Index != nil {
			got = src.Index.Len()
		}
		return nil, fmt.Errorf("assemble: index covers %d pages, want %d", got, n)
	}

	dataJSON, err := src.Index.MarshalEmbed()
	if err != nil {
		return nil, err
	}

	summaryHTML, err := RenderSummary(src.SummaryMarkdown)
	if err != nil {
		return nil, err
	}

	title := src.Title
	if title == "" {
		title = "Zpravodaj"
	}

	var markup bytes.Buffer
	err = a.tmpl.Execute(&markup, templateData{
		Title:       title,
		PageCount:   n,
		DataJSON:    template.JS(dataJSON),
		SummaryHTML: summaryHTML,
		HasSummary:  summaryHTML != "",
		HasSource:   len(src.PDF) > 0,
		SourcePath:  PathSource,
	})
	if err != nil {
		return nil, fmt.Errorf("render entry markup: %w", err)
	}

	b := newBundle(title, n)
	b.add(PathIndex, markup.Bytes())
	b.add(PathStyle, []byte(styleSheet))
	b.add(PathScript, []byte(viewerScript))
	for _, p := range src.Pages {
		b.add(PagePath(p.Index), p.Full)
		b.add(ThumbPath(p.Index), p.Thumb)
	}
	if len(src.PDF) > 0 {
		b.add(PathSource, src.PDF)
	}
	return b, nil
}
