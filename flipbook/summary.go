package flipbook

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
)

// RenderSummary converts publisher-provided Markdown into the HTML
// shown in the viewer's summary overlay.
func RenderSummary(source string) (template.HTML, error) {
	if source == "" {
		return "", nil
	}
	md := goldmark.New()
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return template.HTML(buf.String()), nil
}
