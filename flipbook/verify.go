package flipbook

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/whereissushi/zpravodaj-api/scripting"
	"github.com/whereissushi/zpravodaj-api/searchidx"
)

// dataIslandID is the id of the script element carrying the embedded
// search index.
const dataIslandID = "flipbook-data"

// viewerElementIDs are the elements the viewer script binds at boot. A
// bundle whose markup lost one of them would load but render a dead
// viewer, so their presence is part of verification.
var viewerElementIDs = []string{
	"toolbar",
	"viewer",
	"stage",
	"spacer",
	"content",
	"book",
	"highlights",
	"page-indicator",
	"search-input",
	"search-status",
	"search-results",
	"thumb-grid",
	"text-panel-body",
	"toast",
}

const coreProbe = `(function () {
	if (typeof Flipbook === 'undefined' || !Flipbook.core || !Flipbook.Session) {
		return false;
	}
	var names = ['createState', 'spreads', 'navigate', 'canNavigate', 'clampZoom',
		'zoomOrigin', 'spacerMetrics', 'zoomScrollTarget', 'computeLayout',
		'search', 'matchBoxes', 'rescaleBox', 'highlightRects'];
	for (var i = 0; i < names.length; i++) {
		if (typeof Flipbook.core[names[i]] !== 'function') {
			return false;
		}
	}
	return true;
})()`

const searchProbe = `(function () {
	var data = JSON.parse(__verifyData);
	var out = Flipbook.core.search(data, __verifyQuery);
	return !out.tooShort && out.results.length > 0;
})()`

// Verify checks an assembled bundle for internal consistency: the
// markup parses and still carries the elements the viewer binds, every
// referenced asset resolves inside the bundle, the embedded search
// index parses back with a record per page, and the shipped viewer
// script loads and answers a search in a bare JavaScript engine.
func Verify(ctx context.Context, b *Bundle) error {
	index, ok := b.File(PathIndex)
	if !ok {
		return fmt.Errorf("bundle has no %s", PathIndex)
	}
	doc, err := html.Parse(bytes.NewReader(index))
	if err != nil {
		return fmt.Errorf("parse %s: %w", PathIndex, err)
	}

	var refs []string
	ids := make(map[string]bool)
	var island string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attrValue(n, "id"); id != "" {
				ids[id] = true
			}
			switch n.DataAtom {
			case atom.Link:
				refs = append(refs, attrValue(n, "href"))
			case atom.Script:
				if attrValue(n, "id") == dataIslandID {
					if c := n.FirstChild; c != nil && c.Type == html.TextNode {
						island = c.Data
					}
				}
				refs = append(refs, attrValue(n, "src"))
			case atom.Img:
				refs = append(refs, attrValue(n, "src"))
			case atom.A:
				if hasAttr(n, "download") {
					refs = append(refs, attrValue(n, "href"))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, id := range viewerElementIDs {
		if !ids[id] {
			return fmt.Errorf("%s is missing element #%s", PathIndex, id)
		}
	}
	for _, ref := range refs {
		if ref == "" || strings.HasPrefix(ref, "#") || strings.Contains(ref, "://") {
			continue
		}
		if _, ok := b.File(ref); !ok {
			return fmt.Errorf("%s references missing asset %q", PathIndex, ref)
		}
	}
	for n := 1; n <= b.PageCount; n++ {
		if _, ok := b.File(PagePath(n)); !ok {
			return fmt.Errorf("bundle has no %s", PagePath(n))
		}
		if _, ok := b.File(ThumbPath(n)); !ok {
			return fmt.Errorf("bundle has no %s", ThumbPath(n))
		}
	}

	if island == "" {
		return fmt.Errorf("%s has no #%s script", PathIndex, dataIslandID)
	}
	parsed, err := searchidx.ParseEmbed([]byte(island))
	if err != nil {
		return fmt.Errorf("embedded index: %w", err)
	}
	if parsed.Len() != b.PageCount {
		return fmt.Errorf("embedded index covers %d pages, bundle has %d", parsed.Len(), b.PageCount)
	}

	script, ok := b.File(PathScript)
	if !ok {
		return fmt.Errorf("bundle has no %s", PathScript)
	}
	eng := scripting.NewEngine()
	if _, err := eng.Execute(ctx, string(script)); err != nil {
		return fmt.Errorf("load viewer script: %w", err)
	}
	out, err := eng.Execute(ctx, coreProbe)
	if err != nil {
		return fmt.Errorf("probe viewer core: %w", err)
	}
	if ok, _ := out.(bool); !ok {
		return fmt.Errorf("viewer script did not install its core")
	}

	// When the document yielded any text at all, push the embedded
	// index back through the shipped search path.
	if word := probeWord(parsed); word != "" {
		if err := eng.Set("__verifyData", island); err != nil {
			return fmt.Errorf("bind probe data: %w", err)
		}
		if err := eng.Set("__verifyQuery", word); err != nil {
			return fmt.Errorf("bind probe query: %w", err)
		}
		out, err := eng.Execute(ctx, searchProbe)
		if err != nil {
			return fmt.Errorf("probe viewer search: %w", err)
		}
		if ok, _ := out.(bool); !ok {
			return fmt.Errorf("viewer search found no results for %q", word)
		}
	}
	return nil
}

// probeWord picks the first recognized token long enough to search
// for, or "" when every page is empty.
func probeWord(ix *searchidx.Index) string {
	for _, page := range ix.Pages() {
		rec, ok := ix.Record(page)
		if !ok {
			continue
		}
		for _, field := range strings.Fields(rec.Text) {
			if utf8.RuneCountInString(field) >= 2 {
				return field
			}
		}
	}
	return ""
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}
