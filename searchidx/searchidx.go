// Package searchidx builds the per-page search index the viewer ships
// with: a plain-text blob per page for substring search and a word-box
// list per page for highlight placement, both keyed by page number.
package searchidx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/whereissushi/zpravodaj-api/ocr"
)

// Box is one word detection in the embedded wire format. Coordinates
// are in the pixel space of the full-resolution page image.
type Box struct {
	Word string  `json:"word"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

// Record is the aggregate for one page. Text is the space-joined word
// tokens in detection order; Width and Height are the pixel dimensions
// of the image the boxes were measured on.
type Record struct {
	Page   int
	Text   string
	Boxes  []Box
	Width  int
	Height int
}

// FromWords builds a page record from locator output. Words are taken
// as given, in order; callers apply confidence filtering beforehand.
func FromWords(page int, words []ocr.TextWord, width, height int) Record {
	tokens := make([]string, 0, len(words))
	boxes := make([]Box, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, w.Text)
		boxes = append(boxes, Box{
			Word: w.Text,
			X:    w.Bounds.X,
			Y:    w.Bounds.Y,
			W:    w.Bounds.Width,
			H:    w.Bounds.Height,
		})
	}
	return Record{
		Page:   page,
		Text:   strings.Join(tokens, " "),
		Boxes:  boxes,
		Width:  width,
		Height: height,
	}
}

// EmptyRecord returns the record for a page with no recognized words.
// The box list is present but empty so the embedded form stays dense.
func EmptyRecord(page, width, height int) Record {
	return Record{Page: page, Text: "", Boxes: []Box{}, Width: width, Height: height}
}

// Index maps page numbers to records. Every page 1..PageCount has an
// entry once Complete has run.
type Index struct {
	records map[int]Record
}

// New returns an empty index.
func New() *Index {
	return &Index{records: make(map[int]Record)}
}

// Add stores a record, replacing any previous one for the same page.
func (ix *Index) Add(rec Record) {
	if rec.Boxes == nil {
		rec.Boxes = []Box{}
	}
	ix.records[rec.Page] = rec
}

// Record returns the record for a page and whether it exists.
func (ix *Index) Record(page int) (Record, bool) {
	rec, ok := ix.records[page]
	return rec, ok
}

// Pages returns the stored page numbers in ascending order.
func (ix *Index) Pages() []int {
	pages := make([]int, 0, len(ix.records))
	for p := range ix.records {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Len returns the number of stored records.
func (ix *Index) Len() int { return len(ix.records) }

// WordCount returns the total number of boxes across all pages.
func (ix *Index) WordCount() int {
	var n int
	for _, rec := range ix.records {
		n += len(rec.Boxes)
	}
	return n
}

// Complete fills any missing page 1..n with an empty record so the
// index is dense. Existing records are untouched.
func (ix *Index) Complete(n int) {
	for p := 1; p <= n; p++ {
		if _, ok := ix.records[p]; !ok {
			ix.records[p] = EmptyRecord(p, 0, 0)
		}
	}
}

// EmbedError reports that the index could not be serialized for
// embedding. Token content itself never triggers it; escaping handles
// structurally significant characters.
type EmbedError struct {
	Err error
}

func (e *EmbedError) Error() string { return fmt.Sprintf("embed search index: %v", e.Err) }
func (e *EmbedError) Unwrap() error { return e.Err }

type wirePositions struct {
	Boxes  []Box `json:"boxes"`
	Width  int   `json:"width"`
	Height int   `json:"height"`
}

type wireDoc struct {
	Pages     map[string]string        `json:"pages"`
	Positions map[string]wirePositions `json:"positions"`
}

// MarshalEmbed serializes the index in the embedded wire format:
// pages maps page number to full text, positions maps page number to
// its box list and source dimensions. The output is safe to place
// inside a <script> element: angle brackets, ampersands and the JS
// line separators are escaped, and invalid UTF-8 is replaced rather
// than dropped.
func (ix *Index) MarshalEmbed() ([]byte, error) {
	doc := wireDoc{
		Pages:     make(map[string]string, len(ix.records)),
		Positions: make(map[string]wirePositions, len(ix.records)),
	}
	for page, rec := range ix.records {
		key := strconv.Itoa(page)
		doc.Pages[key] = sanitize(rec.Text)
		boxes := make([]Box, len(rec.Boxes))
		for i, b := range rec.Boxes {
			b.Word = sanitize(b.Word)
			boxes[i] = b
		}
		doc.Positions[key] = wirePositions{Boxes: boxes, Width: rec.Width, Height: rec.Height}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &EmbedError{Err: err}
	}
	return data, nil
}

// ParseEmbed decodes the embedded wire format back into an index. Used
// by bundle verification and by tools that inspect existing bundles.
func ParseEmbed(data []byte) (*Index, error) {
	var doc wireDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse embedded index: %w", err)
	}
	ix := New()
	for key, text := range doc.Pages {
		page, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("parse embedded index: bad page key %q", key)
		}
		rec := Record{Page: page, Text: text, Boxes: []Box{}}
		if pos, ok := doc.Positions[key]; ok {
			rec.Width = pos.Width
			rec.Height = pos.Height
			if pos.Boxes != nil {
				rec.Boxes = pos.Boxes
			}
		}
		ix.Add(rec)
	}
	// positions for pages absent from the text map still count
	for key, pos := range doc.Positions {
		page, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("parse embedded index: bad page key %q", key)
		}
		if _, ok := ix.records[page]; !ok {
			rec := Record{Page: page, Boxes: pos.Boxes, Width: pos.Width, Height: pos.Height}
			if rec.Boxes == nil {
				rec.Boxes = []Box{}
			}
			ix.Add(rec)
		}
	}
	return ix, nil
}

// sanitize replaces invalid UTF-8 so serialization escapes content
// instead of dropping it.
func sanitize(s string) string {
	return strings.ToValidUTF8(s, "�")
}
