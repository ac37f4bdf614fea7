package searchidx

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/whereissushi/zpravodaj-api/ocr"
)

func word(text string, x, y, w, h float64) ocr.TextWord {
	return ocr.TextWord{Text: text, Bounds: ocr.Region{X: x, Y: y, Width: w, Height: h}}
}

func TestFromWordsJoinsInDetectionOrder(t *testing.T) {
	rec := FromWords(1, []ocr.TextWord{
		word("Vítejte", 10, 20, 80, 24),
		word("v", 95, 20, 12, 24),
		word("Obci", 112, 20, 50, 24),
	}, 1240, 1754)

	if rec.Text != "Vítejte v Obci" {
		t.Fatalf("Text = %q", rec.Text)
	}
	if len(rec.Boxes) != 3 {
		t.Fatalf("Boxes = %d", len(rec.Boxes))
	}
	if rec.Boxes[2].Word != "Obci" || rec.Boxes[2].X != 112 {
		t.Fatalf("third box = %+v", rec.Boxes[2])
	}
	if rec.Width != 1240 || rec.Height != 1754 {
		t.Fatalf("dimensions = %dx%d", rec.Width, rec.Height)
	}
}

func TestRecordTextRoundTripsFromBoxes(t *testing.T) {
	rec := FromWords(2, []ocr.TextWord{
		word("Obecní", 0, 0, 10, 10),
		word("úřad", 12, 0, 10, 10),
		word("oznamuje", 24, 0, 10, 10),
	}, 800, 1100)

	tokens := make([]string, len(rec.Boxes))
	for i, b := range rec.Boxes {
		tokens[i] = b.Word
	}
	if got := strings.Join(tokens, " "); got != rec.Text {
		t.Fatalf("box tokens %q do not reproduce text %q", got, rec.Text)
	}
}

func TestCompleteFillsGaps(t *testing.T) {
	ix := New()
	ix.Add(FromWords(2, []ocr.TextWord{word("jaro", 1, 1, 5, 5)}, 100, 100))
	ix.Complete(3)

	if ix.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ix.Len())
	}
	for _, p := range []int{1, 2, 3} {
		rec, ok := ix.Record(p)
		if !ok {
			t.Fatalf("page %d missing", p)
		}
		if p != 2 {
			if rec.Text != "" {
				t.Fatalf("page %d should be empty, got %q", p, rec.Text)
			}
			if rec.Boxes == nil || len(rec.Boxes) != 0 {
				t.Fatalf("page %d should have an empty, non-nil box list", p)
			}
		}
	}
	if got := ix.Pages(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Pages = %v", got)
	}
}

func TestMarshalEmbedWireShape(t *testing.T) {
	ix := New()
	ix.Add(FromWords(1, []ocr.TextWord{
		word("Vítejte", 10, 20, 80, 24),
		word("v", 95, 20, 12, 24),
		word("Obci", 112, 20, 50, 24),
	}, 1240, 1754))
	ix.Complete(2)

	data, err := ix.MarshalEmbed()
	if err != nil {
		t.Fatalf("MarshalEmbed: %v", err)
	}

	var doc struct {
		Pages     map[string]string `json:"pages"`
		Positions map[string]struct {
			Boxes []struct {
				Word string  `json:"word"`
				X    float64 `json:"x"`
				Y    float64 `json:"y"`
				W    float64 `json:"w"`
				H    float64 `json:"h"`
			} `json:"boxes"`
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"positions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc.Pages["1"] != "Vítejte v Obci" {
		t.Fatalf("pages[1] = %q", doc.Pages["1"])
	}
	if doc.Pages["2"] != "" {
		t.Fatalf("pages[2] = %q, want empty", doc.Pages["2"])
	}
	pos, ok := doc.Positions["1"]
	if !ok {
		t.Fatalf("positions[1] missing")
	}
	if pos.Width != 1240 || pos.Height != 1754 {
		t.Fatalf("positions[1] dimensions = %dx%d", pos.Width, pos.Height)
	}
	if len(pos.Boxes) != 3 || pos.Boxes[0].Word != "Vítejte" || pos.Boxes[0].X != 10 {
		t.Fatalf("positions[1].boxes = %+v", pos.Boxes)
	}
	if empty, ok := doc.Positions["2"]; !ok || empty.Boxes == nil || len(empty.Boxes) != 0 {
		t.Fatalf("positions[2] should exist with an empty box array, got %+v ok=%v", empty, ok)
	}
}

func TestMarshalEmbedEscapesScriptBreakers(t *testing.T) {
	ix := New()
	ix.Add(FromWords(1, []ocr.TextWord{
		word(`</script><b>"x"</b>`, 0, 0, 5, 5),
		word("a&b", 6, 0, 5, 5),
	}, 100, 100))

	data, err := ix.MarshalEmbed()
	if err != nil {
		t.Fatalf("MarshalEmbed: %v", err)
	}
	s := string(data)
	if strings.Contains(s, "</script") {
		t.Fatalf("raw close-script sequence leaked into embed: %s", s)
	}
	if strings.Contains(s, "<b>") || strings.Contains(strings.Replace(s, "\\u0026", "", -1), "&") {
		t.Fatalf("unescaped markup characters leaked: %s", s)
	}

	parsed, err := ParseEmbed(data)
	if err != nil {
		t.Fatalf("ParseEmbed: %v", err)
	}
	rec, _ := parsed.Record(1)
	if rec.Boxes[0].Word != `</script><b>"x"</b>` {
		t.Fatalf("escaping lost content: %q", rec.Boxes[0].Word)
	}
	if rec.Text != `</script><b>"x"</b> a&b` {
		t.Fatalf("text mangled: %q", rec.Text)
	}
}

func TestMarshalEmbedReplacesInvalidUTF8(t *testing.T) {
	ix := New()
	ix.Add(Record{Page: 1, Text: "ok\xffbad", Boxes: []Box{{Word: "\xff", X: 1, Y: 1, W: 2, H: 2}}, Width: 10, Height: 10})

	data, err := ix.MarshalEmbed()
	if err != nil {
		t.Fatalf("MarshalEmbed should escape, not fail: %v", err)
	}
	parsed, err := ParseEmbed(data)
	if err != nil {
		t.Fatalf("ParseEmbed: %v", err)
	}
	rec, _ := parsed.Record(1)
	if !strings.Contains(rec.Text, "�") {
		t.Fatalf("invalid byte should become the replacement rune, got %q", rec.Text)
	}
	if rec.Boxes[0].Word == "" {
		t.Fatalf("token must be preserved, not dropped")
	}
}

func TestParseEmbedRejectsGarbage(t *testing.T) {
	if _, err := ParseEmbed([]byte("not json")); err == nil {
		t.Fatalf("expected error for non-JSON input")
	}
	if _, err := ParseEmbed([]byte(`{"pages":{"x":"y"}}`)); err == nil {
		t.Fatalf("expected error for non-numeric page key")
	}
}

func TestWordCount(t *testing.T) {
	ix := New()
	ix.Add(FromWords(1, []ocr.TextWord{word("a", 0, 0, 1, 1), word("b", 2, 0, 1, 1)}, 10, 10))
	ix.Add(FromWords(2, []ocr.TextWord{word("c", 0, 0, 1, 1)}, 10, 10))
	if ix.WordCount() != 3 {
		t.Fatalf("WordCount = %d", ix.WordCount())
	}
}
