package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"strings"
	"testing"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/whereissushi/zpravodaj-api/ocr"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

// glyphImage renders text with the basic 7x13 face and upscales it so
// the glyphs are large enough for reliable recognition.
func glyphImage(t *testing.T, text string) []byte {
	t.Helper()
	small := image.NewRGBA(image.Rect(0, 0, 20+7*len(text), 40))
	draw.Draw(small, small.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  small,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 25),
	}
	d.DrawString(text)

	big := image.NewRGBA(image.Rect(0, 0, small.Bounds().Dx()*4, small.Bounds().Dy()*4))
	xdraw.NearestNeighbor.Scale(big, big.Bounds(), small, small.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, big); err != nil {
		t.Fatalf("encode glyph image: %v", err)
	}
	return buf.Bytes()
}

func TestRecognizeWordBoxes(t *testing.T) {
	ensureTesseractAvailable(t)

	img := glyphImage(t, "Vitejte v obci")
	eng := NewEngine()
	res, err := eng.Recognize(context.Background(), ocr.Input{
		ID:        "page-1",
		Image:     img,
		Format:    ocr.ImageFormatPNG,
		Page:      1,
		DPI:       300,
		Languages: []string{"eng"},
	})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res.InputID != "page-1" || res.Page != 1 {
		t.Fatalf("result identity = %q page %d", res.InputID, res.Page)
	}
	if len(res.Words) == 0 {
		t.Fatalf("no words recognized")
	}

	var joined []string
	for _, w := range res.Words {
		joined = append(joined, strings.ToLower(w.Text))
		if w.Bounds.Width <= 0 || w.Bounds.Height <= 0 {
			t.Fatalf("word %q has degenerate bounds %+v", w.Text, w.Bounds)
		}
		if w.Bounds.X < 0 || w.Bounds.Y < 0 {
			t.Fatalf("word %q has negative origin %+v", w.Text, w.Bounds)
		}
		if w.Confidence < 0 || w.Confidence > 100 {
			t.Fatalf("confidence %f outside 0..100", w.Confidence)
		}
	}
	all := strings.Join(joined, " ")
	if !strings.Contains(all, "vitejte") || !strings.Contains(all, "obci") {
		t.Fatalf("unexpected recognition output: %q", all)
	}
}

func TestRecognizeHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := NewEngine()
	if _, err := eng.Recognize(ctx, ocr.Input{ID: "page-1"}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestRecognizeBatchKeepsOrder(t *testing.T) {
	ensureTesseractAvailable(t)

	first := glyphImage(t, "Praha")
	second := glyphImage(t, "Brno")
	eng := NewEngine()
	results, err := eng.RecognizeBatch(context.Background(), []ocr.Input{
		{ID: "page-1", Image: first, Page: 1, DPI: 300, Languages: []string{"eng"}},
		{ID: "page-2", Image: second, Page: 2, DPI: 300, Languages: []string{"eng"}},
	})
	if err != nil {
		t.Fatalf("RecognizeBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Page != 1 || results[1].Page != 2 {
		t.Fatalf("batch order not preserved: %d, %d", results[0].Page, results[1].Page)
	}
}

func TestDefaultEngineRegistered(t *testing.T) {
	if ocr.DefaultEngine().Name() != "tesseract" {
		t.Fatalf("importing this package should register tesseract as default, got %q",
			ocr.DefaultEngine().Name())
	}
}

func TestAvailable(t *testing.T) {
	ensureTesseractAvailable(t)
	if err := Available(); err != nil {
		t.Fatalf("Available() with no languages: %v", err)
	}
	if err := Available("xx-no-such-language"); err == nil {
		t.Error("Available should report a missing language pack")
	}
}
