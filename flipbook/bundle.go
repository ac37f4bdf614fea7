package flipbook

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/whereissushi/zpravodaj-api/slug"
)

// Bundle file paths. Page assets are 1-indexed with no zero-padding.
const (
	PathIndex  = "index.html"
	PathStyle  = "css/style.css"
	PathScript = "js/flipbook.js"
	PathSource = "document.pdf"
)

// PagePath returns the bundle path of a full-resolution page image.
func PagePath(n int) string { return fmt.Sprintf("pages/%d.jpg", n) }

// ThumbPath returns the bundle path of a thumbnail image.
func ThumbPath(n int) string { return fmt.Sprintf("thumb/%d.jpg", n) }

// File is one entry of the assembled bundle.
type File struct {
	Path string
	Data []byte
}

// Bundle is the finished, self-contained flipbook: entry markup, style
// sheet, viewer script with the embedded search index, and the page
// image directories. It renders offline from any static file server.
type Bundle struct {
	Title     string
	PageCount int
	files     []File
	byPath    map[string]int
}

func newBundle(title string, pageCount int) *Bundle {
	return &Bundle{Title: title, PageCount: pageCount, byPath: make(map[string]int)}
}

func (b *Bundle) add(path string, data []byte) {
	if i, ok := b.byPath[path]; ok {
		b.files[i].Data = data
		return
	}
	b.byPath[path] = len(b.files)
	b.files = append(b.files, File{Path: path, Data: data})
}

// Files returns all entries in assembly order.
func (b *Bundle) Files() []File { return b.files }

// File returns the contents stored at path.
func (b *Bundle) File(path string) ([]byte, bool) {
	i, ok := b.byPath[path]
	if !ok {
		return nil, false
	}
	return b.files[i].Data, true
}

// TotalBytes returns the summed size of all entries.
func (b *Bundle) TotalBytes() int64 {
	var n int64
	for _, f := range b.files {
		n += int64(len(f.Data))
	}
	return n
}

// ZipName returns the download filename for the archived bundle.
func (b *Bundle) ZipName() string {
	return slug.Make(b.Title) + "-flipbook.zip"
}

// WriteDir materializes the bundle under dir, creating subdirectories
// as needed. Existing files are overwritten.
func (b *Bundle) WriteDir(dir string) error {
	for _, f := range b.files {
		dst := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, f.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

// WriteZip streams the bundle as a ZIP archive.
func (b *Bundle) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, f := range b.files {
		fw, err := zw.Create(f.Path)
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", f.Path, err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return fmt.Errorf("zip write %s: %w", f.Path, err)
		}
	}
	return zw.Close()
}

// ContentType guesses the MIME type for a bundle path; upload clients
// use it when publishing assets.
func ContentType(path string) string {
	switch {
	case strings.HasSuffix(path, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		return "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		return "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
