// Package upload publishes finished flipbook bundles to their hosting
// location. The HTTP implementation targets any static origin that
// accepts authenticated PUTs; DirUploader serves local and test use.
package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/whereissushi/zpravodaj-api/flipbook"
)

// Uploader publishes every file of a bundle under the given prefix.
type Uploader interface {
	Upload(ctx context.Context, b *flipbook.Bundle, prefix string) (*Manifest, error)
}

// Manifest records where the published bundle ended up.
type Manifest struct {
	// BaseURL is the prefix root, without a trailing slash.
	BaseURL string
	// URLs maps bundle paths to their published absolute URLs.
	URLs  map[string]string
	Files int
	Bytes int64
}

// IndexURL returns the public entry point of the published flipbook.
func (m *Manifest) IndexURL() string { return m.URLs[flipbook.PathIndex] }

// DirUploader writes bundles under a root directory instead of pushing
// them over the network.
type DirUploader struct {
	Root string
}

func (d *DirUploader) Upload(ctx context.Context, b *flipbook.Bundle, prefix string) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(d.Root, filepath.FromSlash(strings.Trim(prefix, "/")))
	if err := b.WriteDir(dir); err != nil {
		return nil, fmt.Errorf("write bundle to %s: %w", dir, err)
	}
	m := &Manifest{BaseURL: dir, URLs: make(map[string]string, len(b.Files()))}
	for _, f := range b.Files() {
		m.URLs[f.Path] = filepath.Join(dir, filepath.FromSlash(f.Path))
		m.Bytes += int64(len(f.Data))
	}
	m.Files = len(b.Files())
	return m, nil
}
