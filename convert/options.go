package convert

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Options control one conversion profile. The zero value is not
// useful; start from DefaultOptions or a YAML profile.
type Options struct {
	// DPI of the full-resolution page renders.
	DPI float64 `yaml:"dpi"`
	// Quality is the JPEG quality of full pages, 1..100.
	Quality int `yaml:"quality"`
	// ThumbWidth and ThumbHeight bound the thumbnail fit box.
	ThumbWidth  int `yaml:"thumb_width"`
	ThumbHeight int `yaml:"thumb_height"`
	// ThumbQuality is the JPEG quality of thumbnails, 1..100.
	ThumbQuality int `yaml:"thumb_quality"`
	// Languages are recognition languages in priority order.
	Languages []string `yaml:"languages"`
	// MinConfidence is the recognition confidence a word must exceed,
	// strictly, to enter the search index.
	MinConfidence float64 `yaml:"min_confidence"`
	// Workers bounds page-level parallelism. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// DefaultOptions returns the production profile: 150 DPI pages at
// quality 85, thumbnails within 200x300 at quality 75, Czech
// recognition, confidence floor 30.
func DefaultOptions() Options {
	return Options{
		DPI:           150,
		Quality:       85,
		ThumbWidth:    200,
		ThumbHeight:   300,
		ThumbQuality:  75,
		Languages:     []string{"ces"},
		MinConfidence: 30,
	}
}

// LoadOptions reads a YAML profile. Absent fields keep their defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return opts.normalized(), nil
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.DPI <= 0 {
		o.DPI = d.DPI
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = d.Quality
	}
	if o.ThumbWidth <= 0 {
		o.ThumbWidth = d.ThumbWidth
	}
	if o.ThumbHeight <= 0 {
		o.ThumbHeight = d.ThumbHeight
	}
	if o.ThumbQuality <= 0 || o.ThumbQuality > 100 {
		o.ThumbQuality = d.ThumbQuality
	}
	if len(o.Languages) == 0 {
		o.Languages = d.Languages
	}
	if o.MinConfidence < 0 || o.MinConfidence >= 100 {
		o.MinConfidence = d.MinConfidence
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}
