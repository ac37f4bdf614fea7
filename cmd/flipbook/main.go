package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/whereissushi/zpravodaj-api/convert"
	"github.com/whereissushi/zpravodaj-api/observability"
	_ "github.com/whereissushi/zpravodaj-api/ocr/tesseract"
)

type options struct {
	pdfPath       string
	outDir        string
	zipPath       string
	title         string
	summaryPath   string
	profilePath   string
	languages     string
	dpi           float64
	quality       int
	includeSource bool
	verbose       bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flipbook: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "flipbook: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: flipbook [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	outDir := flag.String("out", "", "Directory for the bundle (default <pdf name>-flipbook)")
	zipPath := flag.String("zip", "", "Write the bundle as a zip archive instead of a directory")
	title := flag.String("title", "", "Document title (default derived from the file name)")
	summaryPath := flag.String("summary", "", "Markdown file to render into the summary panel")
	profilePath := flag.String("profile", "", "YAML conversion profile")
	languages := flag.String("languages", "", "Comma-separated recognition languages (default ces)")
	dpi := flag.Float64("dpi", 0, "Render resolution in DPI (default 150)")
	quality := flag.Int("quality", 0, "JPEG quality of full pages, 1..100 (default 85)")
	includeSource := flag.Bool("include-source", false, "Embed the source PDF in the bundle")
	verbose := flag.Bool("v", false, "Log per-page progress")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	opts.outDir = *outDir
	opts.zipPath = *zipPath
	opts.title = *title
	opts.summaryPath = *summaryPath
	opts.profilePath = *profilePath
	opts.languages = *languages
	opts.dpi = *dpi
	opts.quality = *quality
	opts.includeSource = *includeSource
	opts.verbose = *verbose
	return opts, nil
}

func run(opts options) error {
	pdf, err := os.ReadFile(opts.pdfPath)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}

	profile := convert.DefaultOptions()
	if opts.profilePath != "" {
		profile, err = convert.LoadOptions(opts.profilePath)
		if err != nil {
			return err
		}
	}
	if opts.languages != "" {
		profile.Languages = splitList(opts.languages)
	}
	if opts.dpi > 0 {
		profile.DPI = opts.dpi
	}
	if opts.quality > 0 {
		profile.Quality = opts.quality
	}

	level := observability.LevelInfo
	if opts.verbose {
		level = observability.LevelDebug
	}
	logger := observability.NewTextLogger(os.Stderr, level)

	converter, err := convert.New(profile, convert.WithLogger(logger))
	if err != nil {
		return err
	}

	title := opts.title
	if title == "" {
		base := filepath.Base(opts.pdfPath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	var summary string
	if opts.summaryPath != "" {
		data, err := os.ReadFile(opts.summaryPath)
		if err != nil {
			return fmt.Errorf("read summary: %w", err)
		}
		summary = string(data)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bundle, report, err := converter.Convert(ctx, convert.Request{
		Title:           title,
		PDF:             pdf,
		SummaryMarkdown: summary,
		IncludeSource:   opts.includeSource,
	})
	if err != nil {
		return err
	}

	if opts.zipPath != "" {
		f, err := os.Create(opts.zipPath)
		if err != nil {
			return fmt.Errorf("create zip: %w", err)
		}
		if err := bundle.WriteZip(f); err != nil {
			f.Close()
			return fmt.Errorf("write zip: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close zip: %w", err)
		}
		fmt.Printf("%s: %d pages, %d words, %d bytes -> %s\n",
			title, report.PageCount, report.Words, report.BundleBytes, opts.zipPath)
		return nil
	}

	outDir := opts.outDir
	if outDir == "" {
		base := filepath.Base(opts.pdfPath)
		outDir = strings.TrimSuffix(base, filepath.Ext(base)) + "-flipbook"
	}
	if err := bundle.WriteDir(outDir); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	fmt.Printf("%s: %d pages, %d words, %d bytes -> %s\n",
		title, report.PageCount, report.Words, report.BundleBytes, filepath.Join(outDir, "index.html"))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
