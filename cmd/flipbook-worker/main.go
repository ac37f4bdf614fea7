package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/whereissushi/zpravodaj-api/config"
	"github.com/whereissushi/zpravodaj-api/convert"
	"github.com/whereissushi/zpravodaj-api/observability"
	_ "github.com/whereissushi/zpravodaj-api/ocr/tesseract"
	"github.com/whereissushi/zpravodaj-api/queue"
	"github.com/whereissushi/zpravodaj-api/storage"
	"github.com/whereissushi/zpravodaj-api/upload"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flipbook-worker: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "flipbook-worker: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := observability.NewTextLogger(os.Stderr, cfg.Level())

	converter, err := convert.New(cfg.ConvertOptions(), convert.WithLogger(logger))
	if err != nil {
		return err
	}

	var uploader upload.Uploader
	if cfg.UploadBaseURL != "" {
		uploader, err = upload.NewHTTPUploader(cfg.UploadBaseURL,
			upload.WithToken(cfg.UploadToken),
			upload.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("upload target: %w", err)
		}
	} else {
		uploader = &upload.DirUploader{Root: cfg.OutputDir}
	}

	handler := &queue.Handler{
		Converter: converter,
		Uploader:  uploader,
		Timeout:   cfg.ConvertTimeout,
		Logger:    logger,
	}

	if cfg.DatabaseURL != "" {
		jobs, err := storage.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer jobs.Close()
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = jobs.Migrate(migrateCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("migrate storage: %w", err)
		}
		handler.Recorder = jobs
	}

	worker, err := queue.NewWorker(queue.WorkerConfig{
		RedisURL:    cfg.RedisURL,
		Concurrency: cfg.QueueConcurrency,
	}, handler)
	if err != nil {
		return err
	}
	// asynq installs its own SIGTERM/SIGINT handling; Run blocks until
	// a signal arrives and in-flight tasks drain.
	return worker.Run()
}
