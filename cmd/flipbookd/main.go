package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/whereissushi/zpravodaj-api/config"
	"github.com/whereissushi/zpravodaj-api/convert"
	"github.com/whereissushi/zpravodaj-api/observability"
	"github.com/whereissushi/zpravodaj-api/ocr/tesseract"
	"github.com/whereissushi/zpravodaj-api/queue"
	"github.com/whereissushi/zpravodaj-api/raster/mupdf"
	"github.com/whereissushi/zpravodaj-api/server"
	"github.com/whereissushi/zpravodaj-api/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flipbookd: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "flipbookd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := observability.NewTextLogger(os.Stderr, cfg.Level())

	converter, err := convert.New(cfg.ConvertOptions(), convert.WithLogger(logger))
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithAccount(cfg.Account),
		server.WithMaxUploadBytes(cfg.MaxUploadBytes),
		server.WithConvertTimeout(cfg.ConvertTimeout),
		server.WithCheck("renderer", func(context.Context) error { return mupdf.Probe() }),
		server.WithCheck("recognizer", func(context.Context) error { return tesseract.Available(cfg.Languages...) }),
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
		opts = append(opts, server.WithJobLog(jobs), server.WithCheck("storage", jobs.Ping))
	}

	enqueuer, err := queue.NewEnqueuer(cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("queue client: %w", err)
	}
	defer enqueuer.Close()
	opts = append(opts, server.WithQueue(enqueuer))

	srv := server.New(converter, opts...)
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", observability.String("addr", cfg.ListenAddr))
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
