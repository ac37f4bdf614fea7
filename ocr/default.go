package ocr

import "context"

var defaultEngine Engine = noopEngine{}

// DefaultEngine returns the registered default engine. Importing an
// implementation package (for example ocr/tesseract) replaces the
// initial no-op engine, mirroring database/sql driver registration.
func DefaultEngine() Engine {
	return defaultEngine
}

// SetDefaultEngine replaces the default engine.
func SetDefaultEngine(engine Engine) {
	defaultEngine = engine
}

type noopEngine struct{}

func (noopEngine) Name() string { return "noop" }

func (noopEngine) Recognize(_ context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID, Page: input.Page}, nil
}
