package scripting

import (
	"context"

	"github.com/dop251/goja"
)

// GojaEngine implements Engine on a single goja runtime. Not safe for
// concurrent use; verification runs create one engine per bundle.
type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	return &GojaEngine{vm: goja.New()}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val.Export(), nil
}

func (e *GojaEngine) Set(name string, value interface{}) error {
	return e.vm.Set(name, value)
}
