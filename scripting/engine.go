// Package scripting executes the bundle's generated viewer script
// outside a browser. Bundle verification and the viewer logic tests run
// the shipped code headlessly instead of re-modelling its algorithms in
// Go.
package scripting

import "context"

// Engine represents a script runtime. State persists across Execute
// calls on one engine, so a script can be loaded once and probed with
// follow-up expressions.
type Engine interface {
	// Execute runs a script and returns its completion value exported
	// to plain Go values (maps, slices, numbers, strings).
	Execute(ctx context.Context, script string) (interface{}, error)

	// Set binds a global name in the script environment.
	Set(name string, value interface{}) error
}
