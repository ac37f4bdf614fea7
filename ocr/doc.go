// Package ocr defines the contract for plugging word-level text
// recognition engines into the flipbook pipeline. The interfaces are
// intentionally small and transport-agnostic so an engine can be backed
// by a native library, a local binary, or a remote API without leaking
// provider-specific concerns into callers.
package ocr
