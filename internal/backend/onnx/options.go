// Package onnx implements backend.Backend on top of ONNX Runtime.
//
// The native engine is only compiled with the onnxruntime build tag:
//
//	go build -tags onnxruntime ./cmd/emovec
//
// Without the tag, NewBackend returns backend.ErrNativeUnavailable so callers
// can report a configuration error instead of failing at link time.
package onnx

// Options configures the ONNX Runtime backend.
type Options struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default search path.
	LibraryPath string

	// IntraOpThreads bounds the threads used inside one operator. Zero lets
	// ONNX Runtime decide.
	IntraOpThreads int
}
