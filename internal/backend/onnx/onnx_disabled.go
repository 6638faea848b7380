//go:build !onnxruntime

package onnx

import (
	"log/slog"

	"github.com/ekisa-team/emovec/internal/backend"
)

// Available reports whether the native backend is compiled in.
func Available() bool { return false }

// NewBackend returns backend.ErrNativeUnavailable when the native backend is
// not built.
func NewBackend(opts Options, logger *slog.Logger) (backend.Backend, error) {
	return nil, backend.ErrNativeUnavailable
}
