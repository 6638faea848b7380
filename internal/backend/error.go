package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrBackendNotFound          = errors.New("backend not found in registry")
	ErrBackendAlreadyRegistered = errors.New("backend is already registered in the registry")
	ErrNativeUnavailable        = errors.New("backend: native engine not compiled in")

	ErrArtifactNotFound = errors.New("backend: model artifact not found")
	ErrLoad             = errors.New("backend: model load failed")
	ErrExecution        = errors.New("backend: graph execution failed")
)
