package model

import (
	"errors"
	"fmt"
)

// Error definitions for the model package.
var (
	ErrMissingArtifact   = errors.New("model artifact does not exist")
	ErrIncompatibleModel = errors.New("model is incompatible with the pipeline")
	ErrManagerClosed     = errors.New("model manager is closed")
)

// MissingArtifactError reports a model file that was absent on first use.
// It is a configuration error: the session stays poisoned.
type MissingArtifactError struct {
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("model artifact %s does not exist", e.Path)
}

// Is matches ErrMissingArtifact.
func (e *MissingArtifactError) Is(target error) bool {
	return target == ErrMissingArtifact
}

// IncompatibleModelError reports a loaded model whose declared inputs do not
// fit the pipeline configuration.
type IncompatibleModelError struct {
	Path   string
	Reason string
}

func (e *IncompatibleModelError) Error() string {
	return fmt.Sprintf("model %s is incompatible: %s", e.Path, e.Reason)
}

// Is matches ErrIncompatibleModel.
func (e *IncompatibleModelError) Is(target error) bool {
	return target == ErrIncompatibleModel
}
