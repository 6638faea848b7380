package pipeline

import (
	"errors"
	"fmt"
)

// Error definitions for the pipeline package.
var (
	ErrNoEmbeddingModel = errors.New("pipeline: embedding model path is required")
	ErrMissingOutput    = errors.New("pipeline: engine did not produce the requested output")
	ErrInputTooShort    = errors.New("pipeline: input is shorter than the minimum length")
	ErrClassCount       = errors.New("pipeline: class count changed between calls")
	ErrPanic            = errors.New("pipeline: engine panicked")
)

// Stage identifies where in the pipeline a failure happened.
type Stage string

const (
	StageInput      Stage = "input"
	StageEmbedding  Stage = "embedding"
	StageClassifier Stage = "classifier"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindInvalidInput: the samples were rejected before any engine call.
	KindInvalidInput Kind = "invalid_input"

	// KindShapeMismatch: a tensor could not be built from the data at hand.
	KindShapeMismatch Kind = "shape_mismatch"

	// KindExecutionFailure: the engine raised an error or panicked.
	KindExecutionFailure Kind = "execution_failure"

	// KindMissingOutput: the engine returned without the requested output.
	KindMissingOutput Kind = "missing_output"

	// KindMissingArtifact: a model file was absent. Fatal.
	KindMissingArtifact Kind = "missing_artifact"

	// KindIncompatibleModel: a model does not fit the configuration. Fatal.
	KindIncompatibleModel Kind = "incompatible_model"
)

// Fatal reports whether the kind makes the pipeline permanently unusable.
func (k Kind) Fatal() bool {
	return k == KindMissingArtifact || k == KindIncompatibleModel
}

// StageError describes a failed inference.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s stage: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
