package pipeline

import (
	"time"

	"github.com/ekisa-team/emovec/internal/tensor"
)

// Observer receives inference events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	// StageCompleted is called after each successful engine invocation.
	StageCompleted(stage Stage, elapsed time.Duration, output tensor.Shape)

	// InferenceCompleted is called exactly once per successful Infer with the
	// latency measured around both engine invocations.
	InferenceCompleted(samples int, elapsed time.Duration, classes int)

	// InferenceFailed is called once per failed Infer.
	InferenceFailed(err *StageError)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) StageCompleted(Stage, time.Duration, tensor.Shape) {}
func (NopObserver) InferenceCompleted(int, time.Duration, int)        {}
func (NopObserver) InferenceFailed(*StageError)                       {}
