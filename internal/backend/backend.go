package backend

import (
	"context"

	"github.com/ekisa-team/emovec/internal/tensor"
)

// BackendProvider is a string identifier for a backend provider.
type BackendProvider string

const (
	BackendProviderONNXRuntime BackendProvider = "onnxruntime"
	BackendProviderStub        BackendProvider = "stub"
)

// Backend defines the core interface for all inference engines.
type Backend interface {
	// Provider returns the backend identifier.
	Provider() BackendProvider

	// Load reads the model artifact at path and returns a reusable handle.
	// Implementations wrap ErrArtifactNotFound or ErrLoad.
	Load(ctx context.Context, path string) (Handle, error)

	// Close cleans up resources shared by every handle of this backend.
	Close() error
}

// Handle is a loaded computational graph bound to one model artifact.
//
// Run must be safe for concurrent use when the underlying engine allows it.
type Handle interface {
	// Path returns the artifact the handle was loaded from.
	Path() string

	// Inputs returns the input tensors the model declares.
	Inputs() []tensor.Info

	// Outputs returns the output tensors the model declares.
	Outputs() []tensor.Info

	// Run executes the graph against named inputs and returns the requested
	// outputs. An output the engine did not produce is absent from the map.
	// Engine faults wrap ErrExecution.
	Run(ctx context.Context, inputs map[string]*tensor.Tensor, outputs []string) (map[string]*tensor.Tensor, error)

	// Close releases the handle.
	Close() error
}

// FindInput returns the declared input with the given name.
func FindInput(h Handle, name string) (tensor.Info, bool) {
	for _, info := range h.Inputs() {
		if info.Name == name {
			return info, true
		}
	}
	return tensor.Info{}, false
}
