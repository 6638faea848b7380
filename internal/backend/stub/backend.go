// Package stub implements a deterministic, pure-Go inference backend.
//
// The stub mimics the tensor contract of an emotion2vec embedding model and
// its classifier head without running any neural network: audio of shape
// [1, N] becomes frames of shape [1, N/Hop, Dim], and frames plus a padding
// mask become scores of shape [1, Classes]. It is used for development and
// end-to-end tests where the native runtime is not available.
package stub

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ekisa-team/emovec/internal/backend"
	"github.com/ekisa-team/emovec/internal/tensor"
)

// Options configures the stub graphs.
type Options struct {
	Hop        int
	Dim        int
	Classes    int
	MaskType   tensor.DType
	InputName  string
	OutputName string
	MaskName   string
}

func (o *Options) applyDefaults() {
	if o.Hop <= 0 {
		o.Hop = 320
	}
	if o.Dim <= 0 {
		o.Dim = 768
	}
	if o.Classes <= 0 {
		o.Classes = 9
	}
	if o.MaskType == tensor.Invalid {
		o.MaskType = tensor.Bool
	}
	if o.InputName == "" {
		o.InputName = "input"
	}
	if o.OutputName == "" {
		o.OutputName = "output"
	}
	if o.MaskName == "" {
		o.MaskName = "padding_mask"
	}
}

// Backend implements backend.Backend with deterministic arithmetic.
type Backend struct {
	opts Options
	log  *slog.Logger
}

// NewBackend creates a stub backend.
func NewBackend(opts Options, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()
	return &Backend{
		opts: opts,
		log:  logger.With("component", "backend.stub"),
	}
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderStub
}

// Load implements backend.Backend. The artifact must exist; its content is
// ignored.
func (b *Backend) Load(ctx context.Context, path string) (backend.Handle, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", backend.ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", backend.ErrLoad, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", backend.ErrLoad, path)
	}

	b.log.Debug("Stub graph loaded", "path", path, "hop", b.opts.Hop, "dim", b.opts.Dim, "classes", b.opts.Classes)
	return &Handle{path: path, opts: b.opts}, nil
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	return nil
}

// Handle is a stub graph. It acts as the classifier when the mask input is
// supplied and as the embedding model otherwise.
type Handle struct {
	path string
	opts Options
}

// Path implements backend.Handle.
func (h *Handle) Path() string { return h.path }

// Inputs implements backend.Handle.
func (h *Handle) Inputs() []tensor.Info {
	return []tensor.Info{
		{Name: h.opts.InputName, DType: tensor.Float32, Shape: tensor.Shape{1, -1}},
		{Name: h.opts.MaskName, DType: h.opts.MaskType, Shape: tensor.Shape{1, -1}},
	}
}

// Outputs implements backend.Handle.
func (h *Handle) Outputs() []tensor.Info {
	return []tensor.Info{
		{Name: h.opts.OutputName, DType: tensor.Float32, Shape: tensor.Shape{1, -1}},
	}
}

// Run implements backend.Handle.
func (h *Handle) Run(ctx context.Context, inputs map[string]*tensor.Tensor, outputs []string) (map[string]*tensor.Tensor, error) {
	x, ok := inputs[h.opts.InputName]
	if !ok {
		return nil, fmt.Errorf("%w: missing input %q", backend.ErrExecution, h.opts.InputName)
	}
	values, err := x.Float32s()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrExecution, err)
	}

	var out *tensor.Tensor
	if mask, ok := inputs[h.opts.MaskName]; ok {
		out, err = h.classify(x, values, mask)
	} else {
		out, err = h.embed(x, values)
	}
	if err != nil {
		return nil, err
	}

	result := make(map[string]*tensor.Tensor, 1)
	for _, name := range outputs {
		if name == h.opts.OutputName {
			result[name] = out
		}
	}
	return result, nil
}

// embed averages every Hop samples into one frame of Dim features.
func (h *Handle) embed(x *tensor.Tensor, values []float32) (*tensor.Tensor, error) {
	if shape := x.Shape(); len(shape) != 2 || shape[0] != 1 {
		return nil, fmt.Errorf("%w: expected [1, N] audio, got %s", backend.ErrExecution, x.Shape())
	}
	frames := len(values) / h.opts.Hop
	if frames == 0 {
		return nil, fmt.Errorf("%w: %d samples is shorter than one %d-sample frame",
			backend.ErrExecution, len(values), h.opts.Hop)
	}

	emb := make([]float32, frames*h.opts.Dim)
	for t := 0; t < frames; t++ {
		var sum float32
		for _, v := range values[t*h.opts.Hop : (t+1)*h.opts.Hop] {
			sum += v
		}
		mean := sum / float32(h.opts.Hop)
		for d := 0; d < h.opts.Dim; d++ {
			emb[t*h.opts.Dim+d] = mean + float32(d)*1e-3
		}
	}

	out, err := tensor.NewFloat32(emb, 1, int64(frames), int64(h.opts.Dim))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrExecution, err)
	}
	return out, nil
}

// classify folds the feature axis into Classes buckets and averages over
// frames. The mask must cover exactly the frame axis.
func (h *Handle) classify(x *tensor.Tensor, values []float32, mask *tensor.Tensor) (*tensor.Tensor, error) {
	shape := x.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("%w: expected [1, T, D] embedding, got %s", backend.ErrExecution, shape)
	}
	frames, dim := int(shape[1]), int(shape[2])

	if mask.DType() != h.opts.MaskType {
		return nil, fmt.Errorf("%w: mask must be %s, got %s", backend.ErrExecution, h.opts.MaskType, mask.DType())
	}
	if mask.Dim(1) != int64(frames) {
		return nil, fmt.Errorf("%w: mask length %d does not match %d frames", backend.ErrExecution, mask.Dim(1), frames)
	}

	scores := make([]float32, h.opts.Classes)
	counts := make([]int, h.opts.Classes)
	for t := 0; t < frames; t++ {
		for d := 0; d < dim; d++ {
			c := d % h.opts.Classes
			scores[c] += values[t*dim+d]
			counts[c]++
		}
	}
	for c := range scores {
		if counts[c] > 0 {
			scores[c] /= float32(counts[c])
		}
	}

	out, err := tensor.NewFloat32(scores, 1, int64(h.opts.Classes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrExecution, err)
	}
	return out, nil
}

// Close implements backend.Handle.
func (h *Handle) Close() error {
	return nil
}
