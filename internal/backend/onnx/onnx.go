//go:build onnxruntime

package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ekisa-team/emovec/internal/backend"
	"github.com/ekisa-team/emovec/internal/tensor"
)

// Available reports whether the native backend is compiled in.
func Available() bool { return true }

// Backend implements backend.Backend with ONNX Runtime. The runtime
// environment is process-global and initialized once, on the first Load.
type Backend struct {
	opts Options
	log  *slog.Logger

	initOnce sync.Once
	initErr  error
}

// NewBackend creates an ONNX Runtime backend.
func NewBackend(opts Options, logger *slog.Logger) (backend.Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		opts: opts,
		log:  logger.With("component", "backend.onnx"),
	}, nil
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderONNXRuntime
}

func (b *Backend) initialize() error {
	b.initOnce.Do(func() {
		if b.opts.LibraryPath != "" {
			ort.SetSharedLibraryPath(b.opts.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			b.initErr = fmt.Errorf("%w: initialize onnxruntime: %v", backend.ErrLoad, err)
			return
		}
		b.log.Info("ONNX Runtime initialized", "library_path", b.opts.LibraryPath)
	})
	return b.initErr
}

// Load implements backend.Backend. Sessions are created per input/output
// name set on first Run.
func (b *Backend) Load(ctx context.Context, path string) (backend.Handle, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", backend.ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", backend.ErrLoad, path, err)
	}
	if err := b.initialize(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("%w: inspect %s: %v", backend.ErrLoad, path, err)
	}

	h := &Handle{
		path:     path,
		threads:  b.opts.IntraOpThreads,
		inputs:   convertInfos(inputs),
		outputs:  convertInfos(outputs),
		sessions: make(map[string]*ort.DynamicAdvancedSession),
	}
	b.log.Debug("Model inspected", "path", path, "inputs", len(h.inputs), "outputs", len(h.outputs))
	return h, nil
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Handle is a loaded ONNX model.
type Handle struct {
	path    string
	threads int
	inputs  []tensor.Info
	outputs []tensor.Info

	mu       sync.Mutex
	sessions map[string]*ort.DynamicAdvancedSession
}

// Path implements backend.Handle.
func (h *Handle) Path() string { return h.path }

// Inputs implements backend.Handle.
func (h *Handle) Inputs() []tensor.Info { return h.inputs }

// Outputs implements backend.Handle.
func (h *Handle) Outputs() []tensor.Info { return h.outputs }

// Run implements backend.Handle. ONNX Runtime does not support cancelling a
// running graph here; ctx is not consulted.
func (h *Handle) Run(ctx context.Context, inputs map[string]*tensor.Tensor, outputs []string) (map[string]*tensor.Tensor, error) {
	inputNames := make([]string, 0, len(inputs))
	for name := range inputs {
		inputNames = append(inputNames, name)
	}
	sort.Strings(inputNames)

	session, err := h.session(inputNames, outputs)
	if err != nil {
		return nil, err
	}

	inValues := make([]ort.Value, len(inputNames))
	defer destroyAll(inValues)
	for i, name := range inputNames {
		v, err := toValue(inputs[name])
		if err != nil {
			return nil, fmt.Errorf("%w: input %q: %v", backend.ErrExecution, name, err)
		}
		inValues[i] = v
	}

	// nil outputs are allocated by onnxruntime.
	outValues := make([]ort.Value, len(outputs))
	defer destroyAll(outValues)
	if err := session.Run(inValues, outValues); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrExecution, err)
	}

	result := make(map[string]*tensor.Tensor, len(outputs))
	for i, name := range outputs {
		if outValues[i] == nil {
			continue
		}
		t, err := fromValue(outValues[i])
		if err != nil {
			return nil, fmt.Errorf("%w: output %q: %v", backend.ErrExecution, name, err)
		}
		result[name] = t
	}
	return result, nil
}

func (h *Handle) session(inputNames, outputNames []string) (*ort.DynamicAdvancedSession, error) {
	key := strings.Join(inputNames, ",") + "|" + strings.Join(outputNames, ",")

	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[key]; ok {
		return s, nil
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: session options: %v", backend.ErrLoad, err)
	}
	defer opts.Destroy()
	if h.threads > 0 {
		if err := opts.SetIntraOpNumThreads(h.threads); err != nil {
			return nil, fmt.Errorf("%w: intra-op threads: %v", backend.ErrLoad, err)
		}
	}

	s, err := ort.NewDynamicAdvancedSession(h.path, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: create session for %s: %v", backend.ErrLoad, h.path, err)
	}
	h.sessions[key] = s
	return s, nil
}

// Close implements backend.Handle.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for key, s := range h.sessions {
		if err := s.Destroy(); err != nil {
			errs = append(errs, err)
		}
		delete(h.sessions, key)
	}
	return errors.Join(errs...)
}

func toValue(t *tensor.Tensor) (ort.Value, error) {
	shape := ort.NewShape(t.Shape()...)
	switch t.DType() {
	case tensor.Float32:
		values, err := t.Float32s()
		if err != nil {
			return nil, err
		}
		return ort.NewTensor(shape, values)
	case tensor.Bool:
		return ort.NewCustomDataTensor(shape, t.Bytes(), ort.TensorElementDataTypeBool)
	case tensor.Uint8:
		return ort.NewCustomDataTensor(shape, t.Bytes(), ort.TensorElementDataTypeUint8)
	default:
		return nil, fmt.Errorf("%w: %s", tensor.ErrUnsupportedType, t.DType())
	}
}

func fromValue(v ort.Value) (*tensor.Tensor, error) {
	ft, ok := v.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: %T", tensor.ErrUnsupportedType, v)
	}
	// Copy out of onnxruntime-owned memory before the value is destroyed.
	data := append([]float32(nil), ft.GetData()...)
	return tensor.NewFloat32(data, ft.GetShape()...)
}

func convertInfos(in []ort.InputOutputInfo) []tensor.Info {
	out := make([]tensor.Info, 0, len(in))
	for _, info := range in {
		out = append(out, tensor.Info{
			Name:  info.Name,
			DType: convertDType(info.DataType),
			Shape: tensor.Shape(info.Dimensions).Clone(),
		})
	}
	return out
}

func convertDType(d ort.TensorElementDataType) tensor.DType {
	switch d {
	case ort.TensorElementDataTypeFloat:
		return tensor.Float32
	case ort.TensorElementDataTypeBool:
		return tensor.Bool
	case ort.TensorElementDataTypeUint8:
		return tensor.Uint8
	default:
		return tensor.Invalid
	}
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			_ = v.Destroy()
		}
	}
}
