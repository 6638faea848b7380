// Package pipeline chains the emotion2vec embedding model and its classifier
// head into a single inference call.
//
// Infer never returns an error: every recoverable failure is logged, passed
// to the Observer and reported as an absent result. Configuration failures
// (a missing model file, a classifier whose mask input does not fit) are
// fatal. New reports them up front; if one surfaces later the pipeline
// becomes unusable and Err returns it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ekisa-team/emovec/internal/backend"
	"github.com/ekisa-team/emovec/internal/model"
	"github.com/ekisa-team/emovec/internal/tensor"
)

// Scores are the raw, un-normalized classifier outputs, one per class.
type Scores []float32

// SessionManager provides memoized model handles.
type SessionManager interface {
	Acquire(ctx context.Context, path string, opts ...model.AcquireOption) (backend.Handle, error)
	Verify(path string) error
}

// Pipeline runs the two-stage inference. It is safe for concurrent use.
type Pipeline struct {
	sessions SessionManager
	opts     Options
	log      *slog.Logger
	observer Observer

	classes  atomic.Int64
	maskType atomic.Int32

	mu    sync.RWMutex
	fatal error
}

// New creates a pipeline and verifies that every configured artifact exists.
// Models are loaded lazily on the first Infer.
func New(sessions SessionManager, opts Options) (*Pipeline, error) {
	opts.applyDefaults()
	if opts.EmbeddingModel == "" {
		return nil, ErrNoEmbeddingModel
	}
	if opts.MaskType != tensor.Invalid && opts.MaskType != tensor.Bool && opts.MaskType != tensor.Uint8 {
		return nil, fmt.Errorf("pipeline: mask type %s: %w", opts.MaskType, tensor.ErrUnsupportedType)
	}

	if err := sessions.Verify(opts.EmbeddingModel); err != nil {
		return nil, err
	}
	if opts.ClassifierModel != "" {
		if err := sessions.Verify(opts.ClassifierModel); err != nil {
			return nil, err
		}
	}

	p := &Pipeline{
		sessions: sessions,
		opts:     opts,
		log:      opts.Logger.With("component", "pipeline"),
		observer: opts.Observer,
	}
	p.classes.Store(int64(opts.Classes))
	p.log.Debug("Pipeline created",
		"embedding", opts.EmbeddingModel,
		"classifier", opts.ClassifierModel,
		"min_samples", opts.MinSamples)
	return p, nil
}

// Err returns the fatal error that made the pipeline unusable, if any.
func (p *Pipeline) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.fatal
}

// Classes returns the pinned class count, or zero before the first success
// when no count was configured. An unconfigured single-stage pipeline never
// pins one.
func (p *Pipeline) Classes() int {
	return int(p.classes.Load())
}

// TwoStage reports whether a classifier follows the embedding model.
func (p *Pipeline) TwoStage() bool {
	return p.opts.ClassifierModel != ""
}

// Infer runs samples through both stages and returns the emotion scores.
// ok is false when the inference failed for any reason.
func (p *Pipeline) Infer(ctx context.Context, samples []float32) (scores Scores, ok bool) {
	if err := p.Err(); err != nil {
		p.fail(&StageError{Stage: StageInput, Kind: fatalKind(err), Err: err}, nil)
		return nil, false
	}

	stage := StageInput
	defer func() {
		if r := recover(); r != nil {
			p.fail(&StageError{
				Stage: stage,
				Kind:  KindExecutionFailure,
				Err:   fmt.Errorf("%w: %v", ErrPanic, r),
			}, debug.Stack(), "samples", len(samples))
			scores, ok = nil, false
		}
	}()

	if len(samples) < p.opts.MinSamples {
		p.fail(&StageError{
			Stage: StageInput,
			Kind:  KindInvalidInput,
			Err:   fmt.Errorf("%w: got %d samples, need %d", ErrInputTooShort, len(samples), p.opts.MinSamples),
		}, nil)
		return nil, false
	}

	stage = StageEmbedding
	embedder, serr := p.acquire(ctx, stage, p.opts.EmbeddingModel)
	if serr != nil {
		p.fail(serr, nil)
		return nil, false
	}

	var classifier backend.Handle
	if p.TwoStage() {
		stage = StageClassifier
		classifier, serr = p.acquire(ctx, stage, p.opts.ClassifierModel)
		if serr != nil {
			p.fail(serr, nil)
			return nil, false
		}
	}

	start := time.Now()

	stage = StageEmbedding
	input, err := tensor.NewFloat32(samples, 1, int64(len(samples)))
	if err != nil {
		p.fail(&StageError{Stage: stage, Kind: KindShapeMismatch, Err: err}, nil, "samples", len(samples))
		return nil, false
	}
	embedding, serr := p.run(ctx, stage, embedder, map[string]*tensor.Tensor{p.opts.InputName: input})
	if serr != nil {
		p.fail(serr, debug.Stack(), "input_shape", input.Shape())
		return nil, false
	}

	output := embedding
	if classifier != nil {
		stage = StageClassifier
		// One mask entry per embedding frame, never per input sample.
		frames := embedding.Dim(1)
		if frames <= 0 {
			p.fail(&StageError{
				Stage: stage,
				Kind:  KindShapeMismatch,
				Err:   fmt.Errorf("%w: embedding %s has no sequence axis", tensor.ErrShapeMismatch, embedding.Shape()),
			}, nil)
			return nil, false
		}
		mask, err := tensor.NewMask(int(frames), tensor.DType(p.maskType.Load()))
		if err != nil {
			p.fail(&StageError{Stage: stage, Kind: KindShapeMismatch, Err: err}, nil, "embedding_shape", embedding.Shape())
			return nil, false
		}

		output, serr = p.run(ctx, stage, classifier, map[string]*tensor.Tensor{
			p.opts.InputName: embedding,
			p.opts.MaskName:  mask,
		})
		if serr != nil {
			p.fail(serr, debug.Stack(), "embedding_shape", embedding.Shape(), "mask_shape", mask.Shape())
			return nil, false
		}
	}

	values, err := output.Float32s()
	if err != nil {
		p.fail(&StageError{Stage: stage, Kind: KindShapeMismatch, Err: err}, nil, "output_shape", output.Shape())
		return nil, false
	}
	if serr := p.pinClasses(stage, len(values)); serr != nil {
		p.fail(serr, nil, "output_shape", output.Shape())
		return nil, false
	}

	elapsed := time.Since(start)
	p.log.Info("Inference completed",
		"samples", len(samples),
		"classes", len(values),
		"latency", elapsed)
	p.observer.InferenceCompleted(len(samples), elapsed, len(values))

	return Scores(values), true
}

func (p *Pipeline) acquire(ctx context.Context, stage Stage, path string) (backend.Handle, *StageError) {
	var opts []model.AcquireOption
	if stage == StageClassifier {
		opts = append(opts, model.WithValidator(p.validateClassifier))
	}

	h, err := p.sessions.Acquire(ctx, path, opts...)
	if err == nil && stage == StageClassifier && p.maskType.Load() == int32(tensor.Invalid) {
		// The session may have been validated by another pipeline sharing the
		// manager; resolve the mask type from the handle itself.
		err = p.validateClassifier(h)
	}
	if err != nil {
		kind := fatalKind(err)
		if kind.Fatal() {
			p.poison(err)
		}
		return nil, &StageError{Stage: stage, Kind: kind, Err: err}
	}
	return h, nil
}

// validateClassifier checks the declared mask input and adopts its type.
func (p *Pipeline) validateClassifier(h backend.Handle) error {
	info, ok := backend.FindInput(h, p.opts.MaskName)
	if !ok {
		return &model.IncompatibleModelError{
			Path:   h.Path(),
			Reason: fmt.Sprintf("no %q input", p.opts.MaskName),
		}
	}
	if info.DType != tensor.Bool && info.DType != tensor.Uint8 {
		return &model.IncompatibleModelError{
			Path:   h.Path(),
			Reason: fmt.Sprintf("%q input has unsupported element type %s", p.opts.MaskName, info.DType),
		}
	}
	if p.opts.MaskType != tensor.Invalid && p.opts.MaskType != info.DType {
		return &model.IncompatibleModelError{
			Path:   h.Path(),
			Reason: fmt.Sprintf("%q input is %s, configured %s", p.opts.MaskName, info.DType, p.opts.MaskType),
		}
	}
	p.maskType.Store(int32(info.DType))
	return nil
}

func (p *Pipeline) run(ctx context.Context, stage Stage, h backend.Handle, inputs map[string]*tensor.Tensor) (*tensor.Tensor, *StageError) {
	start := time.Now()
	outputs, err := h.Run(ctx, inputs, []string{p.opts.OutputName})
	if err != nil {
		return nil, &StageError{Stage: stage, Kind: KindExecutionFailure, Err: err}
	}
	out, ok := outputs[p.opts.OutputName]
	if !ok || out == nil {
		return nil, &StageError{
			Stage: stage,
			Kind:  KindMissingOutput,
			Err:   fmt.Errorf("%w: %q", ErrMissingOutput, p.opts.OutputName),
		}
	}
	p.observer.StageCompleted(stage, time.Since(start), out.Shape())
	return out, nil
}

func (p *Pipeline) pinClasses(stage Stage, n int) *StageError {
	// A lone embedding model emits one vector per frame, so the score count
	// follows the input length unless a count was configured.
	if !p.TwoStage() && p.opts.Classes == 0 {
		return nil
	}
	if p.classes.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want := p.classes.Load(); want != int64(n) {
		return &StageError{
			Stage: stage,
			Kind:  KindShapeMismatch,
			Err:   fmt.Errorf("%w: got %d scores, want %d", ErrClassCount, n, want),
		}
	}
	return nil
}

func (p *Pipeline) poison(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fatal == nil {
		p.fatal = err
		p.log.Error("Pipeline disabled by configuration error", "error", err)
	}
}

func (p *Pipeline) fail(serr *StageError, stack []byte, attrs ...any) {
	args := append([]any{
		"stage", serr.Stage,
		"kind", serr.Kind,
		"error", serr.Err,
	}, attrs...)
	if stack != nil {
		args = append(args, "stack", string(stack))
	}
	p.log.Error("Inference failed", args...)
	p.observer.InferenceFailed(serr)
}

func fatalKind(err error) Kind {
	switch {
	case errors.Is(err, model.ErrMissingArtifact):
		return KindMissingArtifact
	case errors.Is(err, model.ErrIncompatibleModel):
		return KindIncompatibleModel
	default:
		return KindExecutionFailure
	}
}
