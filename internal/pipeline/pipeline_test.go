package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/emovec/internal/backend"
	"github.com/ekisa-team/emovec/internal/backend/backendtest"
	"github.com/ekisa-team/emovec/internal/backend/stub"
	"github.com/ekisa-team/emovec/internal/model"
	"github.com/ekisa-team/emovec/internal/pipeline"
	"github.com/ekisa-team/emovec/internal/tensor"
)

type recorder struct {
	mu        sync.Mutex
	stages    []pipeline.Stage
	latencies []time.Duration
	failures  []*pipeline.StageError
}

func (r *recorder) StageCompleted(stage pipeline.Stage, _ time.Duration, _ tensor.Shape) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (r *recorder) InferenceCompleted(_ int, elapsed time.Duration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies = append(r.latencies, elapsed)
}

func (r *recorder) InferenceFailed(err *pipeline.StageError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *recorder) lastFailure(t *testing.T) *pipeline.StageError {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.failures)
	return r.failures[len(r.failures)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o644))
	return path
}

type fixture struct {
	embeddingPath  string
	classifierPath string
	backend        *backendtest.Backend
	embedder       *backendtest.Handle
	classifier     *backendtest.Handle
	observer       *recorder
}

// newMockFixture wires a real session manager to a mocked engine.
func newMockFixture(t *testing.T, maskType tensor.DType) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		embeddingPath:  writeArtifact(t, dir, "emotion2vec.onnx"),
		classifierPath: writeArtifact(t, dir, "classifier.onnx"),
		backend:        new(backendtest.Backend),
		embedder:       new(backendtest.Handle),
		classifier:     new(backendtest.Handle),
		observer:       &recorder{},
	}
	f.backend.On("Provider").Return(backend.BackendProviderStub).Maybe()
	f.backend.On("Load", mock.Anything, f.embeddingPath).Return(f.embedder, nil).Maybe()
	f.backend.On("Load", mock.Anything, f.classifierPath).Return(f.classifier, nil).Maybe()

	f.embedder.On("Path").Return(f.embeddingPath).Maybe()
	f.classifier.On("Path").Return(f.classifierPath).Maybe()
	f.classifier.On("Inputs").Return([]tensor.Info{
		{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{1, -1, 768}},
		{Name: "padding_mask", DType: maskType, Shape: tensor.Shape{1, -1}},
	}).Maybe()
	return f
}

func (f *fixture) newPipeline(t *testing.T, mutate ...func(*pipeline.Options)) *pipeline.Pipeline {
	t.Helper()
	opts := pipeline.Options{
		EmbeddingModel:  f.embeddingPath,
		ClassifierModel: f.classifierPath,
		Logger:          quietLogger(),
		Observer:        f.observer,
	}
	for _, m := range mutate {
		m(&opts)
	}
	p, err := pipeline.New(model.NewManager(f.backend, nil, quietLogger()), opts)
	require.NoError(t, err)
	return p
}

func mustFloat32(t *testing.T, values []float32, shape ...int64) *tensor.Tensor {
	t.Helper()
	out, err := tensor.NewFloat32(values, shape...)
	require.NoError(t, err)
	return out
}

func outputs(t *tensor.Tensor) map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{"output": t}
}

func TestInfer_MaskFollowsEmbeddingLength(t *testing.T) {
	f := newMockFixture(t, tensor.Bool)
	embedding := mustFloat32(t, make([]float32, 50*4), 1, 50, 4)
	f.embedder.On("Run", mock.Anything, mock.MatchedBy(func(in map[string]*tensor.Tensor) bool {
		return in["input"].Shape().String() == "[1, 16000]"
	}), []string{"output"}).Return(outputs(embedding), nil).Once()

	var mask *tensor.Tensor
	f.classifier.On("Run", mock.Anything, mock.Anything, []string{"output"}).
		Run(func(args mock.Arguments) {
			mask = args.Get(1).(map[string]*tensor.Tensor)["padding_mask"]
		}).
		Return(outputs(mustFloat32(t, []float32{0.1, -0.2, 0.3}, 1, 3)), nil).
		Once()

	p := f.newPipeline(t)
	scores, ok := p.Infer(context.Background(), make([]float32, 16000))
	require.True(t, ok)
	assert.Equal(t, pipeline.Scores{0.1, -0.2, 0.3}, scores)

	require.NotNil(t, mask)
	assert.Equal(t, tensor.Shape{1, 50}, mask.Shape())
	assert.Equal(t, tensor.Bool, mask.DType())
	for _, b := range mask.Bytes() {
		assert.Equal(t, byte(1), b)
	}
	assert.Equal(t, []pipeline.Stage{pipeline.StageEmbedding, pipeline.StageClassifier}, f.observer.stages)
}

func TestInfer_MaskAdoptsDeclaredUint8(t *testing.T) {
	f := newMockFixture(t, tensor.Uint8)
	f.embedder.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(outputs(mustFloat32(t, make([]float32, 3*2), 1, 3, 2)), nil)
	f.classifier.On("Run", mock.Anything, mock.MatchedBy(func(in map[string]*tensor.Tensor) bool {
		return in["padding_mask"].DType() == tensor.Uint8
	}), mock.Anything).Return(outputs(mustFloat32(t, []float32{1}, 1, 1)), nil).Once()

	_, ok := f.newPipeline(t).Infer(context.Background(), make([]float32, 960))
	assert.True(t, ok)
	f.classifier.AssertExpectations(t)
}

func TestInfer_ExplicitMaskTypeMismatchIsFatal(t *testing.T) {
	f := newMockFixture(t, tensor.Uint8)
	f.classifier.On("Close").Return(nil).Maybe()

	p := f.newPipeline(t, func(o *pipeline.Options) { o.MaskType = tensor.Bool })
	_, ok := p.Infer(context.Background(), make([]float32, 640))
	assert.False(t, ok)

	assert.ErrorIs(t, p.Err(), model.ErrIncompatibleModel)
	assert.Equal(t, pipeline.KindIncompatibleModel, f.observer.lastFailure(t).Kind)
	f.embedder.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	f.classifier.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestInfer_StageOneFailureSkipsClassifier(t *testing.T) {
	f := newMockFixture(t, tensor.Bool)
	f.embedder.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.Join(backend.ErrExecution, errors.New("bad graph")))

	p := f.newPipeline(t)
	scores, ok := p.Infer(context.Background(), make([]float32, 16000))
	assert.False(t, ok)
	assert.Nil(t, scores)

	failure := f.observer.lastFailure(t)
	assert.Equal(t, pipeline.StageEmbedding, failure.Stage)
	assert.Equal(t, pipeline.KindExecutionFailure, failure.Kind)
	assert.ErrorIs(t, failure, backend.ErrExecution)
	assert.NoError(t, p.Err())
	f.classifier.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.observer.latencies)
}

func TestInfer_MissingOutput(t *testing.T) {
	tests := []struct {
		name  string
		stage pipeline.Stage
		setup func(t *testing.T, f *fixture)
	}{
		{
			name:  "embedding",
			stage: pipeline.StageEmbedding,
			setup: func(t *testing.T, f *fixture) {
				f.embedder.On("Run", mock.Anything, mock.Anything, mock.Anything).
					Return(map[string]*tensor.Tensor{}, nil)
			},
		},
		{
			name:  "classifier",
			stage: pipeline.StageClassifier,
			setup: func(t *testing.T, f *fixture) {
				f.embedder.On("Run", mock.Anything, mock.Anything, mock.Anything).
					Return(outputs(mustFloat32(t, make([]float32, 2), 1, 2, 1)), nil)
				f.classifier.On("Run", mock.Anything, mock.Anything, mock.Anything).
					Return(map[string]*tensor.Tensor{"logits": mustFloat32(t, []float32{1}, 1, 1)}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMockFixture(t, tensor.Bool)
			tt.setup(t, f)

			_, ok := f.newPipeline(t).Infer(context.Background(), make([]float32, 640))
			assert.False(t, ok)

			failure := f.observer.lastFailure(t)
			assert.Equal(t, tt.stage, failure.Stage)
			assert.Equal(t, pipeline.KindMissingOutput, failure.Kind)
			assert.ErrorIs(t, failure, pipeline.ErrMissingOutput)
		})
	}
}

func TestInfer_PanicIsContained(t *testing.T) {
	f := newMockFixture(t, tensor.Bool)
	f.embedder.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(outputs(mustFloat32(t, make([]float32, 2), 1, 2, 1)), nil)
	f.classifier.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("native crash") })

	p := f.newPipeline(t)
	scores, ok := p.Infer(context.Background(), make([]float32, 640))
	assert.False(t, ok)
	assert.Nil(t, scores)

	failure := f.observer.lastFailure(t)
	assert.Equal(t, pipeline.StageClassifier, failure.Stage)
	assert.Equal(t, pipeline.KindExecutionFailure, failure.Kind)
	assert.ErrorIs(t, failure, pipeline.ErrPanic)
}

func TestInfer_EmptyInputNeverReachesEngine(t *testing.T) {
	f := newMockFixture(t, tensor.Bool)
	p := f.newPipeline(t)

	for _, samples := range [][]float32{nil, {}} {
		scores, ok := p.Infer(context.Background(), samples)
		assert.False(t, ok)
		assert.Nil(t, scores)
		assert.Equal(t, pipeline.KindInvalidInput, f.observer.lastFailure(t).Kind)
	}

	f.backend.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestInfer_MinSamples(t *testing.T) {
	f := newMockFixture(t, tensor.Bool)
	p := f.newPipeline(t, func(o *pipeline.Options) { o.MinSamples = 320 })

	_, ok := p.Infer(context.Background(), make([]float32, 319))
	assert.False(t, ok)
	failure := f.observer.lastFailure(t)
	assert.Equal(t, pipeline.KindInvalidInput, failure.Kind)
	assert.ErrorIs(t, failure, pipeline.ErrInputTooShort)
}

func TestInfer_ClassCountIsPinned(t *testing.T) {
	f := newMockFixture(t, tensor.Bool)
	f.embedder.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(outputs(mustFloat32(t, make([]float32, 2), 1, 2, 1)), nil)
	f.classifier.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(outputs(mustFloat32(t, []float32{1, 2, 3}, 1, 3)), nil).Once()
	f.classifier.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(outputs(mustFloat32(t, []float32{1, 2}, 1, 2)), nil).Once()

	p := f.newPipeline(t)
	assert.Zero(t, p.Classes())

	_, ok := p.Infer(context.Background(), make([]float32, 640))
	require.True(t, ok)
	assert.Equal(t, 3, p.Classes())

	_, ok = p.Infer(context.Background(), make([]float32, 640))
	assert.False(t, ok)
	failure := f.observer.lastFailure(t)
	assert.Equal(t, pipeline.KindShapeMismatch, failure.Kind)
	assert.ErrorIs(t, failure, pipeline.ErrClassCount)
}

func TestInfer_LatencyRecordedOncePerSuccess(t *testing.T) {
	f := newMockFixture(t, tensor.Bool)
	f.embedder.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(outputs(mustFloat32(t, make([]float32, 2), 1, 2, 1)), nil)
	f.classifier.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(outputs(mustFloat32(t, []float32{1, 2}, 1, 2)), nil)

	p := f.newPipeline(t)
	for range 3 {
		_, ok := p.Infer(context.Background(), make([]float32, 640))
		require.True(t, ok)
	}
	_, ok := p.Infer(context.Background(), nil)
	require.False(t, ok)

	require.Len(t, f.observer.latencies, 3)
	for _, l := range f.observer.latencies {
		assert.GreaterOrEqual(t, l, time.Duration(0))
	}
}

func TestNew_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	existing := writeArtifact(t, dir, "emotion2vec.onnx")
	missing := filepath.Join(dir, "classifier.onnx")

	b := new(backendtest.Backend)
	b.On("Provider").Return(backend.BackendProviderStub).Maybe()

	_, err := pipeline.New(model.NewManager(b, nil, quietLogger()), pipeline.Options{
		EmbeddingModel:  existing,
		ClassifierModel: missing,
	})
	var missingErr *model.MissingArtifactError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, missing, missingErr.Path)

	_, err = pipeline.New(model.NewManager(b, nil, quietLogger()), pipeline.Options{})
	assert.ErrorIs(t, err, pipeline.ErrNoEmbeddingModel)

	b.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestInfer_ArtifactRemovedBeforeFirstUsePoisons(t *testing.T) {
	f := newMockFixture(t, tensor.Bool)
	p := f.newPipeline(t)

	require.NoError(t, os.Remove(f.classifierPath))

	_, ok := p.Infer(context.Background(), make([]float32, 640))
	assert.False(t, ok)
	assert.ErrorIs(t, p.Err(), model.ErrMissingArtifact)

	// Restoring the file does not revive a poisoned pipeline.
	writeArtifact(t, filepath.Dir(f.classifierPath), filepath.Base(f.classifierPath))
	_, ok = p.Infer(context.Background(), make([]float32, 640))
	assert.False(t, ok)
	assert.Equal(t, pipeline.KindMissingArtifact, f.observer.lastFailure(t).Kind)

	f.backend.AssertNotCalled(t, "Load", mock.Anything, f.classifierPath)
	f.embedder.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func newStubPipeline(t *testing.T, classifier bool, obs pipeline.Observer) (*pipeline.Pipeline, *countingBackend) {
	t.Helper()
	dir := t.TempDir()
	b := &countingBackend{Backend: stub.NewBackend(stub.Options{Dim: 16, Classes: 9}, quietLogger())}
	opts := pipeline.Options{
		EmbeddingModel: writeArtifact(t, dir, "emotion2vec.onnx"),
		Logger:         quietLogger(),
		Observer:       obs,
	}
	if classifier {
		opts.ClassifierModel = writeArtifact(t, dir, "classifier.onnx")
	}
	p, err := pipeline.New(model.NewManager(b, nil, quietLogger()), opts)
	require.NoError(t, err)
	return p, b
}

type countingBackend struct {
	backend.Backend
	mu    sync.Mutex
	loads map[string]int
}

func (c *countingBackend) Load(ctx context.Context, path string) (backend.Handle, error) {
	c.mu.Lock()
	if c.loads == nil {
		c.loads = make(map[string]int)
	}
	c.loads[path]++
	c.mu.Unlock()
	return c.Backend.Load(ctx, path)
}

func sine(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%160) / 160
	}
	return out
}

func TestInfer_StubIsIdempotent(t *testing.T) {
	p, _ := newStubPipeline(t, true, nil)
	samples := sine(16000)

	first, ok := p.Infer(context.Background(), samples)
	require.True(t, ok)
	second, ok := p.Infer(context.Background(), samples)
	require.True(t, ok)

	assert.Len(t, first, 9)
	assert.Equal(t, first, second)
}

func TestInfer_SingleStageFlattensEmbedding(t *testing.T) {
	p, _ := newStubPipeline(t, false, nil)
	assert.False(t, p.TwoStage())

	scores, ok := p.Infer(context.Background(), sine(16000))
	require.True(t, ok)
	assert.Len(t, scores, 50*16)
}

func TestInfer_SingleStageAcceptsVaryingLengths(t *testing.T) {
	obs := &recorder{}
	p, _ := newStubPipeline(t, false, obs)

	long, ok := p.Infer(context.Background(), sine(16000))
	require.True(t, ok)
	short, ok := p.Infer(context.Background(), sine(8000))
	require.True(t, ok)

	assert.Len(t, long, 50*16)
	assert.Len(t, short, 25*16)
	assert.Zero(t, p.Classes())
	assert.Len(t, obs.latencies, 2)
}

func TestInfer_ConcurrentCallsShareSessions(t *testing.T) {
	obs := &recorder{}
	p, b := newStubPipeline(t, true, obs)

	const workers = 12
	var wg sync.WaitGroup
	results := make([]pipeline.Scores, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scores, ok := p.Infer(context.Background(), sine(8000))
			if ok {
				results[i] = scores
			}
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
		assert.Len(t, r, 9)
	}
	for path, n := range b.loads {
		assert.Equal(t, 1, n, path)
	}
	assert.Len(t, b.loads, 2)
	assert.Len(t, obs.latencies, workers)
}
