// Package app assembles the emotion pipeline and its collaborators from
// configuration.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ekisa-team/emovec/internal/backend"
	"github.com/ekisa-team/emovec/internal/backend/onnx"
	"github.com/ekisa-team/emovec/internal/backend/stub"
	"github.com/ekisa-team/emovec/internal/config"
	"github.com/ekisa-team/emovec/internal/model"
	"github.com/ekisa-team/emovec/internal/pipeline"
	"github.com/ekisa-team/emovec/internal/service"
	"github.com/ekisa-team/emovec/internal/telemetry"
)

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config   *config.Config
	Backends *backend.Registry
	Manager  *model.Manager
	Pipeline *pipeline.Pipeline
	Recorder *telemetry.Recorder
	Emotion  *service.Emotion
	Metrics  *prometheus.Registry

	log *slog.Logger
}

// Build creates every component described by cfg. A missing model artifact
// is returned as *model.MissingArtifactError; the caller decides whether to
// exit.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine, err := newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	backends := backend.NewRegistry()
	if err := backends.Register(engine); err != nil {
		return nil, err
	}

	manager := model.NewManager(engine, model.NewRegistry(), logger)
	recorder := telemetry.NewRecorder(logger, metrics)

	p, err := pipeline.New(manager, pipeline.Options{
		EmbeddingModel:  cfg.EmbeddingPath(),
		ClassifierModel: cfg.ClassifierPath(),
		InputName:       cfg.Pipeline.InputName,
		OutputName:      cfg.Pipeline.OutputName,
		MaskName:        cfg.Pipeline.MaskName,
		MaskType:        cfg.MaskDType(),
		MinSamples:      cfg.Pipeline.MinSamples,
		Classes:         cfg.Pipeline.Classes,
		Logger:          logger,
		Observer:        recorder,
	})
	if err != nil {
		return nil, errors.Join(err, backends.Close())
	}

	logger.Info("Pipeline configured",
		"provider", engine.Provider(),
		"embedding", cfg.EmbeddingPath(),
		"classifier", cfg.ClassifierPath(),
		"two_stage", p.TwoStage())

	return &App{
		Config:   cfg,
		Backends: backends,
		Manager:  manager,
		Pipeline: p,
		Recorder: recorder,
		Emotion:  service.NewEmotion(p, cfg.Pipeline.Labels),
		Metrics:  metrics,
		log:      logger,
	}, nil
}

// Health reports the fatal pipeline error, if any.
func (a *App) Health() error {
	return a.Pipeline.Err()
}

// Close releases model handles, then the engines.
func (a *App) Close() error {
	a.Recorder.LogSummary()
	return errors.Join(a.Manager.Close(), a.Backends.Close())
}

func newBackend(cfg *config.Config, logger *slog.Logger) (backend.Backend, error) {
	switch backend.BackendProvider(cfg.Engine.Provider) {
	case backend.BackendProviderONNXRuntime:
		b, err := onnx.NewBackend(onnx.Options{
			LibraryPath:    cfg.Engine.LibraryPath,
			IntraOpThreads: cfg.Engine.IntraOpThreads,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("app: onnxruntime engine: %w (build with -tags onnxruntime or use the stub engine)", err)
		}
		return b, nil
	case backend.BackendProviderStub:
		return stub.NewBackend(stub.Options{
			Hop:        cfg.Engine.Stub.Hop,
			Dim:        cfg.Engine.Stub.Dim,
			Classes:    cfg.Engine.Stub.Classes,
			MaskType:   cfg.MaskDType(),
			InputName:  cfg.Pipeline.InputName,
			OutputName: cfg.Pipeline.OutputName,
			MaskName:   cfg.Pipeline.MaskName,
		}, logger), nil
	default:
		return nil, fmt.Errorf("app: %w: %q", backend.ErrBackendNotFound, cfg.Engine.Provider)
	}
}
