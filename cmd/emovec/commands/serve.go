package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/emovec/internal/app"
	"github.com/ekisa-team/emovec/internal/config"
	grpcserver "github.com/ekisa-team/emovec/internal/server/grpc"
	httpserver "github.com/ekisa-team/emovec/internal/server/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the emotion API",
	Long: `Serve the emotion API over HTTP (huma, with /metrics) and gRPC.

The config file is watched: log level changes apply immediately, model
changes require a restart.

Examples:
  emovec serve
  EMOVEC_ENGINE=stub emovec serve -c ./config.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(configPath, nil, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}
		onReload(cfg)
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	cfg := watcher.Snapshot()
	log := setupLogger(cfg)
	remember(cfg)
	log.Info("Config loaded successfully", "config", configPath, "provider", cfg.Engine.Provider)

	a, err := app.Build(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Failed to close application", "error", err)
		}
	}()

	errc := make(chan error, 2)
	var (
		httpSrv *httpserver.Server
		grpcSrv *grpcserver.Server
	)

	if cfg.Server.HTTPAddr != config.ListenerOff {
		lis, err := net.Listen("tcp", cfg.Server.HTTPAddr)
		if err != nil {
			return fmt.Errorf("failed to bind HTTP listener: %w", err)
		}
		httpSrv = httpserver.NewServer(cfg.Server.HTTPAddr, version, a.Metrics, log)
		httpserver.NewEmotionHandler(httpSrv.API(), a.Emotion, cfg.Audio.SampleRate, a.Recorder)
		httpserver.NewModelsHandler(httpSrv.API(), a.Manager.Registry(), a.Health)
		go func() { errc <- httpSrv.Serve(lis) }()
	}

	if cfg.Server.GRPCAddr != config.ListenerOff {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to bind gRPC listener: %w", err)
		}
		grpcSrv = grpcserver.NewServer(
			grpcserver.NewEmotionServer(a.Emotion, cfg.Audio.SampleRate, a.Health, a.Recorder),
			log,
		)
		grpcSrv.SetServing(true)
		go func() { errc <- grpcSrv.Serve(lis) }()
	}

	if httpSrv == nil && grpcSrv == nil {
		return errors.New("both listeners are off")
	}

	select {
	case <-ctx.Done():
		log.Info("Shutdown requested")
	case err := <-errc:
		if err != nil {
			log.Error("Server terminated with error", "error", err)
		}
	}

	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown failed", "error", err)
		}
	}
	return nil
}

// loaded remembers the model paths the running pipeline was built with.
var loaded struct {
	embedding  string
	classifier string
	provider   string
}

func remember(cfg *config.Config) {
	loaded.embedding = cfg.EmbeddingPath()
	loaded.classifier = cfg.ClassifierPath()
	loaded.provider = cfg.Engine.Provider
}

func onReload(cfg *config.Config) {
	applyLogLevel(cfg)

	if cfg.EmbeddingPath() != loaded.embedding ||
		cfg.ClassifierPath() != loaded.classifier ||
		cfg.Engine.Provider != loaded.provider {
		slog.Warn("Model configuration changed; restart to apply",
			"embedding", cfg.EmbeddingPath(),
			"classifier", cfg.ClassifierPath(),
			"provider", cfg.Engine.Provider)
	}
}
