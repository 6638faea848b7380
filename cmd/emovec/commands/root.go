package commands

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/emovec/internal/config"
	"github.com/ekisa-team/emovec/internal/env"
	"github.com/ekisa-team/emovec/internal/logger"
)

// version is set at build time with -ldflags "-X ...commands.version=...".
var version = "dev"

var (
	configPath string
	logLevel   = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "emovec",
	Short: "Two-stage speech emotion recognition",
	Long: `emovec embeds speech with an emotion2vec model and classifies the
embedding into emotion categories with a second model.

Examples:
  emovec serve --config ./config.yaml
  emovec infer clip.wav --json
  emovec models`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		filepath.Join(config.DefaultConfigPath(), "config.yaml"), "path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(modelsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setupLogger installs the process logger for cfg and returns it.
func setupLogger(cfg *config.Config) *slog.Logger {
	applyLogLevel(cfg)
	log := logger.New(env.FromEnv(),
		logger.WithLevel(logLevel),
		logger.WithLogToFile(cfg.Logging.ToFile),
		logger.WithLogFile(cfg.Logging.File),
	)
	slog.SetDefault(log)
	return log
}

func applyLogLevel(cfg *config.Config) {
	if level, ok := logger.ParseLevel(cfg.Logging.Level); ok {
		logLevel.Set(level)
	}
}
