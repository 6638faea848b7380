package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/emovec/internal/backend"
	"github.com/ekisa-team/emovec/internal/backend/onnx"
	"github.com/ekisa-team/emovec/internal/config"
	"github.com/ekisa-team/emovec/internal/xfs"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show the configured model artifacts",
	Long: `Show the embedding and classifier artifacts the config points at and
whether each exists on disk. Nothing is loaded.

Examples:
  emovec models
  EMOVEC_MODELS_PATH=/srv/models emovec models`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func runModels(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tPATH\tSTATUS")
	fmt.Fprintf(w, "embedding\t%s\t%s\n", cfg.EmbeddingPath(), artifactStatus(cfg.EmbeddingPath()))
	if path := cfg.ClassifierPath(); path != "" {
		fmt.Fprintf(w, "classifier\t%s\t%s\n", path, artifactStatus(path))
	} else {
		fmt.Fprintln(w, "classifier\t-\tsingle-stage")
	}
	fmt.Fprintf(w, "\nprovider: %s%s\n", cfg.Engine.Provider, providerNote(cfg.Engine.Provider))
	return w.Flush()
}

func providerNote(provider string) string {
	if backend.BackendProvider(provider) == backend.BackendProviderONNXRuntime && !onnx.Available() {
		return " (not compiled in, rebuild with -tags onnxruntime)"
	}
	return ""
}

func artifactStatus(path string) string {
	if xfs.IsFile(path) {
		return "ok"
	}
	return "missing"
}
