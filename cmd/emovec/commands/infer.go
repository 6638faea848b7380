package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/emovec/internal/app"
	"github.com/ekisa-team/emovec/internal/audio"
	"github.com/ekisa-team/emovec/internal/config"
	"github.com/ekisa-team/emovec/internal/service"
)

var (
	inferJSON   bool
	inferSaveTo string
)

var inferCmd = &cobra.Command{
	Use:   "infer <file.wav>",
	Short: "Detect the emotion in a WAV file",
	Long: `Decode a PCM16 or float32 WAV file, resample it to the configured rate
and run it through the emotion pipeline once.

Examples:
  emovec infer clip.wav
  emovec infer clip.wav --json
  emovec infer clip-48k.wav --save-resampled heard.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runInfer,
}

func init() {
	inferCmd.Flags().BoolVar(&inferJSON, "json", false, "print the prediction as JSON")
	inferCmd.Flags().StringVar(&inferSaveTo, "save-resampled", "", "write the audio fed to the model as 16-bit WAV")
}

func runInfer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := setupLogger(cfg)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	clip, err := audio.Load(data, cfg.Audio.SampleRate)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	if inferSaveTo != "" {
		wav, err := audio.EncodeWAV(clip.Samples, clip.SampleRate)
		if err != nil {
			return err
		}
		if err := os.WriteFile(inferSaveTo, wav, 0o644); err != nil {
			return fmt.Errorf("write resampled audio: %w", err)
		}
	}

	a, err := app.Build(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	pred, err := a.Emotion.Detect(cmd.Context(), clip.Samples)
	if err != nil {
		return err
	}

	if inferJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(pred)
	}
	printPrediction(cmd, pred, clip.Duration())
	return nil
}

func printPrediction(cmd *cobra.Command, pred *service.Prediction, duration float64) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Duration: %.2fs\n", duration)
	fmt.Fprintf(out, "Dominant: %s\n\n", pred.Dominant)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tSCORE")
	for _, l := range pred.Labels {
		fmt.Fprintf(w, "%s\t%.4f\n", l.Label, l.Score)
	}
	w.Flush()
}
