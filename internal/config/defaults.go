package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/ekisa-team/emovec/internal/envvar"
	"github.com/ekisa-team/emovec/internal/xfs"
)

// Defaults for optional settings.
const (
	DefaultProvider   = "onnxruntime"
	DefaultSampleRate = 16000
	DefaultHTTPAddr   = ":8080"
	DefaultGRPCAddr   = ":9090"
	DefaultLogLevel   = "info"
	DefaultMaskType   = "auto"

	// ListenerOff disables a server listener.
	ListenerOff = "off"
)

// DefaultConfigPath returns the default path for the emovec config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "emovec", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "emovec")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "emovec")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "emovec")
		}
		return filepath.Join(home, ".config", "emovec")
	}
}

// DefaultModelsPath returns the default path for the emovec models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "emovec", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "emovec", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "emovec", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "emovec", "models")
		}
		return filepath.Join(home, ".cache", "emovec", "models")
	}
}

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	if c.Models.ModelsDir == "" {
		c.Models.ModelsDir = DefaultModelsPath()
	}
	if c.Pipeline.MaskType == "" {
		c.Pipeline.MaskType = DefaultMaskType
	}
	if c.Pipeline.MinSamples == 0 {
		c.Pipeline.MinSamples = 1
	}
	if c.Engine.Provider == "" {
		c.Engine.Provider = DefaultProvider
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = DefaultSampleRate
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = DefaultGRPCAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join("logs", "emovec.log")
	}
}

// ApplyEnv overrides fields from EMOVEC_* environment variables.
func (c *Config) ApplyEnv() {
	if p := os.Getenv(envvar.EmovecModelsPath); p != "" {
		c.Models.ModelsDir = p
	}
	if p := os.Getenv(envvar.EmovecEmbeddingModel); p != "" {
		c.Models.Embedding = p
	}
	if p, ok := os.LookupEnv(envvar.EmovecClassifierModel); ok {
		c.Models.Classifier = p
	}
	if l := os.Getenv(envvar.EmovecLogLevel); l != "" {
		c.Logging.Level = l
	}
	if e := os.Getenv(envvar.EmovecEngine); e != "" {
		c.Engine.Provider = e
	}
}

func resolveModelPath(dir, path string) string {
	return xfs.Resolve(dir, path)
}
