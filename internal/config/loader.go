package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/ekisa-team/emovec/internal/tensor"
)

const schemaURL = "emovec.v1.schema.json"

//go:embed emovec.v1.schema.json
var schemaJSON []byte

// Schema returns the embedded JSON schema.
func Schema() []byte {
	return schemaJSON
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaURL)
}

// Load loads and validates the configuration file at path, then applies
// environment overrides and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse validates YAML data against the schema and decodes it.
func Parse(data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	config.ApplyEnv()
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks cross-field rules the schema cannot express, including
// values that came from the environment.
func (c *Config) Validate() error {
	if c.Models.Embedding == "" {
		return fmt.Errorf("config: models.embedding is required")
	}
	if c.Pipeline.MaskType != DefaultMaskType {
		d, err := tensor.ParseDType(c.Pipeline.MaskType)
		if err != nil {
			return fmt.Errorf("config: pipeline.mask_type: %w", err)
		}
		if d != tensor.Bool && d != tensor.Uint8 {
			return fmt.Errorf("config: pipeline.mask_type must be auto, bool or uint8, got %s", d)
		}
	}
	if !slices.Contains([]string{"onnxruntime", "stub"}, c.Engine.Provider) {
		return fmt.Errorf("config: unknown engine provider %q", c.Engine.Provider)
	}
	if c.Pipeline.Classes > 0 && len(c.Pipeline.Labels) > 0 && len(c.Pipeline.Labels) != c.Pipeline.Classes {
		return fmt.Errorf("config: %d labels for %d classes", len(c.Pipeline.Labels), c.Pipeline.Classes)
	}
	return nil
}

// MaskDType returns the configured mask element type, or tensor.Invalid for
// auto-detection.
func (c *Config) MaskDType() tensor.DType {
	if c.Pipeline.MaskType == DefaultMaskType {
		return tensor.Invalid
	}
	d, _ := tensor.ParseDType(c.Pipeline.MaskType)
	return d
}
