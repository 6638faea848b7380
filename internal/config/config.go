package config

// Config holds the main configuration for the application.
type Config struct {
	Version  string         `json:"version"            yaml:"version"`
	Models   ModelsConfig   `json:"models"             yaml:"models"`
	Pipeline PipelineConfig `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	Engine   EngineConfig   `json:"engine,omitempty"   yaml:"engine,omitempty"`
	Audio    AudioConfig    `json:"audio,omitempty"    yaml:"audio,omitempty"`
	Server   ServerConfig   `json:"server,omitempty"   yaml:"server,omitempty"`
	Logging  LoggingConfig  `json:"logging,omitempty"  yaml:"logging,omitempty"`
}

// ModelsConfig locates the two model artifacts. Relative paths resolve
// against ModelsDir.
type ModelsConfig struct {
	ModelsDir  string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
	Embedding  string `json:"embedding"            yaml:"embedding"`
	Classifier string `json:"classifier,omitempty" yaml:"classifier,omitempty"`
}

// PipelineConfig holds tensor names and inference limits.
type PipelineConfig struct {
	InputName  string   `json:"input_name,omitempty"  yaml:"input_name,omitempty"`
	OutputName string   `json:"output_name,omitempty" yaml:"output_name,omitempty"`
	MaskName   string   `json:"mask_name,omitempty"   yaml:"mask_name,omitempty"`
	MaskType   string   `json:"mask_type,omitempty"   yaml:"mask_type,omitempty"` // auto, bool or uint8
	MinSamples int      `json:"min_samples,omitempty" yaml:"min_samples,omitempty"`
	Classes    int      `json:"classes,omitempty"     yaml:"classes,omitempty"`
	Labels     []string `json:"labels,omitempty"      yaml:"labels,omitempty"`
}

// EngineConfig selects and tunes the inference engine.
type EngineConfig struct {
	Provider       string     `json:"provider,omitempty"         yaml:"provider,omitempty"`
	LibraryPath    string     `json:"library_path,omitempty"     yaml:"library_path,omitempty"`
	IntraOpThreads int        `json:"intra_op_threads,omitempty" yaml:"intra_op_threads,omitempty"`
	Stub           StubConfig `json:"stub,omitempty"             yaml:"stub,omitempty"`
}

// StubConfig shapes the deterministic development engine.
type StubConfig struct {
	Hop     int `json:"hop,omitempty"     yaml:"hop,omitempty"`
	Dim     int `json:"dim,omitempty"     yaml:"dim,omitempty"`
	Classes int `json:"classes,omitempty" yaml:"classes,omitempty"`
}

// AudioConfig describes the audio the embedding model expects.
type AudioConfig struct {
	SampleRate int `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// ServerConfig holds listener addresses. The address "off" disables a
// listener.
type ServerConfig struct {
	HTTPAddr string `json:"http_addr,omitempty" yaml:"http_addr,omitempty"`
	GRPCAddr string `json:"grpc_addr,omitempty" yaml:"grpc_addr,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"   yaml:"level,omitempty"`
	ToFile bool   `json:"to_file,omitempty" yaml:"to_file,omitempty"`
	File   string `json:"file,omitempty"    yaml:"file,omitempty"`
}

// EmbeddingPath returns the resolved embedding model path.
func (c *Config) EmbeddingPath() string {
	return resolveModelPath(c.Models.ModelsDir, c.Models.Embedding)
}

// ClassifierPath returns the resolved classifier model path, or empty for a
// single-stage pipeline.
func (c *Config) ClassifierPath() string {
	return resolveModelPath(c.Models.ModelsDir, c.Models.Classifier)
}
