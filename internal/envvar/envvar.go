package envvar

const (
	// EmovecEnv is the environment variable used to determine the environment
	EmovecEnv = "EMOVEC_ENV"

	// EmovecModelsPath is the environment variable used to override the models directory
	EmovecModelsPath = "EMOVEC_MODELS_PATH"

	// EmovecEmbeddingModel is the environment variable used to override the embedding model path
	EmovecEmbeddingModel = "EMOVEC_EMBEDDING_MODEL"

	// EmovecClassifierModel is the environment variable used to override the classifier model path
	EmovecClassifierModel = "EMOVEC_CLASSIFIER_MODEL"

	// EmovecLogLevel is the environment variable used to override the log level
	EmovecLogLevel = "EMOVEC_LOG_LEVEL"

	// EmovecEngine is the environment variable used to override the inference engine
	EmovecEngine = "EMOVEC_ENGINE"
)
