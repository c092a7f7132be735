package config

const (
	defaultProvider = "ollama"
	defaultTarget   = "http://localhost:11434"

	defaultLLMModel = "llama3.1"

	defaultSessionsPath = "sessions.db"

	defaultVectorProvider   = "sqlite"
	defaultVectorTarget     = "memory.db"
	defaultVectorCollection = "memory_chunks"

	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768

	defaultChunkThreshold = 8
	defaultRetrievalTopK  = 5
	defaultMinSimilarity  = 0.7
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			SessionsPath: defaultSessionsPath,
		},
		LLM: LLMConfig{
			Provider: defaultProvider,
			Target:   defaultTarget,
			Model:    defaultLLMModel,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Target:     defaultVectorTarget,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultProvider,
			Target:     defaultTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Memory: MemoryConfig{
			ChunkThreshold: defaultChunkThreshold,
			RetrievalTopK:  defaultRetrievalTopK,
			MinSimilarity:  defaultMinSimilarity,
		},
	}
}
