package config

// providerDefaults maps each provider to its default chat and embedding models.
var providerDefaults = map[ProviderType]struct {
	Model          string
	EmbeddingModel string
}{
	ProviderOpenAI: {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
	ProviderOllama: {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
}

// DefaultModels returns the default chat and embedding model for a provider.
func DefaultModels(p ProviderType) (model, embeddingModel string) {
	d, ok := providerDefaults[p]
	if !ok {
		d = providerDefaults[ProviderOpenAI]
	}
	return d.Model, d.EmbeddingModel
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:              8080,
		DataDir:           ".docchat",
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		Chunking: ChunkingConfig{
			TargetTokens:  400,
			OverlapTokens: 60,
			MinTokens:     20,
		},
		Retrieval: RetrievalConfig{
			TopK:        5,
			MinScore:    0.2,
			HighScore:   0.8,
			MediumScore: 0.5,
		},
		RequestTimeoutSec: 60,
		MaxUploadBytes:    32 << 20,
		EmbedWorkers:      4,
	}
}
