package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level docchat configuration, corresponding to .docchat.yml.
type Config struct {
	Port              int          `yaml:"port" koanf:"port"`
	DataDir           string       `yaml:"data_dir" koanf:"data_dir"`
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`

	Chunking  ChunkingConfig  `yaml:"chunking" koanf:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`

	// RequestTimeoutSec bounds each extraction and model call.
	RequestTimeoutSec int  `yaml:"request_timeout_sec" koanf:"request_timeout_sec"`
	MaxUploadBytes    int64 `yaml:"max_upload_bytes" koanf:"max_upload_bytes"`
	EmbedWorkers      int  `yaml:"embed_workers" koanf:"embed_workers"`
	AllowAllOrigins   bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// ChunkingConfig controls how extracted text is partitioned.
type ChunkingConfig struct {
	TargetTokens  int `yaml:"target_tokens" koanf:"target_tokens"`
	OverlapTokens int `yaml:"overlap_tokens" koanf:"overlap_tokens"`
	MinTokens     int `yaml:"min_tokens" koanf:"min_tokens"`
}

// RetrievalConfig controls similarity search and confidence banding.
type RetrievalConfig struct {
	TopK       int     `yaml:"top_k" koanf:"top_k"`
	MinScore   float64 `yaml:"min_score" koanf:"min_score"`
	HighScore  float64 `yaml:"high_score" koanf:"high_score"`
	MediumScore float64 `yaml:"medium_score" koanf:"medium_score"`
}
