package cmd

import (
	"fmt"

	"github.com/ziadkadry99/docchat/internal/config"
	"github.com/ziadkadry99/docchat/internal/embeddings"
	"github.com/ziadkadry99/docchat/internal/llm"
	"github.com/ziadkadry99/docchat/internal/store"
)

// loadConfig loads and validates the config, providing a friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `docchat init` to create a config file", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config,
// falling back to the chat provider when no embedding provider is set.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		_, model = config.DefaultModels(provider)
	}
	return embeddings.NewFromConfig(string(provider), model)
}

// createLLMProviderFromConfig creates an LLM provider based on config.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	return llm.NewProvider(string(cfg.Provider), cfg.Model)
}

// openStore opens the document store in the configured data directory with
// a query embedder attached.
func openStore(cfg *config.Config) (*store.Store, embeddings.Embedder, error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}
	st, err := store.Open(cfg.DataDir, embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return st, embedder, nil
}
