package embeddings

import (
	"fmt"
	"os"
)

// modelDimensions maps known embedding models to their vector size.
// Unlisted models fall back to the provider's usual size.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
}

// NewFromConfig creates an Embedder for the given provider and model.
// Supported providers: "openai", "ollama".
func NewFromConfig(provider, model string) (Embedder, error) {
	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAI(apiKey, model), nil

	case "ollama":
		return NewOllama(model, os.Getenv("OLLAMA_HOST")), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
