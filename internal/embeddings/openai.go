package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openaiBatchSize caps how many texts go into a single embeddings call.
// Ingestion hands over all chunks of a document at once, which can exceed
// what one request accepts.
const openaiBatchSize = 100

// openaiEmbedder embeds chunk and query text through the OpenAI
// embeddings API.
type openaiEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAI creates an OpenAI-backed embedder for the given model.
func NewOpenAI(apiKey, model string) Embedder {
	dims, ok := modelDimensions[model]
	if !ok {
		dims = 1536
	}
	return &openaiEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dims:   dims,
	}
}

func (e *openaiEmbedder) Name() string { return "openai/" + e.model }

func (e *openaiEmbedder) Dimensions() int { return e.dims }

func (e *openaiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openaiBatchSize {
		end := min(start+openaiBatchSize, len(texts))
		batch := texts[start:end]

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("embedding %d texts with %s: %w", len(batch), e.model, err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Data), len(batch))
		}
		for _, d := range resp.Data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}
