package llm

import "context"

// Provider abstracts a chat-completion service.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Stream sends a completion request and invokes fn for each generated
	// token as it arrives. It returns the accumulated response when the
	// model finishes. If the stream fails partway, the returned response
	// carries the tokens received so far alongside the error.
	Stream(ctx context.Context, req CompletionRequest, fn TokenFunc) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
