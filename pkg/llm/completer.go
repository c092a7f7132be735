package llm

import "context"

// CompletionRequest holds the inputs for a single text completion call.
type CompletionRequest struct {
	// Messages is the conversation to complete, oldest first.
	Messages []Message

	// Temperature controls sampling randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps the generated output length. Zero means provider default.
	MaxTokens int
}

// Completer generates text from a message list. Implementations wrap a
// remote model API; callers treat any failure as recoverable and fall back
// to deterministic behavior.
type Completer interface {
	// Complete returns the generated text for the request.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Close releases any resources held by the completer.
	Close() error
}
