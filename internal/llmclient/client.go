package llmclient

import (
	"context"
	"encoding/json"
)

// LLMClient defines the interface for JSON-producing model providers.
// Cross-cutting concerns (retries, rate limiting, logging, hooks) are
// layered on via middleware in internal/llm. The embedding capability is
// provider-optional and consumed through the interface the retrieval
// package declares; GeminiClient satisfies it, GroqClient does not.
type LLMClient interface {
	Name() string
	Close() error
	CountTokens(text string) int
	TokenCapacity() int
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
}
