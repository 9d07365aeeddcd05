// Package llm provides the text-generation oracle abstraction.
//
// The router, flows, and orchestrator treat the oracle as a black-box
// request/response service. Each backend hides its API client, auth,
// and envelope behind the Provider interface; backends are
// interchangeable and selected by configuration.
package llm

import (
	"context"
)

// Provider is one oracle backend.
type Provider interface {
	// Name returns the backend name, for logging.
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// Chat sends a completion request over the full message history.
	Chat(ctx context.Context, messages []ChatMessage) (Response, error)

	// ChatWithFormat sends a completion request with a response format
	// hint. Backends without native format support ignore the hint.
	ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (Response, error)
}
