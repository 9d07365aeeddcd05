// Client - thin convenience wrapper around a Provider.

package llm

import (
	"context"
	"time"
)

// Client wraps a Provider with prompt-level helpers and a per-call
// timeout. Oracle calls are blocking round-trips; the timeout is the
// caller-imposed latency bound.
type Client struct {
	provider Provider
	timeout  time.Duration
}

// NewClient creates a client over the given backend. A non-positive
// timeout disables the bound.
func NewClient(provider Provider, timeout time.Duration) *Client {
	return &Client{provider: provider, timeout: timeout}
}

// Generate submits a single prompt and returns the response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []ChatMessage{UserMessage(prompt)})
}

// GenerateJSON submits a single prompt with the JSON-object format hint.
// The returned text is still untrusted and must go through extraction.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	response, err := c.provider.ChatWithFormat(ctx, []ChatMessage{UserMessage(prompt)}, JSONObjectFormat())
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Chat submits a message history and returns the response text.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	response, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Provider returns the underlying backend.
func (c *Client) Provider() Provider {
	return c.provider
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}
