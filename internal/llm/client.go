// Package llm provides the language model gateway.
package llm

import "context"

// Client is the interface the agent uses to talk to a language model.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// A non-nil error is always a *GatewayError.
	Chat(ctx context.Context, messages []Message) (*Response, error)
}
