// Package llm provides a single completion interface over the text-generation
// services used to infer CSS selectors.
package llm

import (
	"context"
	"errors"
	"time"
)

// ErrMissingAPIKey is returned by provider constructors when no credential is
// configured.
var ErrMissingAPIKey = errors.New("api key not configured")

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("provider returned no content")

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role
	Content string
}

// Request represents a completion request.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// Model overrides the provider's configured model when set.
	Model string
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the result of a completion.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string
	Duration     time.Duration
}

// Provider is implemented by every text-generation backend.
type Provider interface {
	// Execute sends a completion request and returns the response.
	Execute(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier ("openai", "anthropic").
	Name() string

	// Model returns the configured default model.
	Model() string
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

const defaultMaxTokens = 512

func modelFor(req Request, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	return fallback
}

func maxTokensFor(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}
