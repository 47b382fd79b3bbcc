package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/pkg/llm"
)

// Error types returned by the client. Check with errors.Is.
var (
	// ErrOracleUnavailable indicates the provider for a model could not be initialised.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrOracleCallFailed indicates the provider request errored or answered with nothing.
	ErrOracleCallFailed = errors.New("oracle call failed")
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// DefaultTemperature keeps selector answers stable across calls.
const DefaultTemperature = 0.2

// ProviderFactory creates a provider by registry name.
type ProviderFactory func(name string, cfg llm.ProviderConfig) (llm.Provider, error)

// Config holds oracle client configuration.
type Config struct {
	// FallbackModel is tried once when the requested model fails.
	FallbackModel string
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	// APIKeys maps provider name to credential. Missing entries are read
	// from the provider's environment variable.
	APIKeys map[string]string
	// BaseURLs maps provider name to an API endpoint override.
	BaseURLs map[string]string
	// NewProvider defaults to llm.NewProvider.
	NewProvider ProviderFactory
	// Observer, when set, sees every provider call.
	Observer llm.Observer
}

// Client infers selectors through whichever provider serves the requested model.
type Client struct {
	cfg Config

	mu        sync.Mutex
	providers map[string]llm.Provider
	initErrs  map[string]error
}

// New creates an oracle client. Providers are created lazily on first use.
func New(cfg Config) *Client {
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.NewProvider == nil {
		cfg.NewProvider = llm.NewProvider
	}
	return &Client{
		cfg:       cfg,
		providers: make(map[string]llm.Provider),
		initErrs:  make(map[string]error),
	}
}

// InferSelectors asks the oracle for selectors of every field in Fields.
// When the requested model fails it retries once with the fallback model.
func (c *Client) InferSelectors(ctx context.Context, html, model string) (Selectors, error) {
	if model == "" {
		model = c.cfg.FallbackModel
	}
	prompt := BuildPrompt(Truncate(html, MaxHTMLBytes))

	text, err := c.generate(ctx, prompt, model, false)
	if err != nil {
		if ctx.Err() != nil || model == c.cfg.FallbackModel {
			return nil, err
		}
		logger.Warn("oracle failed, falling back",
			"model", model,
			"fallback", c.cfg.FallbackModel,
			"error", err)

		text, err = c.generate(ctx, prompt, c.cfg.FallbackModel, true)
		if err != nil {
			if errors.Is(err, ErrOracleCallFailed) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: fallback exhausted: %w", ErrOracleCallFailed, err)
		}
	}

	selectors := ParseSelectors(text)
	logger.Debug("selectors inferred", "model", model, "count", len(selectors))
	return selectors, nil
}

// Generate sends prompt to the provider serving model and returns its text.
func (c *Client) Generate(ctx context.Context, prompt, model string) (string, error) {
	return c.generate(ctx, prompt, model, false)
}

func (c *Client) generate(ctx context.Context, prompt, model string, fallback bool) (string, error) {
	p, err := c.provider(model)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := p.Execute(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Model:       model,
	})

	event := llm.CallEvent{
		Provider: p.Name(),
		Model:    model,
		Fallback: fallback,
		Err:      err,
		Duration: time.Since(start),
	}
	if resp != nil {
		event.Usage = resp.Usage
	}
	if c.cfg.Observer != nil {
		c.cfg.Observer.OnCall(ctx, event)
	}

	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrOracleCallFailed, model, err)
	}

	logger.Debug("oracle response",
		"provider", p.Name(),
		"model", model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", event.Duration)
	return resp.Content, nil
}

// provider returns the cached provider for model, creating it on first use.
// Initialisation failures are cached per provider.
func (c *Client) provider(model string) (llm.Provider, error) {
	name, ok := llm.ProviderForModel(model)
	if !ok {
		return nil, fmt.Errorf("%w: no provider serves model %q", ErrOracleUnavailable, model)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.providers[name]; ok {
		return p, nil
	}
	if err, ok := c.initErrs[name]; ok {
		return nil, err
	}

	apiKey := c.cfg.APIKeys[name]
	if apiKey == "" {
		apiKey = llm.APIKeyFromEnv(name)
	}
	p, err := c.cfg.NewProvider(name, llm.ProviderConfig{
		APIKey:  apiKey,
		BaseURL: c.cfg.BaseURLs[name],
		Model:   model,
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrOracleUnavailable, name, err)
		c.initErrs[name] = err
		logger.Warn("oracle provider unavailable", "provider", name, "error", err)
		return nil, err
	}

	c.providers[name] = p
	return p, nil
}
