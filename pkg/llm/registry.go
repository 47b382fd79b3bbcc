package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ProviderFactory creates providers from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

var registry = map[string]ProviderFactory{}

// providerEnvKeys maps provider names to their API key environment variables.
var providerEnvKeys = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// modelPrefixes routes a model identifier to the provider serving it.
var modelPrefixes = []struct {
	prefix   string
	provider string
}{
	{"gpt-", "openai"},
	{"o1", "openai"},
	{"o3", "openai"},
	{"claude-", "anthropic"},
}

func init() {
	RegisterProvider("openai", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg)
	})
	RegisterProvider("anthropic", func(cfg ProviderConfig) (Provider, error) {
		return NewAnthropicProvider(cfg)
	})
}

// RegisterProvider adds a provider factory under name.
func RegisterProvider(name string, factory ProviderFactory) {
	registry[name] = factory
}

// NewProvider creates a provider by name.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %s)", name, strings.Join(AvailableProviders(), ", "))
	}
	return factory(cfg)
}

// AvailableProviders returns the registered provider names, sorted.
func AvailableProviders() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderForModel returns the name of the provider serving model.
func ProviderForModel(model string) (string, bool) {
	m := strings.ToLower(model)
	for _, p := range modelPrefixes {
		if strings.HasPrefix(m, p.prefix) {
			return p.provider, true
		}
	}
	return "", false
}

// APIKeyFromEnv returns the credential for provider from its environment variable.
func APIKeyFromEnv(provider string) string {
	if envKey, ok := providerEnvKeys[provider]; ok {
		return os.Getenv(envKey)
	}
	return ""
}
