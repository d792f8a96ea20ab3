package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sqlchat/sqlchat/internal/config"
)

// Temperature is the sampling temperature sent with every completion.
const Temperature = 0

// Completer sends one fully rendered prompt and returns the raw completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Describer is implemented by completers that can report which provider and
// model serve them.
type Describer interface {
	Provider() string
	Model() string
}

// Describe reports the provider and model behind c, or "unknown" for
// completers that do not implement Describer.
func Describe(c Completer) (provider, model string) {
	if described, ok := c.(Describer); ok {
		return described.Provider(), described.Model()
	}
	return "unknown", "unknown"
}

// New builds the completer selected by cfg.Provider.
func New(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAICompatible, "":
		return NewOpenAICompatible(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	case config.ProviderLangChain:
		return NewLangChainOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case config.ProviderEinoOpenAI:
		return NewEinoOpenAI(ctx, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	case config.ProviderClaude:
		return NewEinoClaude(ctx, cfg.BaseURL, cfg.APIKey, cfg.Model)
	case config.ProviderGemini:
		return NewEinoGemini(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}
}

// versionedBaseURL returns base with a trailing /v1 segment, which SDK clients
// expect while the raw HTTP client appends it per request.
func versionedBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" || strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func requireKey(apiKey string) (string, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return "", fmt.Errorf("api key is required")
	}
	return key, nil
}

func requireModel(model string) (string, error) {
	name := strings.TrimSpace(model)
	if name == "" {
		return "", fmt.Errorf("model is required")
	}
	return name, nil
}

func defaultTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 60 * time.Second
	}
	return timeout
}
