package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cipher241/Smart-Cities-Banorte/internal/config"
)

// ErrNoProvider is returned when no API key is configured.
var ErrNoProvider = errors.New("no generation provider configured")

// New builds the client described by cfg. The configured provider comes first
// and the other one, when it has a key, is used as a fallback. When RedisURL
// is set the result is wrapped in a response cache; an unreachable Redis is
// logged and skipped.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (Client, error) {
	var gemini, anthropic Client
	if cfg.GeminiAPIKey != "" {
		gemini = NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	if cfg.AnthropicAPIKey != "" {
		anthropic = NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}

	var chain Fallback
	switch cfg.LLMProvider {
	case "gemini", "":
		chain = appendClient(chain, gemini, anthropic)
	case "anthropic":
		chain = appendClient(chain, anthropic, gemini)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}

	var client Client
	switch len(chain) {
	case 0:
		return nil, ErrNoProvider
	case 1:
		client = chain[0]
	default:
		client = chain
	}

	if cfg.RedisURL == "" {
		return client, nil
	}
	cached, err := NewCached(ctx, client, cfg.RedisURL, cfg.CacheTTL, logger)
	if err != nil {
		logger.Warn("generation cache disabled", "error", err)
		return client, nil
	}
	return cached, nil
}

func appendClient(chain Fallback, clients ...Client) Fallback {
	for _, c := range clients {
		if c != nil {
			chain = append(chain, c)
		}
	}
	return chain
}
