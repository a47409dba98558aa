package llm

import (
	"context"
	"fmt"
	"strings"

	"responder_server/core/port/out"
)

// FactoryConfig selects and configures the completion backend.
type FactoryConfig struct {
	Model        string
	OpenAIAPIKey string
	GeminiAPIKey string
}

// NewCompleter picks the provider from the model name. "gpt-*" and "o*"
// models route to OpenAI, "gemini-*" to Gemini.
func NewCompleter(ctx context.Context, cfg FactoryConfig) (out.TextCompleter, error) {
	switch {
	case strings.HasPrefix(cfg.Model, "gemini"):
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.Model)
	case cfg.Model == "" || strings.HasPrefix(cfg.Model, "gpt") || strings.HasPrefix(cfg.Model, "o"):
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai API key is required for model %q", cfg.Model)
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported model %q", cfg.Model)
	}
}
