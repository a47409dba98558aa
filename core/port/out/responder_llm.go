package out

import "context"

// TextCompleter is the outbound port to a language generation provider.
// Backends are interchangeable; callers stay provider-agnostic.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)

	// Model identifies the backing model for response provenance.
	Model() string
}
