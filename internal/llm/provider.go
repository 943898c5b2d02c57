// Package llm adapts language model backends to the chat generation loop.
package llm

import (
	"context"
	"fmt"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/pkg/config"
)

// Request is one generation turn.
type Request struct {
	System   string
	Messages []models.Message
}

// Provider streams a completion. onDelta is called for every text fragment in
// order; returning an error from it aborts generation.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request, onDelta func(text string) error) error
}

// New builds the provider selected by LLM_PROVIDER.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	case "echo", "":
		return NewEcho(0), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
}
