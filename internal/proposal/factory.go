package proposal

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/doernaz/brandlift/internal/config"
	"github.com/doernaz/brandlift/pkg/anthropic"
)

// New builds the Generator selected by cfg.Proposal.Provider.
func New(ctx context.Context, cfg *config.Config) (Generator, error) {
	switch cfg.Proposal.Provider {
	case "anthropic":
		client := anthropic.NewClient(cfg.Anthropic.Key)
		return NewAnthropic(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens), nil
	case "gemini":
		g, err := NewGemini(ctx, cfg.Gemini.Key, cfg.Gemini.Model, cfg.Gemini.BaseURL)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, eris.Errorf("proposal: unknown provider %q", cfg.Proposal.Provider)
	}
}
