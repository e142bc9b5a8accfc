package proposal

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/doernaz/brandlift/internal/discovery"
	"github.com/doernaz/brandlift/pkg/anthropic"
)

// AnthropicGenerator drafts proposals with Claude.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates an AnthropicGenerator. maxTokens <= 0 selects 1024.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *AnthropicGenerator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicGenerator{client: client, model: model, maxTokens: maxTokens}
}

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, lead *discovery.VerifiedLead) (*Proposal, error) {
	if lead == nil {
		return nil, eris.New("proposal: lead is required")
	}
	temp := 0.7
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: buildPrompt(lead)}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "proposal: anthropic generate for %s", lead.LeadID)
	}
	resp.Usage.LogCost(g.model, "proposal")

	c, err := parseCopy(resp.Text())
	if err != nil {
		return nil, err
	}
	return build(lead, c)
}
