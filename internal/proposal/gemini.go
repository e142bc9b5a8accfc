package proposal

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/doernaz/brandlift/internal/discovery"
)

// contentGenerator is satisfied by *genai.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator drafts proposals with Gemini structured output.
type GeminiGenerator struct {
	models contentGenerator
	model  string
}

var copySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"headline": {Type: genai.TypeString},
		"tagline":  {Type: genai.TypeString},
		"summary":  {Type: genai.TypeString},
	},
	Required: []string{"headline", "tagline", "summary"},
}

// NewGemini creates a GeminiGenerator. baseURL overrides the API endpoint
// when set.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, eris.New("proposal: gemini api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, eris.New("proposal: gemini model is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(baseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(baseURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "proposal: gemini client")
	}
	return &GeminiGenerator{models: client.Models, model: strings.TrimSpace(model)}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, lead *discovery.VerifiedLead) (*Proposal, error) {
	if lead == nil {
		return nil, eris.New("proposal: lead is required")
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(buildPrompt(lead)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		CandidateCount:    1,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    copySchema,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "proposal: gemini generate for %s", lead.LeadID)
	}
	if resp == nil {
		return nil, eris.New("proposal: empty gemini response")
	}

	c, err := parseCopy(resp.Text())
	if err != nil {
		return nil, err
	}
	return build(lead, c)
}
