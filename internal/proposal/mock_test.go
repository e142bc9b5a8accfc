package proposal

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/doernaz/brandlift/internal/discovery"
	"github.com/doernaz/brandlift/pkg/anthropic"
)

type fakeAnthropic struct {
	reply string
	err   error
	got   anthropic.MessageRequest
}

func (f *fakeAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.reply}},
	}, nil
}

type fakeModels struct {
	reply  string
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(f.reply, genai.RoleModel),
		}},
	}, nil
}

func testLead() *discovery.VerifiedLead {
	rating := 4.8
	reviews := 212
	return &discovery.VerifiedLead{
		Candidate: discovery.Candidate{
			PlaceID:         "place-1",
			DisplayName:     "Desert Bloom Dental",
			Rating:          &rating,
			UserRatingCount: &reviews,
		},
		LeadID:       "3b9d6c1e-0000-5000-8000-000000000001",
		RunID:        "run-1",
		Keyword:      "Cosmetic Dentistry",
		Location:     "Phoenix, AZ",
		ContactEmail: "info@desertbloomdental.com",
		DiscoveredAt: time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC),
	}
}

const goodReply = `{"headline":"Smiles Worth Sharing","tagline":"Phoenix cosmetic dentistry, reimagined online","summary":"A modern site for a five-star practice."}`
