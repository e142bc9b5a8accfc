package discovery

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/doernaz/brandlift/internal/resilience"
	"github.com/doernaz/brandlift/pkg/google"
)

// Source returns raw candidates for a keyword in a location.
type Source interface {
	Search(ctx context.Context, keyword, location string) ([]Candidate, error)
}

// PlacesSource searches Google Places Text Search.
type PlacesSource struct {
	client   google.Client
	limiter  *rate.Limiter
	maxPages int
	retry    resilience.RetryConfig
}

// NewPlacesSource creates a PlacesSource. rps <= 0 selects 10 requests per
// second; maxPages <= 0 fetches a single page per search.
func NewPlacesSource(client google.Client, rps float64, maxPages int, retry resilience.RetryConfig) *PlacesSource {
	if rps <= 0 {
		rps = 10
	}
	if maxPages <= 0 {
		maxPages = 1
	}
	retry.OnRetry = resilience.RetryLogger("google_places", "text_search")
	return &PlacesSource{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		maxPages: maxPages,
		retry:    retry,
	}
}

// Search runs "<keyword> in <location>" and follows page tokens up to
// maxPages. A failure on the first page is returned; a failure on a later
// page keeps the pages already fetched.
func (s *PlacesSource) Search(ctx context.Context, keyword, location string) ([]Candidate, error) {
	query := Pivot{Location: location, Keyword: keyword}.Query()
	log := zap.L().With(zap.String("query", query))

	var (
		out       []Candidate
		pageToken string
	)
	for page := 0; page < s.maxPages; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return out, eris.Wrap(err, "discovery: places rate limit wait")
		}

		req := google.TextSearchRequest{TextQuery: query, PageToken: pageToken}
		resp, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*google.TextSearchResponse, error) {
			return s.client.TextSearch(ctx, req)
		})
		if err != nil {
			if page == 0 {
				return nil, eris.Wrap(err, "discovery: places text search")
			}
			log.Warn("places pagination failed, keeping earlier pages", zap.Int("page", page), zap.Error(err))
			break
		}

		for _, p := range resp.Places {
			out = append(out, candidateFromPlace(p))
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return out, nil
}

func candidateFromPlace(p google.Place) Candidate {
	return Candidate{
		PlaceID:          p.ID,
		DisplayName:      p.DisplayName.Text,
		FormattedAddress: p.FormattedAddress,
		WebsiteURI:       p.WebsiteURI,
		Rating:           p.Rating,
		UserRatingCount:  p.UserRatingCount,
		BusinessStatus:   p.BusinessStatus,
		Phone:            p.NationalPhoneNumber,
		Raw:              p.Raw,
	}
}
