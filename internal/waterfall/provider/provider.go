// Package provider implements the waterfall stage collaborators over the
// Jina Search and Hunter.io clients.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/doernaz/brandlift/internal/normalize"
	"github.com/doernaz/brandlift/internal/resilience"
	"github.com/doernaz/brandlift/internal/waterfall"
	"github.com/doernaz/brandlift/pkg/hunter"
	"github.com/doernaz/brandlift/pkg/jina"
)

// SocialNetworks maps the site filter used in social searches to the key
// stored on a lead.
var SocialNetworks = map[string]string{
	"facebook.com":  "facebook",
	"instagram.com": "instagram",
	"linkedin.com":  "linkedin",
}

// WebsiteSearch finds a business's own website via Jina Search.
type WebsiteSearch struct {
	client    jina.Client
	blocklist []string
	retry     resilience.RetryConfig
}

// NewWebsiteSearch creates a WebsiteSearch. Results on blocklisted hosts
// (directories, social sites) are skipped.
func NewWebsiteSearch(client jina.Client, blocklist []string, retry resilience.RetryConfig) *WebsiteSearch {
	retry.OnRetry = resilience.RetryLogger("jina", "website_search")
	return &WebsiteSearch{client: client, blocklist: blocklist, retry: retry}
}

// FindWebsite returns the first non-directory result URL, or "".
func (s *WebsiteSearch) FindWebsite(ctx context.Context, name, address string) (string, error) {
	if s == nil || s.client == nil {
		return "", waterfall.ErrUnconfigured
	}
	query := strings.TrimSpace(fmt.Sprintf("%s %s official website", name, address))

	resp, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*jina.SearchResponse, error) {
		return s.client.Search(ctx, query)
	})
	if err != nil {
		return "", eris.Wrap(err, "provider: website search")
	}

	for _, r := range resp.Data {
		if normalize.OwnDomain(r.URL, s.blocklist) != "" {
			return r.URL, nil
		}
	}
	return "", nil
}

// SocialSearch finds social profile URLs via Jina Search site filters.
type SocialSearch struct {
	client jina.Client
	retry  resilience.RetryConfig
}

// NewSocialSearch creates a SocialSearch.
func NewSocialSearch(client jina.Client, retry resilience.RetryConfig) *SocialSearch {
	retry.OnRetry = resilience.RetryLogger("jina", "social_search")
	return &SocialSearch{client: client, retry: retry}
}

// FindSocials returns the first matching profile URL per network.
func (s *SocialSearch) FindSocials(ctx context.Context, name, location string) (map[string]string, error) {
	if s == nil || s.client == nil {
		return nil, waterfall.ErrUnconfigured
	}
	opts := make([]jina.SearchOption, 0, len(SocialNetworks))
	for site := range SocialNetworks {
		opts = append(opts, jina.WithSiteFilter(site))
	}
	query := strings.TrimSpace(name + " " + location)

	resp, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*jina.SearchResponse, error) {
		return s.client.Search(ctx, query, opts...)
	})
	if err != nil {
		return nil, eris.Wrap(err, "provider: social search")
	}

	found := make(map[string]string)
	for _, r := range resp.Data {
		host := normalize.Domain(r.URL)
		for site, network := range SocialNetworks {
			if _, ok := found[network]; ok {
				continue
			}
			if host == site || strings.HasSuffix(host, "."+site) {
				found[network] = r.URL
			}
		}
	}
	return found, nil
}

// HunterEmails looks up domain emails on Hunter.io behind a rate limiter and
// a circuit breaker.
type HunterEmails struct {
	client  hunter.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// NewHunterEmails creates a HunterEmails. rps <= 0 disables rate limiting.
func NewHunterEmails(client hunter.Client, rps float64, breaker *resilience.Breaker, retry resilience.RetryConfig) *HunterEmails {
	h := &HunterEmails{client: client, breaker: breaker, retry: retry}
	if rps > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	if h.breaker == nil {
		h.breaker = resilience.NewBreaker(0, 0)
	}
	h.retry.OnRetry = resilience.RetryLogger("hunter", "domain_search")
	return h
}

// FindEmail returns the highest-confidence address for domain.
func (h *HunterEmails) FindEmail(ctx context.Context, domain string) (*waterfall.Email, error) {
	if h == nil || h.client == nil {
		return nil, waterfall.ErrUnconfigured
	}
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "provider: hunter rate limit")
		}
	}

	resp, err := resilience.Guard(ctx, h.breaker, func(ctx context.Context) (*hunter.DomainSearchResponse, error) {
		return resilience.DoVal(ctx, h.retry, func(ctx context.Context) (*hunter.DomainSearchResponse, error) {
			return h.client.DomainSearch(ctx, domain)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "provider: hunter domain search %s", domain)
	}

	best, ok := resp.Data.Best()
	if !ok {
		return nil, nil
	}
	return &waterfall.Email{
		Address:    best.Value,
		Confidence: float64(best.Confidence) / 100,
		FirstName:  best.FirstName,
	}, nil
}
