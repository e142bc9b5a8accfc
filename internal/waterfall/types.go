// Package waterfall resolves a contact email for a business by trying an
// ordered set of enrichment stages, always producing a result tagged with
// the stage that supplied it.
package waterfall

import (
	"context"

	"github.com/rotisserie/eris"
)

// Source tags identify which stage produced an email.
const (
	// SourceHunter is a provider-verified address.
	SourceHunter = "hunter"
	// SourceDomainGuess is contact@<domain> for a known domain.
	SourceDomainGuess = "domain_guess"
	// SourceFallbackGuess is info@<slug>.com when no domain is known.
	SourceFallbackGuess = "fallback_guess"
)

// Confidence assigned to guessed addresses.
const (
	DomainGuessConfidence   = 0.3
	FallbackGuessConfidence = 0.1
)

// Stage names recorded in attempts.
const (
	StageSearch   = "search"
	StageSocial   = "social"
	StageHunter   = "hunter"
	StageFallback = "fallback"
)

// Attempt outcomes.
const (
	OutcomeFound        = "found"
	OutcomeEmpty        = "empty"
	OutcomeUnconfigured = "unconfigured"
	OutcomeFailed       = "failed"
	OutcomeBreakerOpen  = "breaker_open"
)

// Domain sources.
const (
	DomainFromCandidate = "candidate"
	DomainFromSearch    = "search"
)

// ErrUnconfigured is returned by a stage collaborator that has no credentials.
var ErrUnconfigured = eris.New("waterfall: provider not configured")

// Input describes the business being enriched.
type Input struct {
	// Domain is the business's own domain, or "" when unknown.
	Domain       string
	BusinessName string
	Address      string
	Location     string
}

// Attempt records what one stage did.
type Attempt struct {
	Stage   string `json:"stage"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Tag joins stage and outcome, e.g. "search_unconfigured".
func (a Attempt) Tag() string {
	return a.Stage + "_" + a.Outcome
}

// Result is the outcome of a waterfall run. Email and Source are always set
// together.
type Result struct {
	Email        string            `json:"email"`
	Source       string            `json:"source"`
	Confidence   float64           `json:"confidence"`
	Domain       string            `json:"domain,omitempty"`
	DomainSource string            `json:"domain_source,omitempty"`
	Socials      map[string]string `json:"socials,omitempty"`
	Attempts     []Attempt         `json:"attempts"`
}

// Verified reports whether the email came from a provider rather than a guess.
func (r *Result) Verified() bool {
	return r != nil && r.Source == SourceHunter
}

// Email is an address returned by an EmailFinder. Confidence is 0-1.
type Email struct {
	Address    string
	Confidence float64
	FirstName  string
}

// WebsiteFinder discovers the official website of a business.
type WebsiteFinder interface {
	FindWebsite(ctx context.Context, name, address string) (string, error)
}

// SocialFinder discovers social profile URLs keyed by network.
type SocialFinder interface {
	FindSocials(ctx context.Context, name, location string) (map[string]string, error)
}

// EmailFinder looks up the best published email for a domain. A nil Email
// with a nil error means the provider knows no address.
type EmailFinder interface {
	FindEmail(ctx context.Context, domain string) (*Email, error)
}

// Enricher is the contract consumed by the discovery controller.
type Enricher interface {
	Enrich(ctx context.Context, in Input) *Result
}
