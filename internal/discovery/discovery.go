// Package discovery runs the pivot-driven lead scan: it walks a
// location x keyword matrix, searches places for each pivot, filters and
// enriches the candidates, deduplicates them across the run and persists
// every pivot's new leads before moving on.
package discovery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/doernaz/brandlift/internal/normalize"
	"github.com/doernaz/brandlift/internal/waterfall"
)

// StatusOperational is the business status a candidate needs to be kept.
const StatusOperational = "OPERATIONAL"

// Run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
)

// Termination reasons.
const (
	ReasonTargetReached   = "target_reached"
	ReasonPivotsExhausted = "pivots_exhausted"
	ReasonMaxIterations   = "max_iterations"
	ReasonCanceled        = "canceled"
	ReasonSinkError       = "sink_error"
)

// Lead status values as written by sinks.
const (
	LeadVerified = "verified"
	LeadGuessed  = "guessed"
)

// leadNamespace seeds the name-based UUIDs used as lead ids.
var leadNamespace = uuid.MustParse("6f1c8a52-3d0e-5b7a-9c41-2e8d7f0b6a13")

// Candidate is a business returned by place search. Rating and
// UserRatingCount are nil when the place has no reviews.
type Candidate struct {
	PlaceID          string          `json:"place_id,omitempty"`
	DisplayName      string          `json:"display_name"`
	FormattedAddress string          `json:"formatted_address,omitempty"`
	WebsiteURI       string          `json:"website_uri,omitempty"`
	Rating           *float64        `json:"rating,omitempty"`
	UserRatingCount  *int            `json:"user_rating_count,omitempty"`
	BusinessStatus   string          `json:"business_status,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}

func (c Candidate) rating() float64 {
	if c.Rating == nil {
		return 0
	}
	return *c.Rating
}

func (c Candidate) reviews() int {
	if c.UserRatingCount == nil {
		return 0
	}
	return *c.UserRatingCount
}

// VerifiedLead is a Candidate with a resolved, source-tagged contact email.
type VerifiedLead struct {
	Candidate

	LeadID           string            `json:"lead_id"`
	RunID            string            `json:"run_id"`
	Keyword          string            `json:"keyword"`
	Location         string            `json:"location"`
	Domain           string            `json:"domain,omitempty"`
	ContactEmail     string            `json:"contact_email"`
	EnrichmentSource string            `json:"enrichment_source"`
	Confidence       float64           `json:"confidence"`
	Socials          map[string]string `json:"socials,omitempty"`
	DiscoveredAt     time.Time         `json:"discovered_at"`
}

// NewVerifiedLead builds a lead from a candidate and its waterfall result.
// It refuses results without an email or source.
func NewVerifiedLead(c Candidate, p Pivot, runID string, res *waterfall.Result, at time.Time) (*VerifiedLead, error) {
	if res == nil || normalize.Email(res.Email) == "" {
		return nil, eris.Errorf("discovery: no email resolved for %q", c.DisplayName)
	}
	if res.Source == "" {
		return nil, eris.Errorf("discovery: untagged email for %q", c.DisplayName)
	}
	lead := &VerifiedLead{
		Candidate:        c,
		RunID:            runID,
		Keyword:          p.Keyword,
		Location:         p.Location,
		Domain:           res.Domain,
		ContactEmail:     normalize.Email(res.Email),
		EnrichmentSource: res.Source,
		Confidence:       res.Confidence,
		Socials:          res.Socials,
		DiscoveredAt:     at.UTC(),
	}
	lead.LeadID = LeadID(DedupKey(lead))
	return lead, nil
}

// Status is "verified" for provider-found emails and "guessed" otherwise.
func (l *VerifiedLead) Status() string {
	if l.EnrichmentSource == waterfall.SourceHunter {
		return LeadVerified
	}
	return LeadGuessed
}

// DedupKey is the lead's identity across pivots: the normalized email, or the
// normalized display name when no email is present.
func DedupKey(l *VerifiedLead) string {
	if e := normalize.Email(l.ContactEmail); e != "" {
		return e
	}
	return NormalizeName(l.DisplayName)
}

// NormalizeName folds a display name for name-based comparisons.
func NormalizeName(name string) string {
	return normalize.Name(name)
}

// LeadID derives the stable sink key for a dedup key.
func LeadID(key string) string {
	return uuid.NewSHA1(leadNamespace, []byte(key)).String()
}

// RunRequest is the input to Controller.Run.
type RunRequest struct {
	RunID         string   `json:"run_id,omitempty"`
	Locations     []string `json:"locations"`
	Keywords      []string `json:"keywords"`
	TargetCount   int      `json:"target_count"`
	MaxIterations int      `json:"max_iterations"`
	Profile       string   `json:"profile,omitempty"`
	MinSignal     float64  `json:"min_signal,omitempty"`
}

// RunState holds the counters of one run. It is owned by the controller and
// passed to progress callbacks by value.
type RunState struct {
	RunID         string `json:"run_id"`
	Target        int    `json:"target"`
	TotalVerified int    `json:"total_verified"`
	LoopCount     int    `json:"loop_count"`
	Current       Pivot  `json:"current"`
	Done          bool   `json:"done"`
}

// RunResult reports how a run ended.
type RunResult struct {
	RunID             string  `json:"run_id"`
	Status            string  `json:"status"`
	TotalVerified     int     `json:"total_verified"`
	Iterations        int     `json:"iterations"`
	TerminationReason string  `json:"termination_reason"`
	Visited           []Pivot `json:"visited"`
	Message           string  `json:"message"`
}

// Sink persists verified leads. Persist must upsert by LeadID so repeated
// calls with the same lead never create duplicates. A lead belongs to every
// run that persisted it, and ListByRunID returns it for each of them with
// RunID set to the run asked for.
type Sink interface {
	Ping(ctx context.Context) error
	Persist(ctx context.Context, leads []*VerifiedLead) error
	ListByRunID(ctx context.Context, runID string) ([]*VerifiedLead, error)
	Close() error
}
