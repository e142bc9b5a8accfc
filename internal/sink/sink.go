// Package sink persists verified leads. Every backend upserts by lead id so
// re-persisting a lead never creates a second row.
package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/doernaz/brandlift/internal/config"
	"github.com/doernaz/brandlift/internal/discovery"
	"github.com/doernaz/brandlift/pkg/notion"
)

// Open creates the sink selected by cfg.Driver and prepares its schema.
func Open(ctx context.Context, cfg config.StoreConfig) (discovery.Sink, error) {
	switch cfg.Driver {
	case "csv":
		s, err := NewCSV(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	case "notion":
		return NewNotion(notion.NewClient(cfg.NotionToken), cfg.NotionDB), nil
	default:
		return nil, eris.Errorf("sink: unknown driver %q", cfg.Driver)
	}
}

// Row is the flat form of a lead shared by the tabular backends.
type Row struct {
	LeadID       string    `csv:"lead_id"`
	RunID        string    `csv:"run_id"`
	BusinessName string    `csv:"business_name"`
	Location     string    `csv:"location"`
	Email        string    `csv:"email"`
	Source       string    `csv:"source"`
	Confidence   float64   `csv:"confidence"`
	Status       string    `csv:"status"`
	DiscoveredAt time.Time `csv:"discovered_at"`
	Keyword      string    `csv:"keyword"`
	Domain       string    `csv:"domain,omitempty"`
	Website      string    `csv:"website,omitempty"`
	Phone        string    `csv:"phone,omitempty"`
	Address      string    `csv:"address,omitempty"`
	PlaceID      string    `csv:"place_id,omitempty"`
	Rating       *float64  `csv:"rating,omitempty"`
	Reviews      *int      `csv:"reviews,omitempty"`
	Socials      string    `csv:"socials,omitempty"`
}

// RowFromLead flattens a lead.
func RowFromLead(l *discovery.VerifiedLead) Row {
	r := Row{
		LeadID:       l.LeadID,
		RunID:        l.RunID,
		BusinessName: l.DisplayName,
		Location:     l.Location,
		Email:        l.ContactEmail,
		Source:       l.EnrichmentSource,
		Confidence:   l.Confidence,
		Status:       l.Status(),
		DiscoveredAt: l.DiscoveredAt.UTC(),
		Keyword:      l.Keyword,
		Domain:       l.Domain,
		Website:      l.WebsiteURI,
		Phone:        l.Phone,
		Address:      l.FormattedAddress,
		PlaceID:      l.PlaceID,
		Rating:       l.Rating,
		Reviews:      l.UserRatingCount,
	}
	if len(l.Socials) > 0 {
		if b, err := json.Marshal(l.Socials); err == nil {
			r.Socials = string(b)
		}
	}
	return r
}

// Lead rebuilds a lead from its row.
func (r Row) Lead() *discovery.VerifiedLead {
	l := &discovery.VerifiedLead{
		Candidate: discovery.Candidate{
			PlaceID:          r.PlaceID,
			DisplayName:      r.BusinessName,
			FormattedAddress: r.Address,
			WebsiteURI:       r.Website,
			Rating:           r.Rating,
			UserRatingCount:  r.Reviews,
			BusinessStatus:   discovery.StatusOperational,
			Phone:            r.Phone,
		},
		LeadID:           r.LeadID,
		RunID:            r.RunID,
		Keyword:          r.Keyword,
		Location:         r.Location,
		Domain:           r.Domain,
		ContactEmail:     r.Email,
		EnrichmentSource: r.Source,
		Confidence:       r.Confidence,
		DiscoveredAt:     r.DiscoveredAt.UTC(),
	}
	if r.Socials != "" {
		if err := json.Unmarshal([]byte(r.Socials), &l.Socials); err != nil {
			zap.L().Debug("sink: discarding unreadable socials",
				zap.String("lead_id", r.LeadID),
				zap.Error(err),
			)
			l.Socials = nil
		}
	}
	return l
}

// uniqueRows flattens leads, keeping the last row per lead id in first-seen
// order.
func uniqueRows(leads []*discovery.VerifiedLead) []Row {
	idx := make(map[string]int, len(leads))
	rows := make([]Row, 0, len(leads))
	for _, l := range leads {
		if l == nil {
			continue
		}
		r := RowFromLead(l)
		if i, ok := idx[r.LeadID]; ok {
			rows[i] = r
			continue
		}
		idx[r.LeadID] = len(rows)
		rows = append(rows, r)
	}
	return rows
}
