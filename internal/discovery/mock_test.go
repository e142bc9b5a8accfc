package discovery

import (
	"context"
	"sync"

	"github.com/doernaz/brandlift/internal/waterfall"
)

// fakeSource returns canned candidates per pivot and records the call order.
type fakeSource struct {
	byPivot map[Pivot][]Candidate
	errs    map[Pivot]error
	calls   []Pivot
}

func (f *fakeSource) Search(_ context.Context, keyword, location string) ([]Candidate, error) {
	p := Pivot{Location: location, Keyword: keyword}
	f.calls = append(f.calls, p)
	if err := f.errs[p]; err != nil {
		return nil, err
	}
	return f.byPivot[p], nil
}

// funcEnricher adapts a function to waterfall.Enricher.
type funcEnricher func(ctx context.Context, in waterfall.Input) *waterfall.Result

func (f funcEnricher) Enrich(ctx context.Context, in waterfall.Input) *waterfall.Result {
	return f(ctx, in)
}

// countingEnricher wraps an enricher and counts calls.
type countingEnricher struct {
	mu    sync.Mutex
	inner waterfall.Enricher
	names []string
}

func (c *countingEnricher) Enrich(ctx context.Context, in waterfall.Input) *waterfall.Result {
	c.mu.Lock()
	c.names = append(c.names, in.BusinessName)
	c.mu.Unlock()
	return c.inner.Enrich(ctx, in)
}

// memSink is an in-memory Sink keyed by LeadID.
type memSink struct {
	pingErr    error
	persistErr error
	calls      [][]*VerifiedLead
	rows       map[string]*VerifiedLead
}

func newMemSink() *memSink {
	return &memSink{rows: make(map[string]*VerifiedLead)}
}

func (m *memSink) Ping(_ context.Context) error { return m.pingErr }

func (m *memSink) Persist(_ context.Context, leads []*VerifiedLead) error {
	if m.persistErr != nil {
		return m.persistErr
	}
	m.calls = append(m.calls, leads)
	for _, l := range leads {
		m.rows[l.LeadID] = l
	}
	return nil
}

func (m *memSink) ListByRunID(_ context.Context, runID string) ([]*VerifiedLead, error) {
	var out []*VerifiedLead
	for _, l := range m.rows {
		if l.RunID == runID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memSink) Close() error { return nil }

func (m *memSink) persistedCount() int {
	n := 0
	for _, c := range m.calls {
		n += len(c)
	}
	return n
}

func ptr[T any](v T) *T { return &v }

func operational(name string, rating float64, reviews int) Candidate {
	return Candidate{
		DisplayName:      name,
		FormattedAddress: "1 Main St",
		Rating:           ptr(rating),
		UserRatingCount:  ptr(reviews),
		BusinessStatus:   StatusOperational,
	}
}
