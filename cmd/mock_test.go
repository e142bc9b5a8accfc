package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doernaz/brandlift/internal/discovery"
	"github.com/doernaz/brandlift/internal/sink"
	"github.com/doernaz/brandlift/internal/waterfall"
)

// fakeSource returns the same candidates for every pivot.
type fakeSource struct {
	mu         sync.Mutex
	candidates []discovery.Candidate
	calls      int
}

func (f *fakeSource) Search(_ context.Context, _, _ string) ([]discovery.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.candidates, nil
}

func candidate(name string) discovery.Candidate {
	rating := 4.6
	reviews := 40
	return discovery.Candidate{
		DisplayName:      name,
		FormattedAddress: "100 N Central Ave, Phoenix, AZ",
		Rating:           &rating,
		UserRatingCount:  &reviews,
		BusinessStatus:   discovery.StatusOperational,
	}
}

// newTestController builds a controller over a CSV sink in a temp dir.
func newTestController(t *testing.T, names ...string) (*discovery.Controller, discovery.Sink, *fakeSource) {
	t.Helper()
	snk, err := sink.NewCSV(filepath.Join(t.TempDir(), "leads.csv"))
	require.NoError(t, err)

	src := &fakeSource{}
	for _, n := range names {
		src.candidates = append(src.candidates, candidate(n))
	}
	ctrl := discovery.NewController(src, discovery.NewFilter(nil), waterfall.New(nil, nil, nil), snk)
	return ctrl, snk, src
}

func testDefaults() discovery.RunRequest {
	return discovery.RunRequest{
		Locations:     []string{"Phoenix, AZ"},
		Keywords:      []string{"Cosmetic Dentistry"},
		TargetCount:   2,
		MaxIterations: 3,
	}
}
