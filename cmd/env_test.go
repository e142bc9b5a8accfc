package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doernaz/brandlift/internal/config"
	"github.com/doernaz/brandlift/internal/discovery"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Google.Key = "places-key"
	c.Google.BaseURL = "http://127.0.0.1:1"
	c.Store.Driver = "csv"
	c.Store.Path = filepath.Join(t.TempDir(), "leads.csv")
	c.Discovery.EnrichConcurrency = 3
	c.Discovery.Locations = []string{"Phoenix, AZ", "Tempe, AZ"}
	c.Discovery.Keywords = []string{"Med Spa"}
	c.Discovery.TargetCount = 4
	c.Discovery.MaxIterations = 6
	c.Discovery.Profile = "high_ticket_artisan"
	c.Server.Port = 8080
	return c
}

func TestInitScan(t *testing.T) {
	c := testConfig(t)
	env, err := initScan(context.Background(), c, "scan")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Sink)
	assert.NotNil(t, env.Controller)
	require.NoError(t, env.Sink.Ping(context.Background()))
}

func TestInitScan_ValidationError(t *testing.T) {
	c := testConfig(t)
	c.Google.Key = ""
	_, err := initScan(context.Background(), c, "scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google.key")
}

func TestInitScan_BadProfilesFile(t *testing.T) {
	c := testConfig(t)
	c.Discovery.ProfilesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := initScan(context.Background(), c, "scan")
	require.Error(t, err)
}

func TestDefaultRequest(t *testing.T) {
	c := testConfig(t)
	req := defaultRequest(c)
	assert.Equal(t, []string{"Phoenix, AZ", "Tempe, AZ"}, req.Locations)
	assert.Equal(t, []string{"Med Spa"}, req.Keywords)
	assert.Equal(t, 4, req.TargetCount)
	assert.Equal(t, 6, req.MaxIterations)
	assert.Equal(t, "high_ticket_artisan", req.Profile)

	// The request owns its slices.
	req.Locations[0] = "Austin, TX"
	assert.Equal(t, "Phoenix, AZ", c.Discovery.Locations[0])
}

func TestBuildWaterfall_NoCredentialsFallsBack(t *testing.T) {
	c := testConfig(t)
	w := buildWaterfall(c, retryConfig(c))
	require.NotNil(t, w)
}

func TestOpenSink_NotionValidation(t *testing.T) {
	c := testConfig(t)
	c.Store = config.StoreConfig{Driver: "notion"}
	_, err := openSink(context.Background(), c, "leads")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.notion_token")
}

func TestPrintLeads(t *testing.T) {
	leads := []*discovery.VerifiedLead{
		{
			Candidate:        discovery.Candidate{DisplayName: "Desert Bloom Dental"},
			Location:         "Phoenix, AZ",
			ContactEmail:     "hello@desertbloom.com",
			EnrichmentSource: "hunter",
			Confidence:       0.94,
			DiscoveredAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	var buf bytes.Buffer
	require.NoError(t, printLeads(&buf, leads))
	out := buf.String()
	assert.Contains(t, out, "BUSINESS")
	assert.Contains(t, out, "Desert Bloom Dental")
	assert.Contains(t, out, "hello@desertbloom.com")
	assert.Contains(t, out, "94%")
	assert.Contains(t, out, "1 lead(s)")
}
