package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doernaz/brandlift/internal/discovery"
)

func TestApplyScanFlags(t *testing.T) {
	flags := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	flags.AddFlagSet(scanCmd.Flags())
	require.NoError(t, flags.Parse([]string{"--target", "7", "--location", "Austin, TX", "--location", "Dallas, TX"}))
	t.Cleanup(func() {
		scanTarget = 0
		scanLocations = nil
	})

	req := applyScanFlags(testDefaults(), flags)
	assert.Equal(t, 7, req.TargetCount)
	assert.Equal(t, []string{"Austin, TX", "Dallas, TX"}, req.Locations)
	// Unset flags keep the defaults.
	assert.Equal(t, []string{"Cosmetic Dentistry"}, req.Keywords)
	assert.Equal(t, 3, req.MaxIterations)
}

func TestApplyScanFlags_KeepsCommasInValues(t *testing.T) {
	flags := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	flags.AddFlagSet(scanCmd.Flags())
	require.NoError(t, flags.Parse([]string{"--location", "Scottsdale, AZ", "--keyword", "Veneers, Crowns & Bridges"}))
	t.Cleanup(func() {
		scanLocations = nil
		scanKeywords = nil
	})

	req := applyScanFlags(testDefaults(), flags)
	assert.Equal(t, []string{"Scottsdale, AZ"}, req.Locations)
	assert.Equal(t, []string{"Veneers, Crowns & Bridges"}, req.Keywords)
}

func TestPrintResult(t *testing.T) {
	res := &discovery.RunResult{
		RunID:             "run-1",
		Status:            discovery.StatusSuccess,
		TotalVerified:     3,
		Iterations:        1,
		TerminationReason: discovery.ReasonTargetReached,
		Visited:           []discovery.Pivot{{Location: "Phoenix, AZ", Keyword: "Cosmetic Dentistry"}},
		Message:           "target reached: 3/3 leads after 1 iteration(s)",
	}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, res, false))
	out := buf.String()
	assert.Contains(t, out, "run:        run-1")
	assert.Contains(t, out, "success (target_reached)")
	assert.Contains(t, out, res.Visited[0].String())
	assert.Contains(t, out, res.Message)

	buf.Reset()
	require.NoError(t, printResult(&buf, res, true))
	var decoded discovery.RunResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *res, decoded)
}
