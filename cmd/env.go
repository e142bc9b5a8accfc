package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/doernaz/brandlift/internal/config"
	"github.com/doernaz/brandlift/internal/discovery"
	"github.com/doernaz/brandlift/internal/resilience"
	"github.com/doernaz/brandlift/internal/sink"
	"github.com/doernaz/brandlift/internal/waterfall"
	"github.com/doernaz/brandlift/internal/waterfall/provider"
	"github.com/doernaz/brandlift/pkg/google"
	"github.com/doernaz/brandlift/pkg/hunter"
	"github.com/doernaz/brandlift/pkg/jina"
)

// scanEnv holds the sink and controller needed by the scan and serve
// commands.
type scanEnv struct {
	Sink       discovery.Sink
	Controller *discovery.Controller
}

// Close releases the sink.
func (e *scanEnv) Close() {
	if e.Sink != nil {
		_ = e.Sink.Close()
	}
}

// initScan validates the config for command, opens the sink and builds the
// controller. Callers should defer env.Close().
func initScan(ctx context.Context, c *config.Config, command string) (*scanEnv, error) {
	if err := c.Validate(command); err != nil {
		return nil, err
	}

	snk, err := sink.Open(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open sink")
	}

	filter := discovery.NewFilter(c.Discovery.DirectoryBlocklist)
	if c.Discovery.ProfilesPath != "" {
		if err := filter.LoadProfiles(c.Discovery.ProfilesPath); err != nil {
			_ = snk.Close()
			return nil, err
		}
	}

	retry := retryConfig(c)
	googleClient := google.NewClient(c.Google.Key, google.WithBaseURL(c.Google.BaseURL))
	source := discovery.NewPlacesSource(googleClient, c.Google.RateLimit, c.Discovery.MaxPagesPerPivot, retry)

	ctrl := discovery.NewController(source, filter, buildWaterfall(c, retry), snk,
		discovery.WithConcurrency(c.Discovery.EnrichConcurrency),
		discovery.WithDirectoryBlocklist(c.Discovery.DirectoryBlocklist),
	)
	return &scanEnv{Sink: snk, Controller: ctrl}, nil
}

// openSink opens the configured sink for the read-only commands.
func openSink(ctx context.Context, c *config.Config, command string) (discovery.Sink, error) {
	if err := c.Validate(command); err != nil {
		return nil, err
	}
	snk, err := sink.Open(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open sink")
	}
	return snk, nil
}

func retryConfig(c *config.Config) resilience.RetryConfig {
	return resilience.FromSettings(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
}

// buildWaterfall wires the providers that have credentials. Missing
// providers are skipped and the waterfall falls back to guessed emails.
func buildWaterfall(c *config.Config, retry resilience.RetryConfig) *waterfall.Waterfall {
	var (
		website waterfall.WebsiteFinder
		social  waterfall.SocialFinder
		email   waterfall.EmailFinder
	)

	if c.Jina.Key != "" {
		jinaClient := jina.NewClient(c.Jina.Key, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
		website = provider.NewWebsiteSearch(jinaClient, c.Discovery.DirectoryBlocklist, retry)
		social = provider.NewSocialSearch(jinaClient, retry)
	} else {
		zap.L().Warn("jina key not set, website and social discovery disabled")
	}

	if c.Hunter.Key != "" {
		hunterClient := hunter.NewClient(c.Hunter.Key, hunter.WithBaseURL(c.Hunter.BaseURL))
		breaker := resilience.NewBreaker(c.Hunter.FailureThreshold, time.Duration(c.Hunter.CooldownSecs)*time.Second)
		email = provider.NewHunterEmails(hunterClient, c.Hunter.RateLimit, breaker, retry)
	} else {
		zap.L().Warn("hunter key not set, emails will be guessed")
	}

	return waterfall.New(website, social, email)
}

// defaultRequest builds a run request from the discovery config.
func defaultRequest(c *config.Config) discovery.RunRequest {
	return discovery.RunRequest{
		Locations:     append([]string(nil), c.Discovery.Locations...),
		Keywords:      append([]string(nil), c.Discovery.Keywords...),
		TargetCount:   c.Discovery.TargetCount,
		MaxIterations: c.Discovery.MaxIterations,
		Profile:       c.Discovery.Profile,
		MinSignal:     c.Discovery.MinSignal,
	}
}
