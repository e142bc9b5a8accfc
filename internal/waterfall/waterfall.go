package waterfall

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/doernaz/brandlift/internal/normalize"
	"github.com/doernaz/brandlift/internal/resilience"
)

// Waterfall runs website discovery, social discovery, provider email lookup
// and the heuristic fallback in that order. Nil collaborators are treated as
// unconfigured.
type Waterfall struct {
	website WebsiteFinder
	social  SocialFinder
	email   EmailFinder
}

// New creates a Waterfall.
func New(website WebsiteFinder, social SocialFinder, email EmailFinder) *Waterfall {
	return &Waterfall{website: website, social: social, email: email}
}

// Enrich never returns an error. It returns nil only when no fallback address
// can be built from the business name.
func (w *Waterfall) Enrich(ctx context.Context, in Input) *Result {
	name := strings.TrimSpace(in.BusinessName)
	if name == "" {
		return nil
	}
	log := zap.L().With(zap.String("business", name))

	res := &Result{Domain: strings.ToLower(strings.TrimSpace(in.Domain))}
	if res.Domain != "" {
		res.DomainSource = DomainFromCandidate
	}

	if res.Domain == "" {
		res.discoverWebsite(ctx, w.website, name, in.Address)
	}

	res.discoverSocials(ctx, w.social, name, in.Location)

	if res.Domain != "" {
		res.lookupEmail(ctx, w.email, log)
		return res
	}

	slug := normalize.Slug(name)
	if slug == "" {
		log.Debug("no fallback possible for business name")
		return nil
	}
	res.Email = "info@" + slug + ".com"
	res.Source = SourceFallbackGuess
	res.Confidence = FallbackGuessConfidence
	res.record(StageFallback, OutcomeFound, nil)
	return res
}

func (r *Result) discoverWebsite(ctx context.Context, f WebsiteFinder, name, address string) {
	if f == nil {
		r.record(StageSearch, OutcomeUnconfigured, nil)
		return
	}
	site, err := safeCall(func() (string, error) { return f.FindWebsite(ctx, name, address) })
	switch {
	case errors.Is(err, ErrUnconfigured):
		r.record(StageSearch, OutcomeUnconfigured, nil)
	case err != nil:
		r.record(StageSearch, OutcomeFailed, err)
	default:
		if d := normalize.Domain(site); d != "" {
			r.Domain = d
			r.DomainSource = DomainFromSearch
			r.record(StageSearch, OutcomeFound, nil)
			return
		}
		r.record(StageSearch, OutcomeEmpty, nil)
	}
}

func (r *Result) discoverSocials(ctx context.Context, f SocialFinder, name, location string) {
	if f == nil {
		r.record(StageSocial, OutcomeUnconfigured, nil)
		return
	}
	socials, err := safeCall(func() (map[string]string, error) { return f.FindSocials(ctx, name, location) })
	switch {
	case errors.Is(err, ErrUnconfigured):
		r.record(StageSocial, OutcomeUnconfigured, nil)
	case err != nil:
		r.record(StageSocial, OutcomeFailed, err)
	case len(socials) == 0:
		r.record(StageSocial, OutcomeEmpty, nil)
	default:
		r.Socials = socials
		r.record(StageSocial, OutcomeFound, nil)
	}
}

func (r *Result) lookupEmail(ctx context.Context, f EmailFinder, log *zap.Logger) {
	var (
		found *Email
		err   error
	)
	if f == nil {
		err = ErrUnconfigured
	} else {
		found, err = safeCall(func() (*Email, error) { return f.FindEmail(ctx, r.Domain) })
	}

	switch {
	case errors.Is(err, ErrUnconfigured):
		r.record(StageHunter, OutcomeUnconfigured, nil)
	case errors.Is(err, resilience.ErrBreakerOpen):
		r.record(StageHunter, OutcomeBreakerOpen, nil)
	case err != nil:
		log.Debug("email lookup failed", zap.String("domain", r.Domain), zap.Error(err))
		r.record(StageHunter, OutcomeFailed, err)
	case found == nil || strings.TrimSpace(found.Address) == "":
		r.record(StageHunter, OutcomeEmpty, nil)
	default:
		r.Email = normalize.Email(found.Address)
		r.Source = SourceHunter
		r.Confidence = found.Confidence
		r.record(StageHunter, OutcomeFound, nil)
		return
	}

	r.Email = "contact@" + r.Domain
	r.Source = SourceDomainGuess
	r.Confidence = DomainGuessConfidence
}

func (r *Result) record(stage, outcome string, err error) {
	a := Attempt{Stage: stage, Outcome: outcome}
	if err != nil {
		a.Error = err.Error()
	}
	r.Attempts = append(r.Attempts, a)
}

// safeCall confines a collaborator panic to an error.
func safeCall[T any](fn func() (T, error)) (val T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.New(fmt.Sprintf("waterfall: stage panic: %v", p))
		}
	}()
	return fn()
}
