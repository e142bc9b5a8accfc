package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/doernaz/brandlift/internal/normalize"
	"github.com/doernaz/brandlift/internal/waterfall"
)

const defaultConcurrency = 5

// RequestError reports a malformed run request.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return "discovery: invalid run request: " + e.Reason
}

// IsRequestError reports whether err is a RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// ProgressFunc observes the run state after every iteration.
type ProgressFunc func(RunState)

// Controller drives the pivot loop. A Controller holds no per-run state and
// may run several scans at once; each run owns its own ledger and counters.
type Controller struct {
	source      Source
	filter      *Filter
	enricher    waterfall.Enricher
	sink        Sink
	blocklist   []string
	concurrency int
	nameSkip    bool
	now         func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithConcurrency bounds the per-pivot enrichment fan-out.
func WithConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithDirectoryBlocklist sets hosts whose URLs are not treated as a
// candidate's own website.
func WithDirectoryBlocklist(hosts []string) Option {
	return func(c *Controller) {
		c.blocklist = hosts
	}
}

// WithNameSkip toggles skipping enrichment for candidates whose name was
// already admitted. Enabled by default.
func WithNameSkip(enabled bool) Option {
	return func(c *Controller) {
		c.nameSkip = enabled
	}
}

// WithClock overrides the clock used for DiscoveredAt.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates a Controller.
func NewController(source Source, filter *Filter, enricher waterfall.Enricher, sink Sink, opts ...Option) *Controller {
	c := &Controller{
		source:      source,
		filter:      filter,
		enricher:    enricher,
		sink:        sink,
		concurrency: defaultConcurrency,
		nameSkip:    true,
		now:         time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run executes the scan until the target is reached, the pivot space is
// exhausted, MaxIterations iterations have run or ctx is canceled. At least
// one iteration always runs. Setup failures return an error and no result.
// A persist failure aborts the run and returns the partial result with the
// error.
func (c *Controller) Run(ctx context.Context, req RunRequest, progress ProgressFunc) (*RunResult, error) {
	if err := c.validate(ctx, &req); err != nil {
		return nil, err
	}
	matrix, err := NewPivotMatrix(req.Locations, req.Keywords)
	if err != nil {
		return nil, &RequestError{Reason: err.Error()}
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	log := zap.L().With(zap.String("run_id", req.RunID))
	log.Info("scan started",
		zap.Int("target", req.TargetCount),
		zap.Int("max_iterations", req.MaxIterations),
		zap.Int("pivot_space", matrix.Size()),
		zap.String("profile", req.Profile),
	)

	state := RunState{RunID: req.RunID, Target: req.TargetCount}
	ledger := NewLedger()
	result := &RunResult{RunID: req.RunID}

	for !state.Done {
		state.LoopCount++
		pivot := matrix.Current()
		state.Current = pivot
		result.Visited = append(result.Visited, pivot)

		leads := c.runPivot(ctx, req, pivot, state, ledger)
		if len(leads) > 0 {
			if err := c.sink.Persist(ctx, leads); err != nil {
				state.Done = true
				c.finish(result, state, ReasonSinkError)
				notify(progress, state)
				log.Error("persist failed, aborting scan", zap.String("pivot", pivot.String()), zap.Error(err))
				return result, eris.Wrapf(err, "discovery: persist %d leads for %s", len(leads), pivot)
			}
			state.TotalVerified += len(leads)
		}

		reason := c.nextStep(ctx, state, req, matrix)
		if reason != "" {
			state.Done = true
			c.finish(result, state, reason)
		}
		notify(progress, state)
	}

	log.Info("scan finished",
		zap.String("status", result.Status),
		zap.String("reason", result.TerminationReason),
		zap.Int("total_verified", result.TotalVerified),
		zap.Int("iterations", result.Iterations),
	)
	return result, nil
}

// nextStep advances the pivot and returns the termination reason, or ""
// when the loop continues. Exhausting the pivot space takes precedence over
// the iteration ceiling.
func (c *Controller) nextStep(ctx context.Context, state RunState, req RunRequest, matrix *PivotMatrix) string {
	switch {
	case state.TotalVerified >= state.Target:
		return ReasonTargetReached
	case ctx.Err() != nil:
		return ReasonCanceled
	case !matrix.Advance():
		return ReasonPivotsExhausted
	case state.LoopCount >= req.MaxIterations:
		return ReasonMaxIterations
	}
	return ""
}

func (c *Controller) finish(result *RunResult, state RunState, reason string) {
	result.TotalVerified = state.TotalVerified
	result.Iterations = state.LoopCount
	result.TerminationReason = reason
	result.Status = StatusPartial
	if state.TotalVerified >= state.Target {
		result.Status = StatusSuccess
	}
	result.Message = fmt.Sprintf("%s: %d/%d leads after %d iteration(s)",
		strings.ReplaceAll(reason, "_", " "), state.TotalVerified, state.Target, state.LoopCount)
}

func notify(progress ProgressFunc, state RunState) {
	if progress != nil {
		progress(state)
	}
}

func (c *Controller) validate(ctx context.Context, req *RunRequest) error {
	if c.sink == nil {
		return eris.New("discovery: result sink is not configured")
	}
	if c.source == nil || c.filter == nil || c.enricher == nil {
		return eris.New("discovery: controller is missing a source, filter or enricher")
	}

	if err := c.CheckRequest(req); err != nil {
		return err
	}

	if err := c.sink.Ping(ctx); err != nil {
		return eris.Wrap(err, "discovery: result sink unreachable")
	}
	return nil
}

// CheckRequest trims the pivot lists of req and reports a *RequestError if
// the request cannot run. It does not touch the sink.
func (c *Controller) CheckRequest(req *RunRequest) error {
	req.Locations = compact(req.Locations)
	req.Keywords = compact(req.Keywords)
	switch {
	case len(req.Locations) == 0:
		return &RequestError{Reason: "at least one location is required"}
	case len(req.Keywords) == 0:
		return &RequestError{Reason: "at least one keyword is required"}
	case req.TargetCount < 0:
		return &RequestError{Reason: fmt.Sprintf("target count must be >= 0, got %d", req.TargetCount)}
	case req.MaxIterations < 1:
		return &RequestError{Reason: fmt.Sprintf("max iterations must be >= 1, got %d", req.MaxIterations)}
	}
	if c.filter != nil {
		if _, err := c.filter.Profile(req.Profile); err != nil {
			return &RequestError{Reason: err.Error()}
		}
	}
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// runPivot searches, filters, enriches and deduplicates one pivot. It never
// fails: search errors yield no leads and per-candidate failures drop only
// that candidate. The returned leads are already admitted to the ledger and
// capped at the remaining target.
func (c *Controller) runPivot(ctx context.Context, req RunRequest, pivot Pivot, state RunState, ledger *Ledger) []*VerifiedLead {
	log := zap.L().With(
		zap.String("run_id", req.RunID),
		zap.String("pivot", pivot.String()),
		zap.Int("iteration", state.LoopCount),
	)

	raw, err := c.source.Search(ctx, pivot.Keyword, pivot.Location)
	if err != nil {
		log.Warn("candidate search failed, pivoting", zap.Error(err))
		return nil
	}

	shortlist, err := c.filter.Apply(raw, req.MinSignal, req.Profile)
	if err != nil {
		log.Warn("candidate filter failed", zap.Error(err))
		return nil
	}
	if len(shortlist) == 0 {
		log.Info("no candidates found, pivoting", zap.Int("raw", len(raw)))
		return nil
	}

	slots := make([]*VerifiedLead, len(shortlist))
	skipped := 0
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, cand := range shortlist {
		if c.nameSkip && ledger.SeenName(cand.DisplayName) {
			skipped++
			continue
		}
		g.Go(func() error {
			slots[i] = c.enrichCandidate(ctx, req.RunID, pivot, cand)
			return nil
		})
	}
	_ = g.Wait()

	need := state.Target - state.TotalVerified
	var (
		leads      []*VerifiedLead
		enriched   int
		duplicates int
	)
	for _, lead := range slots {
		if lead == nil {
			continue
		}
		enriched++
		if len(leads) >= need {
			continue
		}
		if !ledger.Admit(lead) {
			duplicates++
			continue
		}
		leads = append(leads, lead)
	}

	log.Info("pivot complete",
		zap.Int("raw", len(raw)),
		zap.Int("shortlisted", len(shortlist)),
		zap.Int("skipped_seen", skipped),
		zap.Int("enriched", enriched),
		zap.Int("duplicates", duplicates),
		zap.Int("new_leads", len(leads)),
	)
	return leads
}

// enrichCandidate runs the waterfall for one candidate. A panic is confined
// to the candidate's slot.
func (c *Controller) enrichCandidate(ctx context.Context, runID string, pivot Pivot, cand Candidate) (lead *VerifiedLead) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("candidate enrichment panicked",
				zap.String("business", cand.DisplayName),
				zap.Any("panic", p),
			)
			lead = nil
		}
	}()

	res := c.enricher.Enrich(ctx, waterfall.Input{
		Domain:       normalize.OwnDomain(cand.WebsiteURI, c.blocklist),
		BusinessName: cand.DisplayName,
		Address:      cand.FormattedAddress,
		Location:     pivot.Location,
	})
	if res == nil {
		return nil
	}

	lead, err := NewVerifiedLead(cand, pivot, runID, res, c.now())
	if err != nil {
		zap.L().Debug("candidate dropped", zap.String("business", cand.DisplayName), zap.Error(err))
		return nil
	}
	return lead
}
