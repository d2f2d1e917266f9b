// internal/runner/runner.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/transcheck/internal/caseload"
	"github.com/xkilldash9x/transcheck/internal/clock"
	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/extract"
	"github.com/xkilldash9x/transcheck/internal/observability"
	"github.com/xkilldash9x/transcheck/internal/oracle"
	"github.com/xkilldash9x/transcheck/internal/page"
	"github.com/xkilldash9x/transcheck/internal/poller"
	"github.com/xkilldash9x/transcheck/internal/resolver"
	"github.com/xkilldash9x/transcheck/internal/results"
)

const (
	defaultCaseTimeout = 90 * time.Second
	defaultKeyDelay    = 10 * time.Millisecond
	closeTimeout       = 10 * time.Second
)

// errFailFast stops the pool after the first failing case.
var errFailFast = errors.New("stopping after first failure")

// Listener receives a copy of every outcome as soon as it is final.
type Listener func(results.Outcome)

// Runner executes a case table against the target page, one fresh page per case.
type Runner struct {
	cfg       config.Interface
	driver    page.Driver
	loader    *caseload.Loader
	resolver  *resolver.Resolver
	poller    *poller.Poller
	extractor extract.Extractor
	filter    *regexp.Regexp
	limiter   *rate.Limiter
	clock     clock.Clock
	logger    *zap.Logger

	listeners []Listener
	notifyMu  sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

func WithClock(c clock.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithListener registers l for every outcome. Listeners are called one at a time.
func WithListener(l Listener) Option {
	return func(r *Runner) { r.listeners = append(r.listeners, l) }
}

// New builds a runner from the configuration and an open driver.
func New(cfg config.Interface, driver page.Driver, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if driver == nil {
		return nil, errors.New("driver cannot be nil")
	}

	r := &Runner{cfg: cfg, driver: driver, clock: clock.Real{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("runner")

	rc, err := ResolverSettings(cfg.Resolver())
	if err != nil {
		return nil, err
	}
	r.resolver = resolver.New(rc, resolver.WithClock(r.clock), resolver.WithLogger(r.logger))
	r.poller = poller.New(PollerSettings(cfg.Poller()), poller.WithClock(r.clock), poller.WithLogger(r.logger))
	r.extractor = ExtractorSettings(cfg.Extract())
	r.loader = caseload.NewLoader(r.logger)

	rcfg := cfg.Runner()
	if rcfg.Filter != "" {
		if r.filter, err = regexp.Compile(rcfg.Filter); err != nil {
			return nil, fmt.Errorf("invalid case filter: %w", err)
		}
	}
	if rcfg.NavigationRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(rcfg.NavigationRate), max(rcfg.NavigationBurst, 1))
	}
	return r, nil
}

// Run loads the case table and executes it. Load failures abort the suite
// and are returned together with the sanity outcomes recorded so far.
func (r *Runner) Run(ctx context.Context) (*results.Run, error) {
	path := r.cfg.Cases().Path
	run := &results.Run{
		ID:        uuid.NewString(),
		Target:    r.cfg.Target().URL,
		Source:    path,
		Driver:    r.cfg.Browser().Driver,
		StartedAt: r.clock.Now(),
	}
	logger := r.logger.With(zap.String("run_id", run.ID))
	defer func() { run.FinishedAt = r.clock.Now() }()

	src := r.sourceOutcome(path)
	r.record(run, src)
	if !src.Pass {
		return run, &caseload.LoadError{Kind: caseload.ErrSourceNotFound, Source: path}
	}

	table, err := r.loader.LoadFile(path)
	if err != nil {
		r.record(run, results.Outcome{
			Index: 1, Title: "Sheet used: <none>", Kind: results.KindSanity,
			Message: err.Error(), StartedAt: r.clock.Now(),
		})
		return run, err
	}
	run.Sheet = table.Sheet

	loaded := results.Outcome{
		Index:     1,
		Title:     fmt.Sprintf("Sheet used: %s | Loaded %d functional cases", table.Sheet, len(table.Cases)),
		Kind:      results.KindSanity,
		Sheet:     table.Sheet,
		Pass:      len(table.Cases) > 0,
		StartedAt: r.clock.Now(),
	}
	if !loaded.Pass {
		loaded.Message = fmt.Sprintf("no functional cases among %d data rows", table.DataRows)
	}
	r.record(run, loaded)

	cases := r.selectCases(table.Cases)
	logger.Info("Starting suite.",
		zap.String("target", run.Target),
		zap.String("sheet", table.Sheet),
		zap.Int("cases", len(cases)),
		zap.Int("concurrency", max(r.cfg.Runner().Concurrency, 1)),
	)

	run.Outcomes = append(run.Outcomes, r.runCases(ctx, cases)...)

	s := run.Summary()
	logger.Info("Suite finished.",
		zap.Int("passed", s.Passed), zap.Int("failed", s.Failed), zap.Int("errors", s.Errors),
		zap.Int("fallback_resolutions", s.Fallback), zap.Int("unsettled", s.Unsettled),
	)
	return run, nil
}

func (r *Runner) sourceOutcome(path string) results.Outcome {
	o := results.Outcome{
		Title:     "Excel source: " + path,
		Kind:      results.KindSanity,
		StartedAt: r.clock.Now(),
	}
	if _, err := os.Stat(path); err != nil {
		o.Message = fmt.Sprintf("case source not readable: %v", err)
		return o
	}
	o.Pass = true
	return o
}

type indexedCase struct {
	index int
	c     caseload.Case
}

func (r *Runner) selectCases(all []caseload.Case) []indexedCase {
	out := make([]indexedCase, 0, len(all))
	for i, c := range all {
		if r.filter != nil && !r.filter.MatchString(c.ID) {
			continue
		}
		out = append(out, indexedCase{index: i, c: c})
	}
	return out
}

// runCases executes the cases in a bounded pool. Outcomes keep table order.
func (r *Runner) runCases(ctx context.Context, cases []indexedCase) []results.Outcome {
	rcfg := r.cfg.Runner()
	outcomes := make([]results.Outcome, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(rcfg.Concurrency, 1))

	for i, ic := range cases {
		g.Go(func() error {
			var o results.Outcome
			if gctx.Err() != nil {
				o = r.notRun(ic, context.Cause(gctx))
			} else {
				o = r.RunCase(gctx, ic.index, ic.c)
			}
			outcomes[i] = o
			r.notify(o)
			if rcfg.FailFast && !o.Pass {
				return errFailFast
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("Suite stopped early.", zap.Error(err))
	}
	return outcomes
}

func (r *Runner) notRun(ic indexedCase, cause error) results.Outcome {
	o := r.newOutcome(ic.index, ic.c)
	if errors.Is(cause, context.Canceled) {
		o.Error = "not run: suite canceled"
	} else {
		o.Error = "not run: " + cause.Error()
	}
	return o
}

func (r *Runner) newOutcome(index int, c caseload.Case) results.Outcome {
	return results.Outcome{
		Index:     index + 2,
		Title:     c.Title(index),
		Kind:      results.KindFunctional,
		CaseID:    c.ID,
		Sheet:     c.Sheet,
		Row:       c.Row,
		Polarity:  c.Polarity.String(),
		Input:     c.Input,
		Expected:  c.Expected,
		StartedAt: r.clock.Now(),
	}
}

// RunCase executes one case on a fresh page and scores it. Failures to drive
// the page are recorded on the outcome, never returned.
func (r *Runner) RunCase(ctx context.Context, index int, c caseload.Case) results.Outcome {
	o := r.newOutcome(index, c)
	sessionID := uuid.NewString()
	logger := observability.ForCase(r.logger, c.ID, c.Row, sessionID)

	timeout := r.cfg.Runner().CaseTimeout
	if timeout <= 0 {
		timeout = defaultCaseTimeout
	}
	caseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.execute(caseCtx, c, &o, logger); err != nil {
		o.Pass = false
		o.Error = err.Error()
		logger.Error("Case could not be executed.", zap.Error(err))
	} else if o.Pass {
		logger.Info("Case passed.", zap.String("rule", o.Rule))
	} else {
		logger.Warn("Case failed.", zap.String("rule", o.Rule), zap.String("actual", o.ActualNorm), zap.String("expected", o.ExpectedNorm))
	}
	o.Duration = r.clock.Now().Sub(o.StartedAt)
	o.Attachments = []results.Attachment{
		results.TextAttachment(results.AttachInput, c.Input),
		results.TextAttachment(results.AttachExpected, c.Expected),
		results.TextAttachment(results.AttachActualRaw, o.Raw),
		results.TextAttachment(results.AttachActualFinal, o.Extracted),
	}
	return o
}

func (r *Runner) execute(ctx context.Context, c caseload.Case, o *results.Outcome, logger *zap.Logger) error {
	p, err := r.OpenTarget(ctx)
	if err != nil {
		return err
	}
	defer r.closePage(ctx, p, logger)

	res, err := r.resolver.Resolve(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to resolve fields: %w", err)
	}
	o.Resolution = string(res.Path)
	o.OutputKind = res.Kind.String()

	if err := r.resolver.Clear(ctx, p, res.Input); err != nil {
		return err
	}
	keyDelay := r.cfg.Runner().KeyDelay
	if keyDelay <= 0 {
		keyDelay = defaultKeyDelay
	}
	if err := res.Input.Type(ctx, c.Input, keyDelay); err != nil {
		return fmt.Errorf("failed to type input: %w", err)
	}

	polled, err := r.poller.Poll(ctx, res.Output)
	o.Raw, o.Settled, o.Samples = polled.Text, polled.Settled, len(polled.Samples)
	if err != nil {
		return fmt.Errorf("output polling interrupted: %w", err)
	}

	o.Extracted = o.Raw
	if r.extractor.Applies(res.Kind == page.KindContainer, o.Raw) {
		o.Extracted = r.extractor.Extract(o.Raw)
	}

	v := oracle.Judge(c.Polarity, o.Extracted, c.Expected)
	o.Pass, o.Rule = v.Pass, string(v.Rule)
	o.ActualNorm, o.ExpectedNorm = v.Actual, v.Expected
	return nil
}

// OpenTarget opens a page and loads the target, honoring the navigation rate
// and the post-load pause. The caller closes the page.
func (r *Runner) OpenTarget(ctx context.Context) (page.Page, error) {
	p, err := r.driver.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := r.navigate(ctx, p); err != nil {
		r.closePage(ctx, p, r.logger)
		return nil, err
	}
	return p, nil
}

func (r *Runner) navigate(ctx context.Context, p page.Page) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("navigation rate limit: %w", err)
		}
	}
	if err := p.Navigate(ctx, r.cfg.Target().URL); err != nil {
		return err
	}
	return r.clock.Sleep(ctx, r.cfg.Browser().PostLoadWait)
}

func (r *Runner) closePage(ctx context.Context, p page.Page, logger *zap.Logger) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := p.Close(closeCtx); err != nil {
		logger.Warn("Failed to close page.", zap.Error(err))
	}
}

// Resolver exposes the configured resolver for single-page diagnostics.
func (r *Runner) Resolver() *resolver.Resolver { return r.resolver }

// Poller exposes the configured poller.
func (r *Runner) Poller() *poller.Poller { return r.poller }

// Clock returns the clock the runner waits on.
func (r *Runner) Clock() clock.Clock { return r.clock }

// Logger returns the runner's logger.
func (r *Runner) Logger() *zap.Logger { return r.logger }

func (r *Runner) record(run *results.Run, o results.Outcome) {
	run.Outcomes = append(run.Outcomes, o)
	r.notify(o)
}

func (r *Runner) notify(o results.Outcome) {
	if len(r.listeners) == 0 {
		return
	}
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	for _, l := range r.listeners {
		l(o.Clone())
	}
}
