// internal/resolver/resolver.go
package resolver

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/clock"
	"github.com/xkilldash9x/transcheck/internal/page"
	"github.com/xkilldash9x/transcheck/internal/textnorm"
)

// Defaults of the resolution procedure.
const (
	DefaultProbe        = "oba suvendha?"
	DefaultKeyDelay     = 10 * time.Millisecond
	DefaultSettle       = 1500 * time.Millisecond
	DefaultInputTimeout = 15 * time.Second
)

// Path records which step of the procedure produced the output handle.
type Path string

const (
	// PathProbe: a candidate reacted to the probe with target-script text.
	PathProbe Path = "probe"
	// PathReadOnly: no candidate reacted; the first visible read-only field was taken.
	PathReadOnly Path = "readonly"
	// PathContainer: nothing precise was found; the page body stands in.
	PathContainer Path = "container"
)

// Fallback reports whether the path is a low-confidence resolution.
func (p Path) Fallback() bool { return p != PathProbe }

// Config tunes the resolution procedure. Zero fields take the defaults.
type Config struct {
	Probe        string
	KeyDelay     time.Duration
	Settle       time.Duration
	InputTimeout time.Duration
	// Script is the target-language script the output must contain.
	Script *unicode.RangeTable
}

func (c Config) withDefaults() Config {
	if c.Probe == "" {
		c.Probe = DefaultProbe
	}
	if c.KeyDelay < 0 {
		c.KeyDelay = 0
	} else if c.KeyDelay == 0 {
		c.KeyDelay = DefaultKeyDelay
	}
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	if c.InputTimeout <= 0 {
		c.InputTimeout = DefaultInputTimeout
	}
	if c.Script == nil {
		c.Script = unicode.Sinhala
	}
	return c
}

// Resolution is the pair of handles found on one page session.
type Resolution struct {
	Input  page.Field
	Output page.Node
	Kind   page.Kind
	Path   Path
	// Candidates is how many elements were enumerated.
	Candidates int
}

// Resolver identifies the input and the live output element of a page that
// offers no stable identifiers.
type Resolver struct {
	cfg    Config
	clock  clock.Clock
	logger *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithClock(c clock.Clock) Option {
	return func(r *Resolver) { r.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l.Named("resolver")
		}
	}
}

// New creates a resolver.
func New(cfg Config, opts ...Option) *Resolver {
	r := &Resolver{cfg: cfg.withDefaults(), clock: clock.Real{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config { return r.cfg }

// Resolve runs the full procedure on a freshly loaded page: find the input,
// reset it, enumerate candidates, type the probe, pick the output and reset
// the input again.
func (r *Resolver) Resolve(ctx context.Context, p page.Page) (*Resolution, error) {
	input, err := p.FirstEditable(ctx, r.cfg.InputTimeout)
	if err != nil {
		return nil, err
	}

	if err := r.Clear(ctx, p, input); err != nil {
		return nil, err
	}

	sess := NewSession(p, input)
	if err := sess.Enumerate(ctx); err != nil {
		return nil, err
	}

	if err := input.Type(ctx, r.cfg.Probe, r.cfg.KeyDelay); err != nil {
		return nil, fmt.Errorf("failed to type probe: %w", err)
	}
	if err := r.clock.Sleep(ctx, r.cfg.Settle); err != nil {
		return nil, err
	}

	res := &Resolution{Input: input, Candidates: len(sess.candidates)}
	if c := sess.Changed(ctx, r.cfg.Script); c != nil {
		res.Output, res.Path = c.Node, PathProbe
	} else if ro := r.readOnly(ctx, p); ro != nil {
		res.Output, res.Path = ro, PathReadOnly
	} else {
		body, err := p.Body(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get page body: %w", err)
		}
		res.Output, res.Path = body, PathContainer
	}
	res.Kind = res.Output.Kind()
	if res.Path == PathContainer {
		res.Kind = page.KindContainer
	}

	if err := r.Clear(ctx, p, input); err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("path", string(res.Path)),
		zap.Stringer("kind", res.Kind),
		zap.Int("candidates", res.Candidates),
	}
	if res.Path.Fallback() {
		r.logger.Warn("Output field resolved through fallback.", fields...)
	} else {
		r.logger.Debug("Output field resolved.", fields...)
	}
	return res, nil
}

// Clear resets the input: a labeled clear control if the page has one, then a direct empty fill.
func (r *Resolver) Clear(ctx context.Context, p page.Page, input page.Field) error {
	if _, err := p.ClickClear(ctx); err != nil {
		r.logger.Debug("Clear control click failed.", zap.Error(err))
	}
	if err := input.Fill(ctx, ""); err != nil {
		return fmt.Errorf("failed to clear input: %w", err)
	}
	return nil
}

func (r *Resolver) readOnly(ctx context.Context, p page.Page) page.Node {
	ro, err := p.FirstReadOnly(ctx)
	if err != nil || ro == nil {
		return nil
	}
	if ok, err := ro.Visible(ctx); err != nil || !ok {
		return nil
	}
	return ro
}

// Candidate is an enumerated element with the snapshot taken before the probe.
type Candidate struct {
	Node     page.Node
	Baseline string
}

// Session is the candidate enumeration of one page load. It is never reused
// across navigations.
type Session struct {
	page       page.Page
	input      page.Node
	candidates []Candidate
}

// NewSession starts an enumeration session for the given page and input.
func NewSession(p page.Page, input page.Node) *Session {
	return &Session{page: p, input: input}
}

// Candidates returns the enumerated candidates in document order.
func (s *Session) Candidates() []Candidate { return s.candidates }

// Enumerate lists the visible elements other than the input and records their baselines.
// Elements whose visibility or identity cannot be read are skipped.
func (s *Session) Enumerate(ctx context.Context) error {
	nodes, err := s.page.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate candidates: %w", err)
	}

	s.candidates = s.candidates[:0]
	for _, n := range nodes {
		visible, err := n.Visible(ctx)
		if err != nil || !visible {
			continue
		}
		if same, err := n.Same(ctx, s.input); err != nil || same {
			continue
		}
		s.candidates = append(s.candidates, Candidate{Node: n, Baseline: snapshot(ctx, n)})
	}
	return nil
}

// Changed returns the first candidate, in enumeration order, whose snapshot
// differs from its baseline and contains a rune of script.
func (s *Session) Changed(ctx context.Context, script *unicode.RangeTable) *Candidate {
	for i := range s.candidates {
		c := &s.candidates[i]
		now := snapshot(ctx, c.Node)
		if now != "" && now != c.Baseline && textnorm.ContainsScript(now, script) {
			return c
		}
	}
	return nil
}

func snapshot(ctx context.Context, n page.Node) string {
	text, err := n.Snapshot(ctx)
	if err != nil {
		return ""
	}
	return text
}

// Enumerate is a one-shot enumeration of the candidates of p relative to input.
func Enumerate(ctx context.Context, p page.Page, input page.Node) ([]Candidate, error) {
	s := NewSession(p, input)
	if err := s.Enumerate(ctx); err != nil {
		return nil, err
	}
	return s.Candidates(), nil
}
