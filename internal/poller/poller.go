// internal/poller/poller.go
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/clock"
)

// Default intervals of the quiescence decision.
const (
	DefaultInterval       = 300 * time.Millisecond
	DefaultChangedConfirm = 800 * time.Millisecond
	DefaultSteadyConfirm  = 600 * time.Millisecond
	DefaultTimeout        = 20 * time.Second
)

// Source is anything whose current text can be sampled.
type Source interface {
	Snapshot(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) Snapshot(ctx context.Context) (string, error) { return f(ctx) }

// Config holds the poller intervals. Zero fields take the defaults.
type Config struct {
	Interval       time.Duration
	ChangedConfirm time.Duration
	SteadyConfirm  time.Duration
	Timeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ChangedConfirm <= 0 {
		c.ChangedConfirm = DefaultChangedConfirm
	}
	if c.SteadyConfirm <= 0 {
		c.SteadyConfirm = DefaultSteadyConfirm
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Sample is one timestamped snapshot.
type Sample struct {
	At   time.Time
	Text string
}

// Result is the outcome of one polling session. Settled is false when the
// timeout elapsed first; Text is then the last observed sample and may be partial.
type Result struct {
	Text    string
	Settled bool
	Samples []Sample
	Elapsed time.Duration
}

// State is the position of the quiescence state machine.
type State int

const (
	// StateUnstable: the last sample was empty or a confirmation disagreed.
	StateUnstable State = iota
	// StateTentative: a non-empty sample awaits its confirmation sample.
	StateTentative
	// StateSettled: a confirmation agreed.
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateTentative:
		return "tentative"
	case StateSettled:
		return "settled"
	default:
		return "unstable"
	}
}

// Poller samples a source until two consecutive samples separated by a quiet
// interval agree, or the timeout elapses.
type Poller struct {
	cfg    Config
	clock  clock.Clock
	logger *zap.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l.Named("poller")
		}
	}
}

// New creates a poller.
func New(cfg Config, opts ...Option) *Poller {
	p := &Poller{
		cfg:    cfg.withDefaults(),
		clock:  clock.Real{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective intervals.
func (p *Poller) Config() Config { return p.cfg }

// session holds the mutable state of one Poll call.
type session struct {
	p     *Poller
	src   Source
	start time.Time
	res   Result
	last  string
}

func (s *session) sample(ctx context.Context) string {
	text, err := s.src.Snapshot(ctx)
	if err != nil {
		// A failed read counts as an empty sample.
		s.p.logger.Debug("Sample read failed.", zap.Error(err))
		text = ""
	}
	s.res.Samples = append(s.res.Samples, Sample{At: s.p.clock.Now(), Text: text})
	return text
}

func (s *session) expired() bool {
	return s.p.clock.Now().Sub(s.start) >= s.p.cfg.Timeout
}

func (s *session) finish(text string, settled bool) Result {
	s.res.Text = text
	s.res.Settled = settled
	s.res.Elapsed = s.p.clock.Now().Sub(s.start)
	return s.res
}

// Poll runs the quiescence decision over src. A timeout is not an error: the
// result carries Settled=false and the last sample. Context cancellation
// returns the last sample together with ctx.Err().
func (p *Poller) Poll(ctx context.Context, src Source) (Result, error) {
	s := &session{p: p, src: src, start: p.clock.Now()}
	s.last = s.sample(ctx)
	state := StateUnstable

	for !s.expired() {
		if err := p.clock.Sleep(ctx, p.cfg.Interval); err != nil {
			return s.finish(s.last, false), err
		}
		now := s.sample(ctx)

		var confirm time.Duration
		switch {
		case now == "":
			s.last = ""
			state = StateUnstable
			continue
		case now != s.last:
			confirm = p.cfg.ChangedConfirm
		default:
			confirm = p.cfg.SteadyConfirm
		}

		state = StateTentative
		s.last = now
		if err := p.clock.Sleep(ctx, confirm); err != nil {
			return s.finish(s.last, false), err
		}
		after := s.sample(ctx)
		if after == now {
			state = StateSettled
			p.logger.Debug("Output settled.", zap.Int("samples", len(s.res.Samples)), zap.Stringer("state", state))
			return s.finish(after, true), nil
		}
		s.last = after
		state = StateUnstable
	}

	p.logger.Debug("Output did not settle before timeout.",
		zap.Duration("timeout", p.cfg.Timeout),
		zap.Int("samples", len(s.res.Samples)),
		zap.Stringer("state", state),
	)
	return s.finish(s.last, false), nil
}
