// internal/uicheck/uicheck.go
package uicheck

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/clock"
	"github.com/xkilldash9x/transcheck/internal/page"
	"github.com/xkilldash9x/transcheck/internal/results"
	"github.com/xkilldash9x/transcheck/internal/textnorm"
)

// Check titles.
const (
	TitleLiveUpdate = "UI_0001 - Output updates while typing"
	TitleClear      = "UI_0002 - Clear input clears/changes output"
)

const (
	liveText     = "oba suvendha?"
	liveKeyDelay = 80 * time.Millisecond
	clearText    = "mata hari mahansiyi"
	clearWait    = 1500 * time.Millisecond

	defaultInputTimeout = 30 * time.Second
)

// liveChunks splits the typed text and the pause after each chunk.
var liveChunks = []struct {
	from, to int
	wait     time.Duration
}{
	{0, 5, 800 * time.Millisecond},
	{5, 10, 800 * time.Millisecond},
	{10, -1, 1200 * time.Millisecond},
}

// Opener returns a page with the target already loaded.
type Opener func(ctx context.Context) (page.Page, error)

// Checker runs the behavioural checks of the translator page.
type Checker struct {
	open         Opener
	clock        clock.Clock
	logger       *zap.Logger
	script       *unicode.RangeTable
	inputTimeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

func WithClock(c clock.Clock) Option { return func(k *Checker) { k.clock = c } }

func WithLogger(l *zap.Logger) Option {
	return func(k *Checker) {
		if l != nil {
			k.logger = l.Named("uicheck")
		}
	}
}

// WithScript sets the target-language script output is recognized by.
func WithScript(s *unicode.RangeTable) Option { return func(k *Checker) { k.script = s } }

func WithInputTimeout(d time.Duration) Option {
	return func(k *Checker) {
		if d > 0 {
			k.inputTimeout = d
		}
	}
}

// New creates a checker that opens pages through open.
func New(open Opener, opts ...Option) *Checker {
	k := &Checker{
		open:         open,
		clock:        clock.Real{},
		logger:       zap.NewNop(),
		script:       unicode.Sinhala,
		inputTimeout: defaultInputTimeout,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Run executes every check in order.
func (k *Checker) Run(ctx context.Context) []results.Outcome {
	return []results.Outcome{
		k.LiveUpdate(ctx),
		k.ClearResets(ctx),
	}
}

// LiveUpdate types a phrase in three chunks and passes when the final output
// is non-empty and the output changed between at least two consecutive samples.
func (k *Checker) LiveUpdate(ctx context.Context) results.Outcome {
	return k.check(ctx, 0, TitleLiveUpdate, func(ctx context.Context, p page.Page, input page.Field, o *results.Outcome) error {
		if err := input.Fill(ctx, ""); err != nil {
			return err
		}
		runes := []rune(liveText)
		samples := make([]string, 0, len(liveChunks))
		for _, ch := range liveChunks {
			to := ch.to
			if to < 0 || to > len(runes) {
				to = len(runes)
			}
			if err := input.Type(ctx, string(runes[ch.from:to]), liveKeyDelay); err != nil {
				return err
			}
			if err := k.clock.Sleep(ctx, ch.wait); err != nil {
				return err
			}
			out, err := ScanOutput(ctx, p, input, k.script)
			if err != nil {
				return err
			}
			samples = append(samples, out)
		}

		final := samples[len(samples)-1]
		changed := samples[0] != samples[1] || samples[1] != samples[2]
		o.Raw = final
		o.Pass = final != "" && changed
		switch {
		case final == "":
			o.Message = "no output after typing the full phrase"
		case !changed:
			o.Message = "output did not change while typing"
		}
		o.Attachments = append(o.Attachments, results.TextAttachment("Samples", strings.Join(samples, "\n")))
		return nil
	})
}

// ClearResets fills a phrase, then empties the input, and passes when the
// output became empty or at least changed.
func (k *Checker) ClearResets(ctx context.Context) results.Outcome {
	return k.check(ctx, 1, TitleClear, func(ctx context.Context, p page.Page, input page.Field, o *results.Outcome) error {
		if err := input.Fill(ctx, clearText); err != nil {
			return err
		}
		if err := k.clock.Sleep(ctx, clearWait); err != nil {
			return err
		}
		before, err := ScanOutput(ctx, p, input, k.script)
		if err != nil {
			return err
		}
		if before == "" {
			o.Message = "no output before clearing"
			return nil
		}

		if err := input.Fill(ctx, ""); err != nil {
			return err
		}
		if err := k.clock.Sleep(ctx, clearWait); err != nil {
			return err
		}
		after, err := ScanOutput(ctx, p, input, k.script)
		if err != nil {
			return err
		}

		o.Raw = after
		o.Pass = after == "" || after != before
		if !o.Pass {
			o.Message = "output unchanged after clearing the input"
		}
		o.Attachments = append(o.Attachments,
			results.TextAttachment("Output before clear", before),
			results.TextAttachment("Output after clear", after),
		)
		return nil
	})
}

type body func(ctx context.Context, p page.Page, input page.Field, o *results.Outcome) error

func (k *Checker) check(ctx context.Context, index int, title string, fn body) results.Outcome {
	o := results.Outcome{Index: index, Title: title, Kind: results.KindUI, StartedAt: k.clock.Now()}
	logger := k.logger.With(zap.String("check", title))

	err := func() error {
		p, err := k.open(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := p.Close(context.WithoutCancel(ctx)); cerr != nil {
				logger.Warn("Failed to close page.", zap.Error(cerr))
			}
		}()
		input, err := p.FirstEditable(ctx, k.inputTimeout)
		if err != nil {
			return err
		}
		return fn(ctx, p, input, &o)
	}()
	if err != nil {
		o.Pass = false
		o.Error = fmt.Sprintf("check could not be executed: %v", err)
		logger.Error("UI check could not be executed.", zap.Error(err))
	} else if o.Pass {
		logger.Info("UI check passed.")
	} else {
		logger.Warn("UI check failed.", zap.String("reason", o.Message))
	}
	o.Duration = k.clock.Now().Sub(o.StartedAt)
	return o
}

// ScanOutput reads what looks like the page's output without a resolved
// handle: the first candidate whose text differs from the input and contains
// script, else the first non-empty candidate that differs from the input.
// Visibility is not checked.
func ScanOutput(ctx context.Context, p page.Page, input page.Node, script *unicode.RangeTable) (string, error) {
	inputVal, err := input.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	inputVal = textnorm.Normalize(inputVal)

	nodes, err := p.Candidates(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to enumerate candidates: %w", err)
	}
	texts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		v, err := n.Snapshot(ctx)
		if err != nil {
			continue
		}
		v = textnorm.Normalize(v)
		if v == "" || v == inputVal {
			continue
		}
		if textnorm.ContainsScript(v, script) {
			return v, nil
		}
		texts = append(texts, v)
	}
	if len(texts) > 0 {
		return texts[0], nil
	}
	return "", nil
}
