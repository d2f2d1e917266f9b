// internal/browser/cdp/page.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/clock"
	"github.com/xkilldash9x/transcheck/internal/page"
)

const pollInterval = 100 * time.Millisecond

// ref is the decoded form of a registry entry.
type ref struct {
	I int  `json:"i"`
	E bool `json:"e"`
}

// Page is a single Chrome tab.
type Page struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	sel        page.Selectors
	clearJS    string
	navTimeout time.Duration
	logger     *zap.Logger

	onClose   func()
	closeOnce sync.Once
	closeErr  error
}

var _ page.Page = (*Page)(nil)

// run executes actions on the tab, bounded by the caller's context as well.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (p *Page) eval(ctx context.Context, js string, res any) error {
	return p.run(ctx, chromedp.Evaluate(js, res))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx := ctx
	if p.navTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, p.navTimeout)
		defer cancel()
	}
	if err := p.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	p.logger.Debug("Navigated.", zap.String("page_id", p.id), zap.String("url", url))
	return nil
}

func (p *Page) FirstEditable(ctx context.Context, timeout time.Duration) (page.Field, error) {
	var pos int
	err := p.run(ctx, chromedp.Poll(firstVisibleJS(p.sel.Editable), &pos,
		chromedp.WithPollingTimeout(timeout),
		chromedp.WithPollingInterval(pollInterval),
	))
	if err != nil {
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return nil, page.ErrInputNotFound
		}
		return nil, fmt.Errorf("failed waiting for input field: %w", err)
	}
	if pos <= 0 {
		return nil, page.ErrInputNotFound
	}
	return &field{node{p: p, idx: pos - 1, kind: page.KindEditable}}, nil
}

func (p *Page) Candidates(ctx context.Context) ([]page.Node, error) {
	var refs []ref
	if err := p.eval(ctx, queryAllJS(p.sel.Candidates), &refs); err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	nodes := make([]page.Node, 0, len(refs))
	for _, r := range refs {
		nodes = append(nodes, p.nodeFor(r))
	}
	return nodes, nil
}

func (p *Page) FirstReadOnly(ctx context.Context) (page.Node, error) {
	var r ref
	if err := p.eval(ctx, queryFirstJS(p.sel.ReadOnly), &r); err != nil {
		return nil, fmt.Errorf("failed to query read-only field: %w", err)
	}
	if r.I < 0 {
		return nil, nil
	}
	return p.nodeFor(r), nil
}

func (p *Page) Body(ctx context.Context) (page.Node, error) {
	var idx int
	if err := p.eval(ctx, bodyJS(), &idx); err != nil {
		return nil, fmt.Errorf("failed to get body: %w", err)
	}
	if idx < 0 {
		return nil, errors.New("document has no body")
	}
	return &node{p: p, idx: idx, kind: page.KindContainer}, nil
}

func (p *Page) ClickClear(ctx context.Context) (bool, error) {
	var clicked bool
	if err := p.eval(ctx, p.clearJS, &clicked); err != nil {
		return false, fmt.Errorf("failed to click clear control: %w", err)
	}
	return clicked, nil
}

// Close closes the tab. It is safe to call more than once.
func (p *Page) Close(context.Context) error {
	p.closeOnce.Do(func() {
		if err := chromedp.Cancel(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.closeErr = fmt.Errorf("failed to close tab: %w", err)
		}
		p.cancel()
		if p.onClose != nil {
			p.onClose()
		}
	})
	return p.closeErr
}

func (p *Page) nodeFor(r ref) page.Node {
	if r.E {
		return &field{node{p: p, idx: r.I, kind: page.KindEditable}}
	}
	return &node{p: p, idx: r.I, kind: page.KindText}
}

// node is an index into the tab's element registry.
type node struct {
	p    *Page
	idx  int
	kind page.Kind
}

func (n *node) handle() *node { return n }

type handled interface{ handle() *node }

func (n *node) Kind() page.Kind { return n.kind }

func (n *node) Snapshot(ctx context.Context) (string, error) {
	var text string
	if err := n.p.eval(ctx, snapshotJS(n.idx), &text); err != nil {
		return "", err
	}
	return text, nil
}

func (n *node) Visible(ctx context.Context) (bool, error) {
	var ok bool
	if err := n.p.eval(ctx, visibleJS(n.idx), &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (n *node) Same(_ context.Context, other page.Node) (bool, error) {
	h, ok := other.(handled)
	if !ok {
		return false, nil
	}
	o := h.handle()
	return o.p == n.p && o.idx == n.idx, nil
}

// field is an editable node.
type field struct {
	node
}

func (f *field) Fill(ctx context.Context, text string) error {
	if err := f.p.eval(ctx, fillJS(f.idx, text), nil); err != nil {
		return fmt.Errorf("failed to fill field: %w", err)
	}
	return nil
}

// Type focuses the field and dispatches one key event per rune. Runes without
// a key on a US layout are inserted as text instead.
func (f *field) Type(ctx context.Context, text string, delay time.Duration) error {
	if err := f.p.eval(ctx, focusJS(f.idx), nil); err != nil {
		return fmt.Errorf("failed to focus field: %w", err)
	}
	var c clock.Real
	for _, r := range text {
		var action chromedp.Action = chromedp.KeyEvent(string(r))
		if r > unicode.MaxASCII {
			action = input.InsertText(string(r))
		}
		if err := f.p.run(ctx, action); err != nil {
			return fmt.Errorf("failed to type %q: %w", r, err)
		}
		if delay > 0 {
			if err := c.Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}
