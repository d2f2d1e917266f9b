// internal/browser/pwpage/page.go
package pwpage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/transcheck/internal/clock"
	"github.com/xkilldash9x/transcheck/internal/page"
)

// Page wraps one Playwright page.
type Page struct {
	pg         playwright.Page
	sel        page.Selectors
	navTimeout time.Duration
}

var _ page.Page = (*Page)(nil)

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.pg.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(ctx, p.navTimeout),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *Page) FirstEditable(ctx context.Context, timeout time.Duration) (page.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := p.pg.Locator(p.sel.Editable + " >> visible=true").First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(ctx, timeout),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return nil, page.ErrInputNotFound
		}
		return nil, fmt.Errorf("failed waiting for input field: %w", err)
	}
	h, err := loc.ElementHandle()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input field: %w", err)
	}
	return &field{node{h: h, pg: p.pg, kind: page.KindEditable}}, nil
}

func (p *Page) Candidates(ctx context.Context) ([]page.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := p.pg.Locator(p.sel.Candidates).ElementHandles()
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	nodes := make([]page.Node, 0, len(handles))
	for _, h := range handles {
		nodes = append(nodes, p.wrap(h))
	}
	return nodes, nil
}

func (p *Page) FirstReadOnly(ctx context.Context) (page.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := p.pg.QuerySelector(p.sel.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query read-only field: %w", err)
	}
	if h == nil {
		return nil, nil
	}
	return p.wrap(h), nil
}

func (p *Page) Body(ctx context.Context) (page.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := p.pg.QuerySelector("body")
	if err != nil || h == nil {
		return nil, fmt.Errorf("failed to get body: %w", errors.Join(err, errors.New("no body element")))
	}
	return &node{h: h, pg: p.pg, kind: page.KindContainer}, nil
}

func (p *Page) ClickClear(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	re, err := p.sel.ClearPattern()
	if err != nil {
		return false, err
	}
	btn := p.pg.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: re}).First()
	n, err := btn.Count()
	if err != nil {
		return false, fmt.Errorf("failed to find clear control: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if err := btn.Click(); err != nil {
		return true, fmt.Errorf("failed to click clear control: %w", err)
	}
	return true, nil
}

func (p *Page) Close(context.Context) error {
	if err := p.pg.Close(); err != nil {
		return fmt.Errorf("failed to close page: %w", err)
	}
	return nil
}

func (p *Page) wrap(h playwright.ElementHandle) page.Node {
	tag, err := h.Evaluate("el => (el.tagName || '').toLowerCase()")
	if s, ok := tag.(string); err == nil && ok && (s == "textarea" || s == "input") {
		return &field{node{h: h, pg: p.pg, kind: page.KindEditable}}
	}
	return &node{h: h, pg: p.pg, kind: page.KindText}
}

type node struct {
	h    playwright.ElementHandle
	pg   playwright.Page
	kind page.Kind
}

type handler interface{ handle() playwright.ElementHandle }

func (n *node) handle() playwright.ElementHandle { return n.h }

func (n *node) Kind() page.Kind { return n.kind }

func (n *node) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if n.kind == page.KindEditable {
		// InputValue rejects rich-text editors; those fall through to text content.
		if v, err := n.h.InputValue(); err == nil {
			return strings.TrimSpace(v), nil
		}
	}
	v, err := n.h.TextContent()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

func (n *node) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return n.h.IsVisible()
}

func (n *node) Same(ctx context.Context, other page.Node) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	o, ok := other.(handler)
	if !ok {
		return false, nil
	}
	v, err := n.h.Evaluate("(el, other) => el === other", o.handle())
	if err != nil {
		return false, err
	}
	same, _ := v.(bool)
	return same, nil
}

type field struct {
	node
}

func (f *field) Fill(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.h.Fill(text); err != nil {
		return fmt.Errorf("failed to fill field: %w", err)
	}
	return nil
}

// Type presses one rune at a time into the focused field. Playwright sends
// key events for runes on the keyboard layout and inserts the rest as text.
func (f *field) Type(ctx context.Context, text string, delay time.Duration) error {
	if err := f.h.Focus(); err != nil {
		return fmt.Errorf("failed to focus field: %w", err)
	}
	kb := f.pg.Keyboard()
	var c clock.Real
	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := kb.Type(string(r)); err != nil {
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
