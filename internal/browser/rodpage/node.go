// internal/browser/rodpage/node.go
package rodpage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"github.com/xkilldash9x/transcheck/internal/clock"
	"github.com/xkilldash9x/transcheck/internal/page"
)

const (
	snapshotJS = `() => {
	const tag = (this.tagName || "").toLowerCase();
	const v = (tag === "textarea" || tag === "input") ? this.value : this.textContent;
	return String(v || "").trim();
}`
	editableJS = `() => ["textarea", "input"].includes((this.tagName || "").toLowerCase())`
	fillJS     = `(text) => {
	this.focus();
	const tag = (this.tagName || "").toLowerCase();
	if (tag === "textarea" || tag === "input") {
		const desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(this), "value");
		if (desc && desc.set) { desc.set.call(this, text); } else { this.value = text; }
	} else {
		this.textContent = text;
	}
	this.dispatchEvent(new Event("input", { bubbles: true }));
	this.dispatchEvent(new Event("change", { bubbles: true }));
}`
)

// wrap classifies el by its tag.
func wrap(el *rod.Element) page.Node {
	res, err := el.Eval(editableJS)
	if err == nil && res.Value.Bool() {
		return &field{node{el: el, kind: page.KindEditable}}
	}
	return &node{el: el, kind: page.KindText}
}

type node struct {
	el   *rod.Element
	kind page.Kind
}

type elementer interface{ element() *rod.Element }

func (n *node) element() *rod.Element { return n.el }

func (n *node) Kind() page.Kind { return n.kind }

func (n *node) Snapshot(ctx context.Context) (string, error) {
	res, err := n.el.Context(ctx).Eval(snapshotJS)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (n *node) Visible(ctx context.Context) (bool, error) {
	return n.el.Context(ctx).Visible()
}

func (n *node) Same(ctx context.Context, other page.Node) (bool, error) {
	o, ok := other.(elementer)
	if !ok {
		return false, nil
	}
	return n.el.Context(ctx).Equal(o.element())
}

type field struct {
	node
}

func (f *field) Fill(ctx context.Context, text string) error {
	if _, err := f.el.Context(ctx).Eval(fillJS, text); err != nil {
		return fmt.Errorf("failed to fill field: %w", err)
	}
	return nil
}

// Type presses one key per rune at the caret of the focused field, so the
// page sees keydown, keypress, input and keyup. Runes without a key on a US
// layout are inserted as text instead.
func (f *field) Type(ctx context.Context, text string, delay time.Duration) error {
	el := f.el.Context(ctx)
	if err := el.Focus(); err != nil {
		return fmt.Errorf("failed to focus field: %w", err)
	}
	pg := el.Page()
	var c clock.Real
	for _, r := range text {
		var err error
		if key, ok := keyFor(r); ok {
			err = pg.Keyboard.Type(key)
		} else {
			err = pg.InsertText(string(r))
		}
		if err != nil {
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

// keyFor maps printable ASCII runes to their key on a US layout.
func keyFor(r rune) (input.Key, bool) {
	if r < ' ' || r > '~' {
		return 0, false
	}
	return input.Key(r), true
}
