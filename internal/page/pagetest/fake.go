// internal/page/pagetest/fake.go
package pagetest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/transcheck/internal/page"
)

// Element is an in-memory DOM element. It implements page.Field.
type Element struct {
	Name   string
	Hidden bool
	kind   page.Kind
	owner  *Page

	text string
}

// NewElement creates a detached element; add it to a Page with Add.
func NewElement(name string, kind page.Kind, text string) *Element {
	return &Element{Name: name, kind: kind, text: text}
}

func (e *Element) Kind() page.Kind { return e.kind }

func (e *Element) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.owner != nil && e.kind == page.KindContainer && e == e.owner.body {
		return e.owner.bodyText(), nil
	}
	e.lock()
	defer e.unlock()
	return strings.TrimSpace(e.text), nil
}

func (e *Element) Visible(context.Context) (bool, error) {
	e.lock()
	defer e.unlock()
	return !e.Hidden, nil
}

func (e *Element) Same(_ context.Context, other page.Node) (bool, error) {
	o, ok := other.(*Element)
	return ok && o == e, nil
}

func (e *Element) Fill(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.SetText(text)
	e.notify()
	return nil
}

func (e *Element) Type(ctx context.Context, text string, delay time.Duration) error {
	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.lock()
		e.text += string(r)
		e.unlock()
		if e.owner != nil {
			e.owner.mu.Lock()
			e.owner.Keys++
			e.owner.mu.Unlock()
		}
		e.notify()
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return nil
}

// Text returns the raw content.
func (e *Element) Text() string {
	e.lock()
	defer e.unlock()
	return e.text
}

// SetText replaces the content without firing input events.
func (e *Element) SetText(s string) {
	e.lock()
	e.text = s
	e.unlock()
}

func (e *Element) notify() {
	if e.owner == nil || e != e.owner.input || e.owner.OnInput == nil {
		return
	}
	e.owner.OnInput(e.Text())
}

func (e *Element) lock() {
	if e.owner != nil {
		e.owner.mu.Lock()
	}
}

func (e *Element) unlock() {
	if e.owner != nil {
		e.owner.mu.Unlock()
	}
}

// Page is an in-memory page.Page.
type Page struct {
	mu sync.Mutex

	input    *Element
	elements []*Element
	readOnly *Element
	body     *Element

	// HasClear makes ClickClear find a clear control, which empties the input.
	HasClear bool
	// OnInput runs after every input event with the current input value.
	OnInput func(value string)
	// BodyExtra is appended to the body text after the element texts.
	BodyExtra string

	NavigateErr error
	URLs        []string
	ClearClicks int
	Keys        int
	Closed      bool
}

// New creates an empty page.
func New() *Page {
	p := &Page{}
	p.body = &Element{Name: "body", kind: page.KindContainer, owner: p}
	return p
}

// Add appends elements to the document in order.
func (p *Page) Add(els ...*Element) *Page {
	for _, e := range els {
		e.owner = p
		p.elements = append(p.elements, e)
	}
	return p
}

// SetInput marks e as the editable field returned by FirstEditable.
func (p *Page) SetInput(e *Element) *Page {
	e.owner = p
	p.input = e
	return p
}

// SetReadOnly marks e as the field returned by FirstReadOnly.
func (p *Page) SetReadOnly(e *Element) *Page {
	e.owner = p
	p.readOnly = e
	return p
}

// Input returns the editable element.
func (p *Page) Input() *Element { return p.input }

func (p *Page) bodyText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	parts := make([]string, 0, len(p.elements)+1)
	for _, e := range p.elements {
		if !e.Hidden && e.text != "" {
			parts = append(parts, e.text)
		}
	}
	if p.BodyExtra != "" {
		parts = append(parts, p.BodyExtra)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.URLs = append(p.URLs, url)
	return p.NavigateErr
}

func (p *Page) FirstEditable(ctx context.Context, _ time.Duration) (page.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.input == nil || p.input.Hidden {
		return nil, page.ErrInputNotFound
	}
	return p.input, nil
}

func (p *Page) Candidates(ctx context.Context) ([]page.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes := make([]page.Node, 0, len(p.elements))
	for _, e := range p.elements {
		nodes = append(nodes, e)
	}
	return nodes, nil
}

func (p *Page) FirstReadOnly(context.Context) (page.Node, error) {
	if p.readOnly == nil {
		return nil, nil
	}
	return p.readOnly, nil
}

func (p *Page) Body(context.Context) (page.Node, error) {
	return p.body, nil
}

func (p *Page) ClickClear(ctx context.Context) (bool, error) {
	if !p.HasClear {
		return false, nil
	}
	p.mu.Lock()
	p.ClearClicks++
	p.mu.Unlock()
	if p.input != nil {
		if err := p.input.Fill(ctx, ""); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (p *Page) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Driver hands out pages built by a factory.
type Driver struct {
	mu      sync.Mutex
	Factory func() *Page
	Pages   []*Page
	Closed  bool
}

func (d *Driver) NewPage(ctx context.Context) (page.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := d.Factory()
	d.mu.Lock()
	d.Pages = append(d.Pages, p)
	d.mu.Unlock()
	return p, nil
}

func (d *Driver) Close(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// Translator builds a typical translator page: a textarea input, an output
// div updated through translate on every input event, some static chrome and
// a clear button.
func Translator(translate func(string) string) *Page {
	p := New()
	header := NewElement("header", page.KindText, "English")
	input := NewElement("input", page.KindEditable, "")
	label := NewElement("label", page.KindText, "Sinhala")
	output := NewElement("output", page.KindText, "")
	p.Add(header, input, label, output)
	p.SetInput(input)
	p.HasClear = true
	p.OnInput = func(v string) {
		output.SetText(translate(v))
	}
	return p
}

// Element returns the element named name, or nil.
func (p *Page) Element(name string) *Element {
	for _, e := range p.elements {
		if e.Name == name {
			return e
		}
	}
	return nil
}
