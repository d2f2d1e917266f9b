// internal/browser/rodpage/driver.go
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/page"
)

// Driver drives pages through go-rod.
type Driver struct {
	cfg      config.BrowserConfig
	sel      page.Selectors
	logger   *zap.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser

	mu     sync.Mutex
	closed bool
}

// NewLauncher builds the launcher for a local browser from cfg.
func NewLauncher(cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().Headless(cfg.Headless).Leakless(false)
	if cfg.ExecPath != "" {
		l = l.Bin(cfg.ExecPath)
	}
	if cfg.IgnoreTLSErrors {
		l = l.Set("ignore-certificate-errors")
	}
	for _, raw := range cfg.Args {
		name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if name == "" {
			continue
		}
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// New connects to the configured control URL, or launches a browser first.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{cfg: cfg, sel: cfg.Selectors.WithDefaults(), logger: logger.Named("driver.rod")}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		d.launcher = NewLauncher(cfg)
		u, err := d.launcher.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := browser.Connect(); err != nil {
		d.kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	d.browser = browser
	d.logger.Info("Browser connected.", zap.Bool("headless", cfg.Headless), zap.Bool("remote", cfg.ControlURL != ""))
	return d, nil
}

func (d *Driver) NewPage(ctx context.Context) (page.Page, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, errors.New("driver is closed")
	}

	pg, err := d.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	// Detach the page from the opening context; later calls bind their own.
	pg = pg.Context(context.WithoutCancel(ctx))

	if w, h := d.cfg.Viewport["width"], d.cfg.Viewport["height"]; w > 0 && h > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{Width: w, Height: h, DeviceScaleFactor: 1}).Call(pg); err != nil {
			d.logger.Debug("Failed to set viewport.", zap.Error(err))
		}
	}
	return &Page{pg: pg, sel: d.sel, navTimeout: d.cfg.NavigationTimeout}, nil
}

func (d *Driver) Close(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var err error
	if d.browser != nil {
		if cerr := d.browser.Close(); cerr != nil {
			err = fmt.Errorf("failed to close browser: %w", cerr)
		}
	}
	d.kill()
	d.logger.Info("Browser closed.")
	return err
}

func (d *Driver) kill() {
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
	}
}

// Page wraps one rod page.
type Page struct {
	pg         *rod.Page
	sel        page.Selectors
	navTimeout time.Duration
}

var _ page.Page = (*Page)(nil)

func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.pg.Context(ctx)
	if p.navTimeout > 0 {
		pg = pg.Timeout(p.navTimeout)
	}
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	wait()
	return nil
}

func (p *Page) FirstEditable(ctx context.Context, timeout time.Duration) (page.Field, error) {
	deadline := time.Now().Add(timeout)
	for {
		els, err := p.pg.Context(ctx).Elements(p.sel.Editable)
		if err != nil {
			return nil, fmt.Errorf("failed to query input fields: %w", err)
		}
		for _, el := range els {
			if ok, err := el.Visible(); err == nil && ok {
				return &field{node{el: el, kind: page.KindEditable}}, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, page.ErrInputNotFound
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (p *Page) Candidates(ctx context.Context) ([]page.Node, error) {
	els, err := p.pg.Context(ctx).Elements(p.sel.Candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	nodes := make([]page.Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, wrap(el))
	}
	return nodes, nil
}

func (p *Page) FirstReadOnly(ctx context.Context) (page.Node, error) {
	els, err := p.pg.Context(ctx).Elements(p.sel.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query read-only field: %w", err)
	}
	if len(els) == 0 {
		return nil, nil
	}
	return wrap(els.First()), nil
}

func (p *Page) Body(ctx context.Context) (page.Node, error) {
	el, err := p.pg.Context(ctx).Element("body")
	if err != nil {
		return nil, fmt.Errorf("failed to get body: %w", err)
	}
	return &node{el: el, kind: page.KindContainer}, nil
}

// ClickClear tries a text match first, then the accessible label.
func (p *Page) ClickClear(ctx context.Context) (bool, error) {
	pg := p.pg.Context(ctx).Sleeper(rod.NotFoundSleeper)
	el, err := pg.ElementR("button", p.sel.JSClearPattern())
	if err != nil {
		var nf *rod.ElementNotFoundError
		if !errors.As(err, &nf) {
			return false, fmt.Errorf("failed to find clear control: %w", err)
		}
		res, err := pg.Eval(clickLabeledJS, p.sel.JSClearPattern())
		if err != nil {
			return false, fmt.Errorf("failed to click clear control: %w", err)
		}
		return res.Value.Bool(), nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
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

// clickLabeledJS receives the pattern as a regex literal string.
const clickLabeledJS = `(literal) => {
	const m = literal.match(/^\/(.*)\/([a-z]*)$/);
	const re = new RegExp(m[1], m[2]);
	for (const b of document.querySelectorAll("button, [role=button]")) {
		const name = b.getAttribute("aria-label") || b.title || "";
		if (re.test(name)) { b.click(); return true; }
	}
	return false;
}`
