// internal/browser/cdp/driver.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/page"
)

// Driver runs pages as tabs of one Chrome instance driven over the DevTools protocol.
type Driver struct {
	cfg    config.BrowserConfig
	sel    page.Selectors
	logger *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	pages  map[string]*Page
	closed bool
}

// New starts (or attaches to) the browser. A configured control URL attaches
// to a running instance instead of launching one.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		cfg:    cfg,
		sel:    cfg.Selectors.WithDefaults(),
		logger: logger.Named("driver.cdp"),
		pages:  make(map[string]*Page),
	}
	if _, err := d.sel.ClearPattern(); err != nil {
		return nil, err
	}

	// The allocator outlives the caller's context; Close tears it down.
	base := context.WithoutCancel(ctx)
	if cfg.ControlURL != "" {
		d.allocCtx, d.allocCancel = chromedp.NewRemoteAllocator(base, cfg.ControlURL)
	} else {
		d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(base, AllocatorOptions(cfg)...)
	}
	d.browserCtx, d.browserCancel = chromedp.NewContext(d.allocCtx,
		chromedp.WithLogf(d.logger.Sugar().Debugf),
		chromedp.WithErrorf(d.logger.Sugar().Debugf),
	)

	// Running with no actions starts the browser.
	startCtx, cancel := CombineContext(d.browserCtx, ctx)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		d.browserCancel()
		d.allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	d.logger.Info("Browser started.", zap.Bool("headless", cfg.Headless), zap.Bool("remote", cfg.ControlURL != ""))
	return d, nil
}

// NewPage opens a fresh tab.
func (d *Driver) NewPage(ctx context.Context) (page.Page, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errors.New("driver is closed")
	}
	d.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(d.browserCtx)
	startCtx, cancel := CombineContext(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	p := &Page{
		id:          uuid.NewString(),
		ctx:         tabCtx,
		cancel:      tabCancel,
		sel:         d.sel,
		clearJS:     clickClearJS(d.sel.JSClearPattern()),
		navTimeout:  d.cfg.NavigationTimeout,
		logger:      d.logger,
	}
	p.onClose = func() {
		d.mu.Lock()
		delete(d.pages, p.id)
		d.mu.Unlock()
	}

	d.mu.Lock()
	d.pages[p.id] = p
	d.mu.Unlock()
	d.logger.Debug("Tab opened.", zap.String("page_id", p.id))
	return p, nil
}

// Close closes open tabs and shuts the browser down.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	open := make([]*Page, 0, len(d.pages))
	for _, p := range d.pages {
		open = append(open, p)
	}
	d.mu.Unlock()

	for _, p := range open {
		if err := p.Close(ctx); err != nil {
			d.logger.Warn("Failed to close tab during shutdown.", zap.String("page_id", p.id), zap.Error(err))
		}
	}

	var err error
	if cerr := chromedp.Cancel(d.browserCtx); cerr != nil && !errors.Is(cerr, context.Canceled) {
		err = fmt.Errorf("failed to close browser: %w", cerr)
	}
	d.browserCancel()
	d.allocCancel()
	d.logger.Info("Browser closed.")
	return err
}
