// internal/browser/pwpage/driver.go
package pwpage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/page"
)

// Driver drives Chromium through Playwright.
type Driver struct {
	cfg     config.BrowserConfig
	sel     page.Selectors
	logger  *zap.Logger
	pw      *playwright.Playwright
	browser playwright.Browser

	mu     sync.Mutex
	closed bool
}

const (
	installTimeout = 5 * time.Minute
	launchTimeout  = 60 * time.Second
)

// defaultArgs keep Chromium stable in containers.
var defaultArgs = []string{
	"--disable-gpu",
	"--no-sandbox",
	"--disable-dev-shm-usage",
}

// LaunchOptions maps cfg onto Playwright's launch options.
func LaunchOptions(cfg config.BrowserConfig) playwright.BrowserTypeLaunchOptions {
	args := append([]string(nil), defaultArgs...)
	if cfg.IgnoreTLSErrors {
		args = append(args, "--ignore-certificate-errors")
	}
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     append(args, cfg.Args...),
		Timeout:  playwright.Float(float64(launchTimeout.Milliseconds())),
	}
	if cfg.ExecPath != "" {
		opts.ExecutablePath = playwright.String(cfg.ExecPath)
	}
	return opts
}

// PageOptions maps cfg onto the options of every new page.
func PageOptions(cfg config.BrowserConfig) playwright.BrowserNewPageOptions {
	opts := playwright.BrowserNewPageOptions{IgnoreHttpsErrors: playwright.Bool(cfg.IgnoreTLSErrors)}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts.Viewport = &playwright.Size{Width: w, Height: h}
	}
	return opts
}

// New starts the Playwright driver and launches Chromium, or attaches over CDP
// when a control URL is configured.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := &Driver{cfg: cfg, sel: cfg.Selectors.WithDefaults(), logger: logger.Named("driver.playwright")}

	if cfg.Install {
		if err := Install(ctx, d.logger); err != nil {
			return nil, err
		}
	}

	pw, err := playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true})
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	d.pw = pw

	if cfg.ControlURL != "" {
		d.browser, err = pw.Chromium.ConnectOverCDP(cfg.ControlURL)
	} else {
		d.browser, err = pw.Chromium.Launch(LaunchOptions(cfg))
	}
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	d.logger.Info("Browser started.", zap.Bool("headless", cfg.Headless), zap.String("version", d.browser.Version()))
	return d, nil
}

func (d *Driver) NewPage(ctx context.Context) (page.Page, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, errors.New("driver is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pg, err := d.browser.NewPage(PageOptions(d.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
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

	var errs []error
	if err := d.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}
	if err := d.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	d.logger.Info("Browser closed.")
	return errors.Join(errs...)
}

// Install downloads the Playwright driver and Chromium. It blocks until the
// download finishes, the install timeout passes or ctx is done.
func Install(ctx context.Context, logger *zap.Logger) error {
	logger.Info("Verifying Playwright browser installation...")
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			errc <- fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for playwright installation: %w", installCtx.Err())
	}
}

// ms converts a duration into Playwright's millisecond timeouts, bounded by
// the context deadline when there is one.
func ms(ctx context.Context, d time.Duration) *float64 {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); d <= 0 || left < d {
			d = left
		}
	}
	if d <= 0 {
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}
