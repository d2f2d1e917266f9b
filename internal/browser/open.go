// internal/browser/open.go
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/browser/cdp"
	"github.com/xkilldash9x/transcheck/internal/browser/pwpage"
	"github.com/xkilldash9x/transcheck/internal/browser/rodpage"
	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/page"
)

// Opener starts a page driver. Tests substitute their own.
type Opener func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (page.Driver, error)

// Open starts the driver named by cfg.Driver.
func Open(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (page.Driver, error) {
	var (
		d   page.Driver
		err error
	)
	switch cfg.Driver {
	case config.DriverChromedp, "":
		d, err = unwrap(cdp.New(ctx, cfg, logger))
	case config.DriverPlaywright:
		d, err = unwrap(pwpage.New(ctx, cfg, logger))
	case config.DriverRod:
		d, err = unwrap(rodpage.New(ctx, cfg, logger))
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// unwrap keeps a failed constructor's nil pointer out of the interface.
func unwrap[D page.Driver](d D, err error) (page.Driver, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}
