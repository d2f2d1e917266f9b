// internal/browser/cdp/context.go
package cdp

import (
	"context"
)

// CombineContext creates a new context derived from ctx1 that is canceled when
// either ctx1 or ctx2 is canceled. It inherits values from ctx1 only: ctx1 is
// the chromedp tab context carrying the CDP target, ctx2 carries the
// operation deadline.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
