// internal/browser/cdp/options.go
package cdp

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/transcheck/internal/config"
)

// Flag is one command line switch passed to the browser process.
type Flag struct {
	Name  string
	Value interface{}
}

// LaunchFlags computes the switches layered on top of chromedp's defaults.
func LaunchFlags(cfg config.BrowserConfig) []Flag {
	flags := []Flag{
		{"disable-gpu", true},
		{"no-sandbox", true},
		{"disable-dev-shm-usage", true},
	}
	if !cfg.Headless {
		flags = append(flags, Flag{"headless", false})
	}
	if cfg.IgnoreTLSErrors {
		flags = append(flags,
			Flag{"ignore-certificate-errors", true},
			Flag{"allow-insecure-localhost", true},
		)
	}
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			flags = append(flags, Flag{name, value})
		} else {
			flags = append(flags, Flag{name, true})
		}
	}
	return flags
}

// windowSize reads the viewport, falling back to 1280x720.
func windowSize(cfg config.BrowserConfig) (int, int) {
	w, h := cfg.Viewport["width"], cfg.Viewport["height"]
	if w <= 0 {
		w = 1280
	}
	if h <= 0 {
		h = 720
	}
	return w, h
}

// AllocatorOptions builds the exec allocator options for a local browser.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range LaunchFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	opts = append(opts, chromedp.WindowSize(windowSize(cfg)))
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
