// internal/runner/settings.go
package runner

import (
	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/extract"
	"github.com/xkilldash9x/transcheck/internal/poller"
	"github.com/xkilldash9x/transcheck/internal/resolver"
	"github.com/xkilldash9x/transcheck/internal/textnorm"
)

// ResolverSettings maps the resolver section of the configuration.
func ResolverSettings(c config.ResolverConfig) (resolver.Config, error) {
	rc := resolver.Config{
		Probe:        c.Probe,
		KeyDelay:     c.KeyDelay,
		Settle:       c.Settle,
		InputTimeout: c.InputTimeout,
	}
	if c.Script != "" {
		script, err := textnorm.LookupScript(c.Script)
		if err != nil {
			return resolver.Config{}, err
		}
		rc.Script = script
	}
	return rc, nil
}

// PollerSettings maps the poller section of the configuration.
func PollerSettings(c config.PollerConfig) poller.Config {
	return poller.Config{
		Interval:       c.Interval,
		ChangedConfirm: c.ChangedConfirm,
		SteadyConfirm:  c.SteadyConfirm,
		Timeout:        c.Timeout,
	}
}

// ExtractorSettings maps the extract section; unset fields keep the defaults.
func ExtractorSettings(c config.ExtractConfig) extract.Extractor {
	e := extract.New()
	if c.Label != "" {
		e.Label = c.Label
	}
	if c.Markers != nil {
		e.Markers = append([]string(nil), c.Markers...)
	}
	e.OversizeChars = c.OversizeChars
	return e
}
