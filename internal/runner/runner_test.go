// internal/runner/runner_test.go
package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/transcheck/internal/caseload"
	"github.com/xkilldash9x/transcheck/internal/clock"
	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/page"
	"github.com/xkilldash9x/transcheck/internal/page/pagetest"
	"github.com/xkilldash9x/transcheck/internal/results"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var dictionary = map[string]string{
	"oba suvendha?":        "ඔබ සුවෙන්ද?",
	"mama gedhara yanavaa": "මම ගෙදර යනවා",
	"mata hari mahansiyi":  "මට හරි මහන්සියි",
}

func translate(v string) string { return dictionary[v] }

const suiteCSV = `TC ID,Test case name,Input length type,Input,Expected output
Pos_Fun_0001,simple sentence,S,mama gedhara yanavaa,මම ගෙදර යනවා
Neg_Fun_0001,english residue,S,mata hari mahansiyi,mahansiyi.
Pos_Fun_0002,wrong expectation,S,mama gedhara yanavaa,මම පාසල් යනවා
Pos_UI_0001,not functional,S,x,y
`

func writeCases(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newConfig(t *testing.T, casesPath string) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.CasesCfg.Path = casesPath
	cfg.RunnerCfg.KeyDelay = time.Microsecond
	cfg.ResolverCfg.KeyDelay = -1
	return cfg
}

func newRunner(t *testing.T, cfg config.Interface, d page.Driver, opts ...Option) (*Runner, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake()
	r, err := New(cfg, d, append([]Option{WithClock(fc)}, opts...)...)
	require.NoError(t, err)
	return r, fc
}

func translatorDriver() *pagetest.Driver {
	return &pagetest.Driver{Factory: func() *pagetest.Page { return pagetest.Translator(translate) }}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(nil, translatorDriver())
	assert.Error(t, err)
	_, err = New(config.NewDefaultConfig(), nil)
	assert.Error(t, err)

	cfg := config.NewDefaultConfig()
	cfg.RunnerCfg.Filter = "("
	_, err = New(cfg, translatorDriver())
	assert.ErrorContains(t, err, "invalid case filter")
}

func TestRunSuite(t *testing.T) {
	path := writeCases(t, suiteCSV)
	d := translatorDriver()
	r, fc := newRunner(t, newConfig(t, path), d)

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 5)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "cases", run.Sheet)
	assert.Equal(t, "https://www.swifttranslator.com/", run.Target)

	src, sheet := run.Outcomes[0], run.Outcomes[1]
	assert.Equal(t, "Excel source: "+path, src.Title)
	assert.True(t, src.Pass)
	assert.Equal(t, "Sheet used: cases | Loaded 3 functional cases", sheet.Title)
	assert.True(t, sheet.Pass)

	pos := run.Outcomes[2]
	assert.Equal(t, "001 | Pos_Fun_0001 | row_2", pos.Title)
	assert.True(t, pos.Pass, pos.Message)
	assert.Equal(t, "මම ගෙදර යනවා", pos.Raw)
	assert.Equal(t, "මම ගෙදර යනවා", pos.Extracted)
	assert.Equal(t, "contains", pos.Rule)
	assert.Equal(t, "probe", pos.Resolution)
	assert.Equal(t, "text", pos.OutputKind)
	assert.True(t, pos.Settled)

	neg := run.Outcomes[3]
	assert.Equal(t, "002 | Neg_Fun_0001 | row_3", neg.Title)
	assert.True(t, neg.Pass)
	assert.Equal(t, "not_contains", neg.Rule)
	assert.Equal(t, "mahansiyi", neg.ExpectedNorm)

	wrong := run.Outcomes[4]
	assert.False(t, wrong.Pass)
	assert.Equal(t, "fail", wrong.Status())
	assert.Empty(t, wrong.Error)

	assert.False(t, run.Passed())
	s := run.Summary()
	assert.Equal(t, 4, s.Passed)
	assert.Equal(t, 1, s.Failed)

	require.Len(t, d.Pages, 3, "one fresh page per case")
	for _, p := range d.Pages {
		assert.True(t, p.Closed)
		assert.Equal(t, []string{"https://www.swifttranslator.com/"}, p.URLs)
		assert.Equal(t, 3, p.ClearClicks, "cleared twice by the resolver and once before typing")
	}
	assert.Contains(t, fc.Slept(), 1200*time.Millisecond, "post-load pause")
}

func TestRunCaseAttachments(t *testing.T) {
	path := writeCases(t, suiteCSV)
	r, _ := newRunner(t, newConfig(t, path), translatorDriver())

	o := r.RunCase(context.Background(), 0, caseload.Case{
		ID: "Pos_Fun_0001", Input: "mama gedhara yanavaa", Expected: "මම ගෙදර යනවා", Row: 2,
	})
	require.Len(t, o.Attachments, 4)

	want := map[string]string{
		results.AttachInput:       "mama gedhara yanavaa",
		results.AttachExpected:    "මම ගෙදර යනවා",
		results.AttachActualRaw:   "මම ගෙදර යනවා",
		results.AttachActualFinal: "මම ගෙදර යනවා",
	}
	for name, body := range want {
		a, ok := o.Attachment(name)
		require.True(t, ok, name)
		assert.Equal(t, body, string(a.Body), name)
		assert.Equal(t, results.ContentTypeText, a.ContentType)
	}
}

func TestRunMissingSource(t *testing.T) {
	r, _ := newRunner(t, newConfig(t, filepath.Join(t.TempDir(), "missing.xlsx")), translatorDriver())

	run, err := r.Run(context.Background())
	require.ErrorIs(t, err, caseload.ErrSourceNotFound)
	require.Len(t, run.Outcomes, 1)
	assert.False(t, run.Outcomes[0].Pass)
	assert.False(t, run.Passed())
}

func TestRunHeaderNotFound(t *testing.T) {
	path := writeCases(t, "a,b,c\n1,2,3\n")
	d := translatorDriver()
	r, _ := newRunner(t, newConfig(t, path), d)

	run, err := r.Run(context.Background())
	require.ErrorIs(t, err, caseload.ErrHeaderNotFound)
	require.Len(t, run.Outcomes, 2)
	assert.True(t, run.Outcomes[0].Pass)
	assert.False(t, run.Outcomes[1].Pass)
	assert.Contains(t, run.Outcomes[1].Message, "header row not found")
	assert.Empty(t, d.Pages, "no case runs after a load failure")
}

func TestRunNoFunctionalCases(t *testing.T) {
	path := writeCases(t, "TC ID,Input,Expected output\nPos_UI_0001,x,y\n")
	r, _ := newRunner(t, newConfig(t, path), translatorDriver())

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 2)
	assert.False(t, run.Outcomes[1].Pass)
	assert.Equal(t, "Sheet used: cases | Loaded 0 functional cases", run.Outcomes[1].Title)
}

func TestRunInputNotFoundFailsOnlyThatCase(t *testing.T) {
	path := writeCases(t, suiteCSV)
	var mu sync.Mutex
	n := 0
	d := &pagetest.Driver{Factory: func() *pagetest.Page {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n == 2 {
			return pagetest.New()
		}
		return pagetest.Translator(translate)
	}}
	r, _ := newRunner(t, newConfig(t, path), d)

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, run.Outcomes[2].Pass)
	assert.Equal(t, "error", run.Outcomes[3].Status())
	assert.Contains(t, run.Outcomes[3].Error, page.ErrInputNotFound.Error())
	assert.Equal(t, "fail", run.Outcomes[4].Status())
}

func TestRunNavigationError(t *testing.T) {
	path := writeCases(t, "TC ID,Input,Expected output\nPos_Fun_0001,mama gedhara yanavaa,\n")
	d := &pagetest.Driver{Factory: func() *pagetest.Page {
		p := pagetest.Translator(translate)
		p.NavigateErr = assert.AnError
		return p
	}}
	r, _ := newRunner(t, newConfig(t, path), d)

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	o := run.Outcomes[2]
	assert.Equal(t, "error", o.Status())
	assert.True(t, d.Pages[0].Closed)
}

func TestRunContainerFallbackExtracts(t *testing.T) {
	path := writeCases(t, "TC ID,Input,Expected output\nPos_Fun_0001,mama,MAMA\n")
	d := &pagetest.Driver{Factory: func() *pagetest.Page {
		return pagetest.Translator(strings.ToUpper)
	}}
	core, logs := observer.New(zap.DebugLevel)
	r, _ := newRunner(t, newConfig(t, path), d, WithLogger(zap.New(core)))

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	o := run.Outcomes[2]
	assert.Equal(t, "container", o.Resolution)
	assert.Equal(t, "container", o.OutputKind)
	assert.Equal(t, "English mama Sinhala MAMA", o.Raw)
	assert.Equal(t, "MAMA", o.Extracted)
	assert.True(t, o.Pass)
	assert.Equal(t, 1, run.Summary().Fallback)

	assert.Equal(t, 1, logs.FilterMessage("Output field resolved through fallback.").Len())
	passed := logs.FilterMessage("Case passed.").All()
	require.Len(t, passed, 1)
	assert.Equal(t, "Pos_Fun_0001", passed[0].ContextMap()["case_id"])
}

func TestRunFilterKeepsTableOrder(t *testing.T) {
	path := writeCases(t, suiteCSV)
	cfg := newConfig(t, path)
	cfg.RunnerCfg.Filter = "^Pos_"
	cfg.RunnerCfg.Concurrency = 3
	d := translatorDriver()
	r, _ := newRunner(t, cfg, d)

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 4)
	assert.Equal(t, "001 | Pos_Fun_0001 | row_2", run.Outcomes[2].Title)
	assert.Equal(t, "003 | Pos_Fun_0002 | row_4", run.Outcomes[3].Title)
	assert.Len(t, d.Pages, 2)
}

func TestRunFailFast(t *testing.T) {
	csv := `TC ID,Input,Expected output
Pos_Fun_0001,mama gedhara yanavaa,nope
Pos_Fun_0002,mama gedhara yanavaa,මම
Pos_Fun_0003,mama gedhara yanavaa,මම
`
	cfg := newConfig(t, writeCases(t, csv))
	cfg.RunnerCfg.FailFast = true
	d := translatorDriver()
	r, _ := newRunner(t, cfg, d)

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 5)
	assert.Equal(t, "fail", run.Outcomes[2].Status())
	for _, o := range run.Outcomes[3:] {
		assert.Equal(t, "error", o.Status())
		assert.Contains(t, o.Error, "not run")
	}
	assert.Len(t, d.Pages, 1)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := newRunner(t, newConfig(t, writeCases(t, suiteCSV)), translatorDriver())

	run, err := r.Run(ctx)
	require.NoError(t, err)
	for _, o := range run.Outcomes[2:] {
		assert.Equal(t, "not run: suite canceled", o.Error)
	}
}

func TestRunListenerReceivesCopies(t *testing.T) {
	var got []results.Outcome
	r, _ := newRunner(t, newConfig(t, writeCases(t, suiteCSV)), translatorDriver(),
		WithListener(func(o results.Outcome) {
			if len(o.Attachments) > 0 {
				o.Attachments[0].Body[0] = 'X'
			}
			got = append(got, o)
		}))

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, got, len(run.Outcomes))
	a, ok := run.Outcomes[2].Attachment(results.AttachInput)
	require.True(t, ok)
	assert.Equal(t, "mama gedhara yanavaa", string(a.Body))
}

func TestRunNavigationRate(t *testing.T) {
	cfg := newConfig(t, writeCases(t, suiteCSV))
	cfg.RunnerCfg.NavigationRate = 1000
	cfg.RunnerCfg.NavigationBurst = 0
	r, _ := newRunner(t, cfg, translatorDriver())
	require.NotNil(t, r.limiter)
	assert.Equal(t, 1, r.limiter.Burst())

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, run.Outcomes, 5)
}
