// internal/uicheck/uicheck_test.go
package uicheck

import (
	"context"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/transcheck/internal/clock"
	"github.com/xkilldash9x/transcheck/internal/page"
	"github.com/xkilldash9x/transcheck/internal/page/pagetest"
	"github.com/xkilldash9x/transcheck/internal/results"
)

func live(v string) string {
	if v == "" {
		return ""
	}
	return "ස " + v
}

func opener(build func() *pagetest.Page, opened *[]*pagetest.Page) Opener {
	return func(ctx context.Context) (page.Page, error) {
		p := build()
		if opened != nil {
			*opened = append(*opened, p)
		}
		return p, nil
	}
}

func TestLiveUpdatePasses(t *testing.T) {
	fc := clock.NewFake()
	var pages []*pagetest.Page
	k := New(opener(func() *pagetest.Page { return pagetest.Translator(live) }, &pages), WithClock(fc))

	o := k.LiveUpdate(context.Background())
	assert.True(t, o.Pass, o.Message)
	assert.Equal(t, results.KindUI, o.Kind)
	assert.Equal(t, TitleLiveUpdate, o.Title)
	assert.Equal(t, "ස oba suvendha?", o.Raw)
	assert.Equal(t, []time.Duration{800 * time.Millisecond, 800 * time.Millisecond, 1200 * time.Millisecond}, fc.Slept())

	a, ok := o.Attachment("Samples")
	require.True(t, ok)
	assert.Equal(t, "ස oba s\nස oba suvend\nස oba suvendha?", string(a.Body))

	require.Len(t, pages, 1)
	assert.True(t, pages[0].Closed)
	assert.Equal(t, len("oba suvendha?"), pages[0].Keys)
}

func TestLiveUpdateStaticOutputFails(t *testing.T) {
	static := func(v string) string {
		if v == "" {
			return ""
		}
		return "මම"
	}
	k := New(opener(func() *pagetest.Page { return pagetest.Translator(static) }, nil), WithClock(clock.NewFake()))

	o := k.LiveUpdate(context.Background())
	assert.False(t, o.Pass)
	assert.Equal(t, "output did not change while typing", o.Message)
	assert.Empty(t, o.Error)
}

func TestClearResetsPasses(t *testing.T) {
	fc := clock.NewFake()
	k := New(opener(func() *pagetest.Page { return pagetest.Translator(live) }, nil), WithClock(fc))

	o := k.ClearResets(context.Background())
	assert.True(t, o.Pass, o.Message)
	before, _ := o.Attachment("Output before clear")
	assert.Equal(t, "ස mata hari mahansiyi", string(before.Body))
	assert.Equal(t, []time.Duration{clearWait, clearWait}, fc.Slept())
}

func TestClearResetsStuckOutputFails(t *testing.T) {
	stuck := func() *pagetest.Page {
		p := pagetest.Translator(live)
		p.OnInput = nil
		p.Element("output").SetText("මම")
		return p
	}
	k := New(opener(stuck, nil), WithClock(clock.NewFake()))

	o := k.ClearResets(context.Background())
	assert.False(t, o.Pass)
	assert.Equal(t, "output unchanged after clearing the input", o.Message)
}

func TestClearResetsNeedsOutputFirst(t *testing.T) {
	blank := func() *pagetest.Page {
		p := pagetest.New()
		in := pagetest.NewElement("input", page.KindEditable, "")
		p.Add(in).SetInput(in)
		return p
	}
	k := New(opener(blank, nil), WithClock(clock.NewFake()))

	o := k.ClearResets(context.Background())
	assert.False(t, o.Pass)
	assert.Equal(t, "no output before clearing", o.Message)
}

func TestCheckWithoutInputErrors(t *testing.T) {
	k := New(opener(pagetest.New, nil), WithClock(clock.NewFake()))

	outcomes := k.Run(context.Background())
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, "error", o.Status())
		assert.Contains(t, o.Error, page.ErrInputNotFound.Error())
	}
	assert.Equal(t, 0, outcomes[0].Index)
	assert.Equal(t, 1, outcomes[1].Index)
}

func TestCheckOpenError(t *testing.T) {
	k := New(func(context.Context) (page.Page, error) { return nil, assert.AnError })
	o := k.LiveUpdate(context.Background())
	assert.Contains(t, o.Error, assert.AnError.Error())
}

func TestScanOutput(t *testing.T) {
	ctx := context.Background()
	p := pagetest.New()
	in := pagetest.NewElement("input", page.KindEditable, "mama")
	p.Add(
		pagetest.NewElement("echo", page.KindText, "mama"),
		pagetest.NewElement("header", page.KindText, "English  text"),
		in,
		pagetest.NewElement("out", page.KindText, "මම"),
	).SetInput(in)

	got, err := ScanOutput(ctx, p, in, unicode.Sinhala)
	require.NoError(t, err)
	assert.Equal(t, "මම", got)

	got, err = ScanOutput(ctx, p, in, unicode.Tamil)
	require.NoError(t, err)
	assert.Equal(t, "English text", got, "falls back to the first non-input text")
}

func TestScanOutputIgnoresVisibility(t *testing.T) {
	ctx := context.Background()
	p := pagetest.New()
	in := pagetest.NewElement("input", page.KindEditable, "mama")
	hidden := pagetest.NewElement("template", page.KindText, "ආයුබෝවන්")
	hidden.Hidden = true
	p.Add(in, hidden, pagetest.NewElement("out", page.KindText, "මම")).SetInput(in)

	got, err := ScanOutput(ctx, p, in, unicode.Sinhala)
	require.NoError(t, err)
	assert.Equal(t, "ආයුබෝවන්", got, "candidates are taken in document order whether shown or not")
}
