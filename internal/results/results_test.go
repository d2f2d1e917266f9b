// internal/results/results_test.go
package results

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeStatus(t *testing.T) {
	assert.Equal(t, "pass", Outcome{Pass: true}.Status())
	assert.Equal(t, "fail", Outcome{}.Status())
	assert.Equal(t, "error", Outcome{Error: "input not found"}.Status())
}

func TestOutcomeCloneIsDeep(t *testing.T) {
	o := Outcome{Title: "001 | Pos_Fun_0001 | row_3", Attachments: []Attachment{TextAttachment(AttachInput, "mama")}}
	c := o.Clone()
	require.Empty(t, cmp.Diff(o, c))

	c.Attachments[0].Body[0] = 'X'
	c.Attachments = append(c.Attachments, TextAttachment(AttachExpected, ""))
	assert.Equal(t, "mama", string(o.Attachments[0].Body))
	assert.Len(t, o.Attachments, 1)
}

func TestOutcomeAttachment(t *testing.T) {
	o := Outcome{Attachments: []Attachment{
		TextAttachment(AttachActualRaw, "raw"),
		TextAttachment(AttachActualFinal, "final"),
	}}
	a, ok := o.Attachment(AttachActualFinal)
	require.True(t, ok)
	assert.Equal(t, "final", string(a.Body))
	assert.Equal(t, ContentTypeText, a.ContentType)

	_, ok = o.Attachment("missing")
	assert.False(t, ok)
}

func TestRunSummaryAndPassed(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := &Run{
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Outcomes: []Outcome{
			{Kind: KindSanity, Pass: true},
			{Kind: KindFunctional, Pass: true, Resolution: "probe", Settled: true},
			{Kind: KindFunctional, Pass: true, Resolution: "container", Settled: false},
		},
	}
	assert.True(t, run.Passed())

	s := run.Summary()
	assert.Equal(t, Summary{Total: 3, Passed: 3, Fallback: 1, Unsettled: 1, Duration: time.Minute}, s)

	run.Outcomes = append(run.Outcomes,
		Outcome{Kind: KindFunctional, Pass: false, Resolution: "probe", Settled: true},
		Outcome{Kind: KindFunctional, Error: "no visible editable input field"},
	)
	assert.False(t, run.Passed())
	s = run.Summary()
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.Unsettled, "errored cases are not counted as unsettled")

	assert.False(t, (&Run{}).Passed(), "an empty run does not pass")
}
