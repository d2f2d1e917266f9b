// internal/reporting/text.go
package reporting

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/xkilldash9x/transcheck/internal/results"
)

// TextReporter prints a human readable summary, one line per outcome.
type TextReporter struct {
	writer  io.WriteCloser
	pass    *color.Color
	fail    *color.Color
	errc    *color.Color
	dim     *color.Color
	heading *color.Color
}

func NewTextReporter(w io.WriteCloser, noColor bool) *TextReporter {
	r := &TextReporter{
		writer:  w,
		pass:    color.New(color.FgGreen, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
		errc:    color.New(color.FgMagenta, color.Bold),
		dim:     color.New(color.Faint),
		heading: color.New(color.Bold),
	}
	// Without noColor the fatih/color terminal detection decides.
	if noColor {
		for _, c := range []*color.Color{r.pass, r.fail, r.errc, r.dim, r.heading} {
			c.DisableColor()
		}
	}
	return r
}

func (r *TextReporter) Write(run *results.Run) error {
	bw := bufio.NewWriter(r.writer)
	r.heading.Fprintf(bw, "transcheck run %s\n", run.ID)
	fmt.Fprintf(bw, "target: %s\nsource: %s\n", run.Target, run.Source)
	if run.Sheet != "" {
		fmt.Fprintf(bw, "sheet:  %s\n", run.Sheet)
	}
	fmt.Fprintln(bw)

	for _, o := range run.Outcomes {
		r.writeOutcome(bw, o)
	}

	s := run.Summary()
	fmt.Fprintln(bw)
	verdict := r.pass.Sprint("PASSED")
	if !run.Passed() {
		verdict = r.fail.Sprint("FAILED")
	}
	fmt.Fprintf(bw, "%s  %d total, %d passed, %d failed, %d errors", verdict, s.Total, s.Passed, s.Failed, s.Errors)
	if s.Fallback > 0 || s.Unsettled > 0 {
		fmt.Fprintf(bw, " (%d fallback resolutions, %d unsettled)", s.Fallback, s.Unsettled)
	}
	if s.Duration > 0 {
		fmt.Fprintf(bw, " in %s", s.Duration.Round(1e6))
	}
	fmt.Fprintln(bw)
	return bw.Flush()
}

func (r *TextReporter) writeOutcome(w io.Writer, o results.Outcome) {
	var tag string
	switch o.Status() {
	case "pass":
		tag = r.pass.Sprint("PASS ")
	case "error":
		tag = r.errc.Sprint("ERROR")
	default:
		tag = r.fail.Sprint("FAIL ")
	}
	fmt.Fprintf(w, "%s %s", tag, o.Title)
	if o.Kind == results.KindFunctional && o.Resolution != "" && o.Resolution != "probe" {
		fmt.Fprint(w, r.dim.Sprintf("  [output via %s]", o.Resolution))
	}
	if o.Kind == results.KindFunctional && o.Error == "" && !o.Settled {
		fmt.Fprint(w, r.dim.Sprint("  [unsettled]"))
	}
	fmt.Fprintln(w)

	switch {
	case o.Error != "":
		fmt.Fprintf(w, "      %s\n", o.Error)
	case !o.Pass && o.Kind == results.KindFunctional:
		fmt.Fprintf(w, "      rule:     %s\n", o.Rule)
		fmt.Fprintf(w, "      input:    %s\n", oneLine(o.Input))
		fmt.Fprintf(w, "      expected: %s\n", oneLine(o.ExpectedNorm))
		fmt.Fprintf(w, "      actual:   %s\n", oneLine(o.ActualNorm))
	case !o.Pass && o.Message != "":
		fmt.Fprintf(w, "      %s\n", o.Message)
	}
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}

func (r *TextReporter) Close() error {
	return closeWriter(r.writer, nil)
}
