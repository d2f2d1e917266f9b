// internal/reporting/junit.go
package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/transcheck/internal/results"
)

// JUnitReporter writes the run as a JUnit XML document with one testsuite
// per outcome kind.
type JUnitReporter struct {
	writer io.WriteCloser
}

func NewJUnitReporter(w io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{writer: w}
}

// suiteOrder fixes the testsuite order in the document.
var suiteOrder = []results.Kind{results.KindSanity, results.KindFunctional, results.KindUI}

func (r *JUnitReporter) Write(run *results.Run) error {
	doc := BuildJUnit(run)
	if _, err := doc.WriteTo(r.writer); err != nil {
		return fmt.Errorf("failed to write JUnit report: %w", err)
	}
	return nil
}

func (r *JUnitReporter) Close() error {
	return closeWriter(r.writer, nil)
}

// BuildJUnit renders run as a JUnit document.
func BuildJUnit(run *results.Run) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	s := run.Summary()
	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", "transcheck")
	root.CreateAttr("tests", strconv.Itoa(s.Total))
	root.CreateAttr("failures", strconv.Itoa(s.Failed))
	root.CreateAttr("errors", strconv.Itoa(s.Errors))
	root.CreateAttr("time", seconds(s.Duration.Seconds()))

	byKind := make(map[results.Kind][]results.Outcome)
	for _, o := range run.Outcomes {
		byKind[o.Kind] = append(byKind[o.Kind], o)
	}

	for _, kind := range suiteOrder {
		outcomes := byKind[kind]
		if len(outcomes) == 0 {
			continue
		}
		suite := root.CreateElement("testsuite")
		suite.CreateAttr("name", string(kind))
		suite.CreateAttr("tests", strconv.Itoa(len(outcomes)))
		var failures, errs int
		var total float64
		for _, o := range outcomes {
			switch o.Status() {
			case "fail":
				failures++
			case "error":
				errs++
			}
			total += o.Duration.Seconds()
			writeTestCase(suite, run, o)
		}
		suite.CreateAttr("failures", strconv.Itoa(failures))
		suite.CreateAttr("errors", strconv.Itoa(errs))
		suite.CreateAttr("time", seconds(total))
		if !run.StartedAt.IsZero() {
			suite.CreateAttr("timestamp", run.StartedAt.UTC().Format("2006-01-02T15:04:05"))
		}
	}

	doc.Indent(2)
	return doc
}

func writeTestCase(suite *etree.Element, run *results.Run, o results.Outcome) {
	tc := suite.CreateElement("testcase")
	tc.CreateAttr("name", o.Title)
	classname := "transcheck." + string(o.Kind)
	if o.Sheet != "" {
		classname += "." + o.Sheet
	}
	tc.CreateAttr("classname", classname)
	tc.CreateAttr("time", seconds(o.Duration.Seconds()))
	if o.Row > 0 {
		tc.CreateAttr("file", run.Source)
		tc.CreateAttr("line", strconv.Itoa(o.Row))
	}

	switch o.Status() {
	case "error":
		el := tc.CreateElement("error")
		el.CreateAttr("message", o.Error)
		el.CreateAttr("type", "execution")
	case "fail":
		el := tc.CreateElement("failure")
		if o.Kind == results.KindFunctional {
			el.CreateAttr("message", fmt.Sprintf("%s check failed", o.Rule))
			el.CreateAttr("type", o.Rule)
			el.SetText(fmt.Sprintf("expected: %s\nactual: %s", o.ExpectedNorm, o.ActualNorm))
		} else {
			el.CreateAttr("message", o.Message)
			el.CreateAttr("type", string(o.Kind))
		}
	}

	if len(o.Attachments) > 0 {
		var b strings.Builder
		for _, a := range o.Attachments {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", a.Name, a.Body)
		}
		tc.CreateElement("system-out").SetCData(b.String())
	}
}

func seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
