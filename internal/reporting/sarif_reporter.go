// internal/reporting/sarif_reporter.go
package reporting

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/observability"
	"github.com/xkilldash9x/transcheck/internal/reporting/sarif"
	"github.com/xkilldash9x/transcheck/internal/results"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "transcheck"
	ToolInfoURI  = "https://github.com/xkilldash9x/transcheck"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// Rule ids for outcomes that did not reach a verdict or are not functional.
const (
	ruleExecution = "TRANSCHECK-EXECUTION"
	ruleSanity    = "TRANSCHECK-SANITY"
	ruleUI        = "TRANSCHECK-UI"
)

// ruleIDSanitizer collapses characters outside [A-Za-z0-9_.] into one hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// SARIFReporter renders every failing outcome as a SARIF result located at
// the case row of the source table. Passing outcomes produce no result.
// It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the rule index.
	mu    sync.Mutex
	rules map[string]bool
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						Rules:          []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}
	return &SARIFReporter{
		writer: writer,
		logger: observability.GetLogger().Named("sarif_reporter"),
		log:    log,
		rules:  make(map[string]bool),
	}
}

// Write adds the failing outcomes of run to the log.
func (r *SARIFReporter) Write(run *results.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.log.Runs[0]
	out.Invocations = append(out.Invocations, &sarif.Invocation{
		ExecutionSuccessful: run.Passed(),
		StartTimeUTC:        utc(run.StartedAt),
		EndTimeUTC:          utc(run.FinishedAt),
		Properties: &sarif.PropertyBag{
			"runId":  run.ID,
			"target": run.Target,
			"sheet":  run.Sheet,
		},
	})

	added := 0
	for _, o := range run.Outcomes {
		if o.Pass {
			continue
		}
		ruleID := r.ensureRule(o)
		level := sarif.LevelError
		if o.Error == "" && o.Kind == results.KindUI {
			level = sarif.LevelWarning
		}
		out.Results = append(out.Results, &sarif.Result{
			RuleID:    ruleID,
			Message:   &sarif.Message{Text: pString(resultMessage(o))},
			Level:     level,
			Locations: createLocations(run, o),
			Properties: &sarif.PropertyBag{
				"title":    o.Title,
				"caseId":   o.CaseID,
				"status":   o.Status(),
				"polarity": o.Polarity,
			},
		})
		added++
	}

	r.logger.Debug("Wrote outcomes to SARIF buffer", zap.Int("results", added), zap.String("run_id", run.ID))
	return nil
}

// Close encodes the log and closes the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	encodeErr := enc.Encode(r.log)
	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		encodeErr = fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	return closeWriter(r.writer, encodeErr)
}

// RuleID maps an outcome to its rule: the oracle rule for judged functional
// cases, otherwise one rule per outcome kind.
func RuleID(o results.Outcome) string {
	switch {
	case o.Error != "":
		return ruleExecution
	case o.Kind == results.KindSanity:
		return ruleSanity
	case o.Kind == results.KindUI:
		return ruleUI
	}
	name := strings.Trim(ruleIDSanitizer.ReplaceAllString(strings.ToUpper(o.Rule), "-"), "-")
	if name == "" {
		name = "UNKNOWN"
	}
	return "TRANSCHECK-" + name
}

// ensureRule registers the rule of o on first use. Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(o results.Outcome) string {
	id := RuleID(o)
	if r.rules[id] {
		return id
	}
	r.rules[id] = true

	desc := ruleDescription(id, o)
	driver := r.log.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               id,
		Name:             pString(strings.ToLower(strings.TrimPrefix(id, "TRANSCHECK-"))),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(desc)},
		Properties: &sarif.PropertyBag{
			"tags": []string{"transliteration", string(o.Kind)},
		},
	})
	return id
}

func ruleDescription(id string, o results.Outcome) string {
	switch id {
	case ruleExecution:
		return "The case could not be executed to a verdict."
	case ruleSanity:
		return "The case table could not be loaded."
	case ruleUI:
		return "The page did not behave as expected while typing or clearing."
	}
	return fmt.Sprintf("The output did not satisfy the %q rule.", o.Rule)
}

func resultMessage(o results.Outcome) string {
	switch {
	case o.Error != "":
		return fmt.Sprintf("%s: %s", o.Title, o.Error)
	case o.Kind == results.KindFunctional:
		return fmt.Sprintf("%s: expected %q (%s), got %q", o.Title, o.ExpectedNorm, o.Rule, o.ActualNorm)
	case o.Message != "":
		return fmt.Sprintf("%s: %s", o.Title, o.Message)
	}
	return o.Title
}

func createLocations(run *results.Run, o results.Outcome) []*sarif.Location {
	loc := &sarif.PhysicalLocation{
		ArtifactLocation: &sarif.ArtifactLocation{URI: pString(run.Source)},
	}
	if o.Row > 0 {
		loc.Region = &sarif.Region{StartLine: o.Row}
	}
	return []*sarif.Location{{
		PhysicalLocation: loc,
		Message:          &sarif.Message{Text: pString(o.Title)},
	}}
}

func utc(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
