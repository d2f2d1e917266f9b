// internal/reporting/json.go
package reporting

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/transcheck/internal/results"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the JSON report layout. Attachment bodies are inlined as text.
type Document struct {
	Run      RunHeader       `json:"run"`
	Summary  results.Summary `json:"summary"`
	Passed   bool            `json:"passed"`
	Outcomes []OutcomeEntry  `json:"outcomes"`
}

// RunHeader is the run metadata of a report.
type RunHeader struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	Source     string    `json:"source"`
	Sheet      string    `json:"sheet,omitempty"`
	Driver     string    `json:"driver,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// OutcomeEntry is an outcome with a textual status and text attachments.
type OutcomeEntry struct {
	results.Outcome
	Status      string           `json:"status"`
	Attachments []TextAttachment `json:"attachments,omitempty"`
}

// TextAttachment is an attachment whose body is rendered as a string.
type TextAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// NewDocument builds the report document of run.
func NewDocument(run *results.Run) Document {
	doc := Document{
		Run: RunHeader{
			ID: run.ID, Target: run.Target, Source: run.Source, Sheet: run.Sheet,
			Driver: run.Driver, StartedAt: run.StartedAt, FinishedAt: run.FinishedAt,
		},
		Summary:  run.Summary(),
		Passed:   run.Passed(),
		Outcomes: make([]OutcomeEntry, 0, len(run.Outcomes)),
	}
	for _, o := range run.Outcomes {
		e := OutcomeEntry{Outcome: o, Status: o.Status()}
		e.Outcome.Attachments = nil
		for _, a := range o.Attachments {
			e.Attachments = append(e.Attachments, TextAttachment{Name: a.Name, ContentType: a.ContentType, Body: string(a.Body)})
		}
		doc.Outcomes = append(doc.Outcomes, e)
	}
	return doc
}

// JSONReporter writes the run as one indented JSON document.
type JSONReporter struct {
	writer io.WriteCloser
}

func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: w}
}

func (r *JSONReporter) Write(run *results.Run) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(run)); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

func (r *JSONReporter) Close() error {
	return closeWriter(r.writer, nil)
}

// DecodeDocument reads a JSON report back.
func DecodeDocument(rd io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(rd).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON report: %w", err)
	}
	return &doc, nil
}
