// internal/results/types.go
package results

import "time"

// Attachment names recorded for every functional case.
const (
	AttachInput       = "Input"
	AttachExpected    = "Expected Output"
	AttachActualRaw   = "Actual Output (raw)"
	AttachActualFinal = "Actual Output (final)"
	ContentTypeText   = "text/plain"
)

// Attachment is a named diagnostic artifact of an outcome.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// TextAttachment builds a text/plain attachment.
func TextAttachment(name, body string) Attachment {
	return Attachment{Name: name, ContentType: ContentTypeText, Body: []byte(body)}
}

// Kind groups outcomes in reports.
type Kind string

const (
	KindSanity     Kind = "sanity"
	KindFunctional Kind = "functional"
	KindUI         Kind = "ui"
)

// Outcome is the immutable result of one check. Reporters receive copies.
type Outcome struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Kind     Kind   `json:"kind"`
	CaseID   string `json:"case_id,omitempty"`
	Sheet    string `json:"sheet,omitempty"`
	Row      int    `json:"row,omitempty"`
	Polarity string `json:"polarity,omitempty"`

	Input     string `json:"input,omitempty"`
	Expected  string `json:"expected,omitempty"`
	Raw       string `json:"raw,omitempty"`
	Extracted string `json:"extracted,omitempty"`
	// ActualNorm and ExpectedNorm are the operands the oracle compared.
	ActualNorm   string `json:"actual_normalized,omitempty"`
	ExpectedNorm string `json:"expected_normalized,omitempty"`
	Rule         string `json:"rule,omitempty"`

	Pass bool `json:"pass"`
	// Message explains a failure of a sanity or UI check.
	Message string `json:"message,omitempty"`
	// Error is set when the case could not be executed to a verdict.
	Error string `json:"error,omitempty"`

	Resolution string `json:"resolution,omitempty"`
	OutputKind string `json:"output_kind,omitempty"`
	Settled    bool   `json:"settled"`
	Samples    int    `json:"samples,omitempty"`

	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Attachments []Attachment  `json:"attachments,omitempty"`
}

// Status is a short label for an outcome.
func (o Outcome) Status() string {
	switch {
	case o.Error != "":
		return "error"
	case o.Pass:
		return "pass"
	default:
		return "fail"
	}
}

// Attachment returns the attachment with the given name.
func (o Outcome) Attachment(name string) (Attachment, bool) {
	for _, a := range o.Attachments {
		if a.Name == name {
			return a, true
		}
	}
	return Attachment{}, false
}

// Clone returns a deep copy so receivers cannot mutate the original.
func (o Outcome) Clone() Outcome {
	if o.Attachments != nil {
		atts := make([]Attachment, len(o.Attachments))
		for i, a := range o.Attachments {
			atts[i] = Attachment{Name: a.Name, ContentType: a.ContentType, Body: append([]byte(nil), a.Body...)}
		}
		o.Attachments = atts
	}
	return o
}

// Summary counts outcomes by status.
type Summary struct {
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Errors    int           `json:"errors"`
	Fallback  int           `json:"fallback_resolutions"`
	Unsettled int           `json:"unsettled"`
	Duration  time.Duration `json:"duration"`
}

// Run is one execution of a suite.
type Run struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	Source     string    `json:"source"`
	Sheet      string    `json:"sheet"`
	Driver     string    `json:"driver"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Summary aggregates the outcomes of the run.
func (r *Run) Summary() Summary {
	s := Summary{Total: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		switch o.Status() {
		case "pass":
			s.Passed++
		case "error":
			s.Errors++
		default:
			s.Failed++
		}
		if o.Kind == KindFunctional && o.Error == "" {
			if o.Resolution != "" && o.Resolution != "probe" {
				s.Fallback++
			}
			if !o.Settled {
				s.Unsettled++
			}
		}
	}
	if !r.FinishedAt.IsZero() {
		s.Duration = r.FinishedAt.Sub(r.StartedAt)
	}
	return s
}

// Passed is the logical AND of every outcome. An empty run does not pass.
func (r *Run) Passed() bool {
	if len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if !o.Pass {
			return false
		}
	}
	return true
}
