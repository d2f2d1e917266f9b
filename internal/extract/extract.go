// internal/extract/extract.go
package extract

import (
	"strings"

	"github.com/xkilldash9x/transcheck/internal/textnorm"
)

// DefaultLabel is the target-language label that precedes the output text in
// the container's flattened text.
const DefaultLabel = "Sinhala"

// DefaultMarkers are the control labels that follow the output text.
var DefaultMarkers = []string{"🔁", "Translate", "🗑️", "Clear", "English"}

// Extractor isolates the output text from the flattened text of a container
// that also holds labels and buttons.
type Extractor struct {
	Label   string
	Markers []string
	// OversizeChars, when positive, also applies extraction to non-container
	// outputs whose raw text is longer than this many characters.
	OversizeChars int
}

// New returns an Extractor with the default label and markers.
func New() Extractor {
	return Extractor{Label: DefaultLabel, Markers: append([]string(nil), DefaultMarkers...)}
}

// Extract takes the text after the last occurrence of the label, cuts it at the
// earliest marker and collapses whitespace. Without the label the trimmed raw
// text is returned unchanged.
func (e Extractor) Extract(raw string) string {
	if e.Label == "" {
		return strings.TrimSpace(raw)
	}
	idx := strings.LastIndex(raw, e.Label)
	if idx < 0 {
		return strings.TrimSpace(raw)
	}

	tail := raw[idx+len(e.Label):]
	cut := len(tail)
	for _, m := range e.Markers {
		if m == "" {
			continue
		}
		if j := strings.Index(tail, m); j >= 0 && j < cut {
			cut = j
		}
	}
	return textnorm.CollapseAll(tail[:cut])
}

// Applies reports whether extraction should run for an output of the given
// shape. Containers always qualify; other outputs only past the oversize threshold.
func (e Extractor) Applies(container bool, raw string) bool {
	if container {
		return true
	}
	return e.OversizeChars > 0 && len([]rune(raw)) > e.OversizeChars
}
