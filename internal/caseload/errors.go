// internal/caseload/errors.go
package caseload

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for table load failures. All of them are fatal for a suite.
var (
	ErrSourceNotFound = errors.New("case source not found")
	ErrEmptySheet     = errors.New("sheet has no usable grid")
	ErrHeaderNotFound = errors.New("header row not found")
	ErrColumnNotFound = errors.New("header column not found")
)

// LoadError carries the diagnostics of a failed table load.
// It unwraps to one of the sentinel kinds above.
type LoadError struct {
	Kind   error
	Source string
	Sheet  string
	Detail string
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Source != "" {
		fmt.Fprintf(&b, " (source: %s)", e.Source)
	}
	if e.Sheet != "" {
		fmt.Fprintf(&b, " (sheet: %s)", e.Sheet)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Kind }
