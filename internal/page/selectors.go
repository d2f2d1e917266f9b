// internal/page/selectors.go
package page

import (
	"fmt"
	"regexp"
)

// Selectors are the element queries a driver uses to implement Page.
type Selectors struct {
	Editable string `mapstructure:"editable" yaml:"editable"`
	// UIEditable locates the input for the UI behaviour checks, which also
	// accept rich-text editors.
	UIEditable string `mapstructure:"ui_editable" yaml:"ui_editable"`
	Candidates string `mapstructure:"candidates" yaml:"candidates"`
	ReadOnly   string `mapstructure:"read_only" yaml:"read_only"`
	// ClearLabel is a regular expression matched against the accessible
	// name of buttons.
	ClearLabel string `mapstructure:"clear_label" yaml:"clear_label"`
}

// DefaultSelectors returns the queries that fit a typical translator page.
func DefaultSelectors() Selectors {
	return Selectors{
		Editable:   "textarea",
		UIEditable: "textarea, [contenteditable='true'], [role='textbox']",
		Candidates: "textarea, div, span, p, pre",
		ReadOnly:   "textarea[readonly], textarea[disabled]",
		ClearLabel: "(?i)clear",
	}
}

// WithDefaults fills empty fields from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	if s.Editable == "" {
		s.Editable = d.Editable
	}
	if s.UIEditable == "" {
		s.UIEditable = d.UIEditable
	}
	if s.Candidates == "" {
		s.Candidates = d.Candidates
	}
	if s.ReadOnly == "" {
		s.ReadOnly = d.ReadOnly
	}
	if s.ClearLabel == "" {
		s.ClearLabel = d.ClearLabel
	}
	return s
}

// ForUI returns s with Editable replaced by UIEditable.
func (s Selectors) ForUI() Selectors {
	s = s.WithDefaults()
	s.Editable = s.UIEditable
	return s
}

// ClearPattern compiles ClearLabel.
func (s Selectors) ClearPattern() (*regexp.Regexp, error) {
	re, err := regexp.Compile(s.ClearLabel)
	if err != nil {
		return nil, fmt.Errorf("invalid clear label pattern %q: %w", s.ClearLabel, err)
	}
	return re, nil
}

// JSClearPattern renders ClearLabel as a JavaScript regular expression literal.
// A leading (?i) flag group becomes the i flag.
func (s Selectors) JSClearPattern() string {
	src, flags := s.ClearLabel, ""
	if len(src) >= 4 && src[:4] == "(?i)" {
		src, flags = src[4:], "i"
	}
	return fmt.Sprintf("/%s/%s", escapeSlashes(src), flags)
}

func escapeSlashes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '/' && (i == 0 || s[i-1] != '\\') {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
