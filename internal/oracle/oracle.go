// internal/oracle/oracle.go
package oracle

import (
	"strings"

	"github.com/xkilldash9x/transcheck/internal/textnorm"
)

// Polarity is the family a case belongs to, derived from its identifier prefix.
type Polarity int

const (
	// PolarityUnknown marks an identifier outside both recognized families.
	PolarityUnknown Polarity = iota
	// PolarityPositive cases expect the output to contain the expected text.
	PolarityPositive
	// PolarityNegative cases expect the output NOT to contain the expected text.
	PolarityNegative
)

const (
	PositivePrefix = "pos_fun"
	NegativePrefix = "neg_fun"
)

func (p Polarity) String() string {
	switch p {
	case PolarityPositive:
		return "positive"
	case PolarityNegative:
		return "negative"
	default:
		return "unknown"
	}
}

// PolarityOf classifies a cleaned case identifier by its case-insensitive prefix.
func PolarityOf(id string) Polarity {
	lower := strings.ToLower(id)
	switch {
	case strings.HasPrefix(lower, PositivePrefix):
		return PolarityPositive
	case strings.HasPrefix(lower, NegativePrefix):
		return PolarityNegative
	default:
		return PolarityUnknown
	}
}

// Rule names the comparison that decided a verdict.
type Rule string

const (
	RuleExists      Rule = "exists"
	RuleContains    Rule = "contains"
	RuleNotContains Rule = "not_contains"
)

// Verdict is the oracle's decision plus the normalized operands it compared.
type Verdict struct {
	Pass     bool
	Rule     Rule
	Actual   string
	Expected string
}

// Judge scores an actual output against the expectation of a case.
// Both sides are compared in their ForCompare form. An empty expectation only
// checks that some output exists; otherwise containment decides, inverted for
// negative cases.
func Judge(polarity Polarity, actual, expected string) Verdict {
	v := Verdict{
		Actual:   textnorm.ForCompare(actual),
		Expected: textnorm.ForCompare(expected),
	}

	switch {
	case v.Expected == "":
		v.Rule = RuleExists
		v.Pass = v.Actual != ""
	case polarity == PolarityNegative:
		v.Rule = RuleNotContains
		v.Pass = !strings.Contains(v.Actual, v.Expected)
	default:
		v.Rule = RuleContains
		v.Pass = strings.Contains(v.Actual, v.Expected)
	}
	return v
}
