// internal/textnorm/textnorm.go
package textnorm

import (
	"fmt"
	"strings"
	"unicode"
)

// isHorizontalSpace reports whether r is whitespace that stays on the same line:
// ASCII space and tab plus every Unicode space separator (NBSP, thin space, ideographic space...).
func isHorizontalSpace(r rune) bool {
	return r == ' ' || r == '\t' || unicode.Is(unicode.Zs, r)
}

// isInvisible reports whether r is a format character that renders as nothing:
// the byte-order mark, zero-width space and word joiner. ZWJ and ZWNJ are kept
// because Sinhala conjuncts depend on them.
func isInvisible(r rune) bool {
	return r == '\ufeff' || r == '\u200b' || r == '\u2060'
}

// Normalize canonicalizes text for storage and comparison. Non-breaking and other
// Unicode space separators become a plain space. Carriage returns, byte-order marks
// and zero-width spaces are dropped. Runs of horizontal whitespace collapse to a
// single space and the result is trimmed. Line breaks are preserved.
// Normalize is idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	inSpace := false
	for _, r := range s {
		if r == '\r' || isInvisible(r) {
			continue
		}
		if isHorizontalSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// CleanID normalizes a case identifier cell and strips any leading decoration
// (bullets, quotes, stray punctuation) so that only the alphanumeric id remains.
func CleanID(s string) string {
	n := Normalize(s)
	n = strings.TrimLeftFunc(n, func(r rune) bool {
		return !isASCIIAlnum(r)
	})
	return strings.TrimSpace(n)
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// ForCompare is Normalize followed by stripping trailing dots and spaces.
// Sentence-final punctuation is not significant to the oracle.
func ForCompare(s string) string {
	n := Normalize(s)
	return strings.TrimRightFunc(n, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
}

// EqualLoose compares two strings after normalization, ignoring case.
func EqualLoose(a, b string) bool {
	return strings.EqualFold(Normalize(a), Normalize(b))
}

// CollapseAll collapses every whitespace run, line breaks included, into one space.
func CollapseAll(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ContainsScript reports whether any rune of s belongs to the given script table.
func ContainsScript(s string, script *unicode.RangeTable) bool {
	if script == nil {
		return false
	}
	for _, r := range s {
		if unicode.Is(script, r) {
			return true
		}
	}
	return false
}

// LookupScript resolves a Unicode script name such as "Sinhala" or "Tamil".
func LookupScript(name string) (*unicode.RangeTable, error) {
	for scriptName, table := range unicode.Scripts {
		if strings.EqualFold(scriptName, strings.TrimSpace(name)) {
			return table, nil
		}
	}
	return nil, fmt.Errorf("unknown unicode script %q", name)
}
