// internal/extract/extract_test.go
package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	e := New()
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"label and marker", "English oba kohomadha 🔁 Translate Sinhala   ABC 🔁 Translate 🗑️ Clear", "ABC"},
		{"last label wins", "Sinhala first Sinhala second Clear", "second"},
		{"earliest marker cuts", "Sinhala මම ගෙදර\n යනවා English Clear 🔁", "මම ගෙදර යනවා"},
		{"no marker keeps tail", "Sinhala  ඔබ සුවෙන්ද ", "ඔබ සුවෙන්ද"},
		{"label absent returns trimmed raw", "  just   text \n", "just   text"},
		{"label at end", "stuff Sinhala", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.raw))
		})
	}
}

func TestExtractCustomLabel(t *testing.T) {
	e := Extractor{Label: "Tamil", Markers: []string{"Copy"}}
	assert.Equal(t, "வணக்கம்", e.Extract("English hello Tamil வணக்கம் Copy"))
	assert.Equal(t, "Sinhala x", Extractor{}.Extract(" Sinhala x "))
}

func TestNewCopiesMarkers(t *testing.T) {
	e := New()
	e.Markers[0] = "changed"
	assert.Equal(t, "🔁", DefaultMarkers[0])
}

func TestApplies(t *testing.T) {
	e := New()
	assert.True(t, e.Applies(true, "x"))
	assert.False(t, e.Applies(false, strings.Repeat("x", 1000)))

	e.OversizeChars = 300
	assert.False(t, e.Applies(false, strings.Repeat("ම", 300)))
	assert.True(t, e.Applies(false, strings.Repeat("ම", 301)))
}
