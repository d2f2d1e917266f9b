// internal/reporting/artifacts.go
package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xkilldash9x/transcheck/internal/results"
)

var unsafeName = regexp.MustCompile(`[^\p{L}\p{M}\p{N}._-]+`)

// ArtifactDir is the directory holding the attachments of outcome o.
func ArtifactDir(root, runID string, o results.Outcome) string {
	id := o.CaseID
	if id == "" {
		id = o.Title
	}
	return filepath.Join(root, runID, fmt.Sprintf("%03d_%s", o.Index, safeName(id)))
}

// WriteArtifacts stores every attachment of run as a file under
// root/<run id>/<index>_<case>/. It returns the number of files written.
func WriteArtifacts(root string, run *results.Run) (int, error) {
	written := 0
	for _, o := range run.Outcomes {
		if len(o.Attachments) == 0 {
			continue
		}
		dir := ArtifactDir(root, run.ID, o)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return written, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
		}
		for _, a := range o.Attachments {
			path := filepath.Join(dir, safeName(a.Name)+attachmentExt(a.ContentType))
			if err := os.WriteFile(path, a.Body, 0o644); err != nil {
				return written, fmt.Errorf("failed to write artifact %s: %w", path, err)
			}
			written++
		}
	}
	return written, nil
}

func attachmentExt(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		return ".json"
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	default:
		return ".txt"
	}
}

func safeName(s string) string {
	s = strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	if s == "" {
		return "unnamed"
	}
	return s
}
