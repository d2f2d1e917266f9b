// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xkilldash9x/transcheck/internal/results"
)

// Reporter renders a finished run to an output.
type Reporter interface {
	// Write renders the run. Reporters accept one run.
	Write(run *results.Run) error
	// Close finalizes the report and closes any underlying file handle.
	Close() error
}

// Options tune the reporters.
type Options struct {
	NoColor     bool
	ToolVersion string
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// NopCloser lets a reporter write to w without closing it.
func NopCloser(w io.Writer) io.WriteCloser {
	return &nopWriteCloser{w}
}

// Extension returns the file extension used for a format.
func Extension(format string) string {
	switch format {
	case "json":
		return ".json"
	case "junit":
		return ".xml"
	case "sarif":
		return ".sarif"
	default:
		return ".txt"
	}
}

// DefaultPath is the report file for format inside dir.
func DefaultPath(dir, format string) string {
	return filepath.Join(dir, "transcheck-report"+Extension(format))
}

// IsStdout reports whether outputPath designates standard output.
func IsStdout(outputPath string) bool {
	return outputPath == "" || outputPath == "stdout" || outputPath == "-"
}

// New creates a reporter for format writing to outputPath, or to stdout for
// an empty path, "stdout" or "-".
func New(format, outputPath string, opts Options) (Reporter, error) {
	switch format {
	case "text", "json", "junit", "sarif":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if IsStdout(outputPath) {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create report directory for %s: %w", outputPath, err)
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}
	return NewWriter(format, writer, opts), nil
}

// NewWriter creates a reporter on an already open writer, which it takes
// ownership of. format must be valid.
func NewWriter(format string, w io.WriteCloser, opts Options) Reporter {
	switch format {
	case "json":
		return NewJSONReporter(w)
	case "junit":
		return NewJUnitReporter(w)
	case "sarif":
		return NewSARIFReporter(w, opts.ToolVersion)
	default:
		return NewTextReporter(w, opts.NoColor)
	}
}

// closeWriter closes w after a render attempt, keeping the render error first.
func closeWriter(w io.Closer, renderErr error) error {
	closeErr := w.Close()
	if renderErr != nil {
		return renderErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
