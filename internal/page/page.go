// internal/page/page.go
package page

import (
	"context"
	"errors"
	"time"
)

// ErrInputNotFound is returned when no visible editable field appears within the wait.
var ErrInputNotFound = errors.New("no visible editable input field")

// Kind classifies a node by how its text is read and how precise it is as an output.
type Kind int

const (
	// KindEditable is a text control whose value is its content.
	KindEditable Kind = iota
	// KindText is a precise element whose text content is its content.
	KindText
	// KindContainer is a coarse element, such as the page body, whose text
	// mixes the output with labels and controls.
	KindContainer
)

func (k Kind) String() string {
	switch k {
	case KindEditable:
		return "editable"
	case KindText:
		return "text"
	case KindContainer:
		return "container"
	default:
		return "unknown"
	}
}

// Node is an opaque handle to one element of a loaded page. Handles are valid
// for the page session that produced them only.
type Node interface {
	// Snapshot returns the trimmed value of an editable control, or the trimmed
	// text content of any other element.
	Snapshot(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	Kind() Kind
	// Same reports whether other refers to the same DOM element.
	Same(ctx context.Context, other Node) (bool, error)
}

// Field is an editable node.
type Field interface {
	Node
	// Fill replaces the content in one write.
	Fill(ctx context.Context, text string) error
	// Type enters text one key at a time, pausing delay between keys.
	Type(ctx context.Context, text string, delay time.Duration) error
}

// Page is one browser tab driven through the capabilities the resolver needs.
type Page interface {
	// Navigate loads url and returns once the DOM content is loaded.
	Navigate(ctx context.Context, url string) error
	// FirstEditable waits up to timeout for the first visible editable field.
	FirstEditable(ctx context.Context, timeout time.Duration) (Field, error)
	// Candidates lists the elements matching the candidate selector in document order.
	Candidates(ctx context.Context) ([]Node, error)
	// FirstReadOnly returns the first read-only or disabled field, or nil if none exists.
	FirstReadOnly(ctx context.Context) (Node, error)
	// Body returns the page body as a container node.
	Body(ctx context.Context) (Node, error)
	// ClickClear clicks the first control labeled like a clear button. It
	// reports false when no such control exists.
	ClickClear(ctx context.Context) (bool, error)
	Close(ctx context.Context) error
}

// Driver opens pages on one browser instance.
type Driver interface {
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}
