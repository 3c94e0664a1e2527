package isorender

import (
	"encoding/json"
	"fmt"
	"io"
)

// DocumentMetadata carries the head/attribute output of a render pass.
type DocumentMetadata struct {
	Title          string            `json:"title,omitempty"`
	Meta           []string          `json:"meta,omitempty"`
	Script         []string          `json:"script,omitempty"`
	Link           []string          `json:"link,omitempty"`
	BodyAttributes map[string]string `json:"bodyAttributes,omitempty"`
	HTMLAttributes map[string]string `json:"htmlAttributes,omitempty"`
}

// Snapshot is the server-to-client handoff: the final variable state of one
// SSR pass plus routing metadata. It is finalized exactly once per request
// and never reused. A redirect snapshot carries no markup.
type Snapshot struct {
	Identifier       string            `json:"identifier"`
	InitialVariables map[string]any    `json:"initialVariables,omitempty"`
	RedirectTarget   string            `json:"redirectTarget,omitempty"`
	StatusCode       int               `json:"statusCode,omitempty"`
	RenderedMarkup   string            `json:"renderedMarkup,omitempty"`
	DocumentMetadata *DocumentMetadata `json:"documentMetadata,omitempty"`

	// Incomplete marks a snapshot finalized at the render pass cap with data
	// dependencies still unresolved.
	Incomplete bool `json:"incomplete,omitempty"`
}

// Redirected reports whether the delivery layer must issue an HTTP redirect
// instead of serving the page.
func (s *Snapshot) Redirected() bool {
	return s.RedirectTarget != ""
}

// Encode writes the snapshot in its JSON wire form.
func (s *Snapshot) Encode(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a snapshot from its JSON wire form.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}
