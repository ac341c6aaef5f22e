// Package trace turns fetched run hierarchies into span trees and emits
// them to a tracing backend through the Sink interface.
package trace

import "time"

// Kind classifies a span by its level in the run hierarchy.
type Kind string

const (
	KindRun  Kind = "run"
	KindJob  Kind = "job"
	KindStep Kind = "step"
)

// Status is the resolved outcome of a span.
type Status string

const (
	StatusUnset Status = "unset"
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Span is one node of a reconstructed trace tree. Parentage is positional:
// a span's parent is the node holding it in Children. Once built, a tree is
// immutable and always well-formed: End is never before Start, and every
// child interval lies within its parent's.
type Span struct {
	Kind     Kind
	Name     string
	Start    time.Time
	End      time.Time
	Status   Status
	Workflow string
	Attrs    map[string]string
	Children []*Span
}
