// Package workflow defines the Workflow bounded context: the immutable
// revision model, the parameter schema, and the polymorphic step tree.
package workflow

import (
	"github.com/flowkeep/flowkeep/pkg/domain"
)

// ---------------------------------------------------------------------------
// Revision — the aggregate persisted by the revision store
// ---------------------------------------------------------------------------

// Revision is one immutable version of a workflow. Identity fields and
// CreatedAt never change after insert; Name/Description/Parameters/Steps may
// change only while Active is false; Active and UpdatedAt are always mutable
// (UpdatedAt doubles as the optimistic-lock token).
type Revision struct {
	Namespace string
	ID        string
	Version   int
	CreatedAt domain.Timestamp

	Name        string
	Description string
	Parameters  []ParameterDefinition
	Steps       []Step

	Active    bool
	UpdatedAt domain.Timestamp
}

// RevisionID returns the fully qualified identifier for this revision.
func (r Revision) RevisionID() RevisionID {
	return RevisionID{Namespace: r.Namespace, ID: r.ID, Version: r.Version}
}

// WorkflowID returns the (namespace, id) pair this revision belongs to.
func (r Revision) WorkflowID() ID {
	return ID{Namespace: r.Namespace, ID: r.ID}
}

// WithSource pairs a parsed Revision with the author's original document
// text, preserved byte-for-byte except for the metadata fields the store
// patches in place (see pkg/parser).
type WithSource struct {
	Revision Revision
	Source   string
	// Format is "yaml" or "json"; it determines how the metadata updater
	// rewrites Source when lifecycle fields change.
	Format string
}

// Validate enforces the structural invariants that apply regardless of
// storage technology: a well-formed identifier, non-blank name/description
// within length limits, a known parameter type per definition, no duplicate
// parameter names, at least one root step, and a nesting depth under the
// sanity cap.
func (r Revision) Validate() error {
	if err := r.RevisionID().Validate(); err != nil {
		return err
	}
	if r.Name == "" || len(r.Name) > 255 {
		return domain.NewInvalidRevision("name must be non-blank and at most 255 characters")
	}
	if r.Description == "" || len(r.Description) > 1000 {
		return domain.NewInvalidRevision("description must be non-blank and at most 1000 characters")
	}
	seen := make(map[string]bool, len(r.Parameters))
	for _, p := range r.Parameters {
		if p.Name == "" {
			return domain.NewInvalidRevision("parameter name must be non-blank")
		}
		if seen[p.Name] {
			return domain.NewInvalidRevision("duplicate parameter name: " + p.Name)
		}
		seen[p.Name] = true
		if _, ok := LookupParameterType(p.Type); !ok {
			return domain.NewInvalidRevision("unknown parameter type: " + p.Type)
		}
	}
	if len(r.Steps) == 0 {
		return domain.NewInvalidRevision("a revision must have at least one root step")
	}
	const maxNestingDepth = 32
	for _, s := range r.Steps {
		if s == nil {
			return domain.NewInvalidRevision("step list may not contain a nil step")
		}
		if depth := stepDepth(s); depth > maxNestingDepth {
			return domain.NewInvalidRevision("step nesting exceeds the maximum allowed depth")
		}
	}
	return nil
}

func stepDepth(s Step) int {
	switch t := s.(type) {
	case *Sequence:
		max := 0
		for _, child := range t.Steps {
			if d := stepDepth(child); d > max {
				max = d
			}
		}
		return 1 + max
	case *If:
		d := stepDepth(t.IfTrue)
		if t.IfFalse != nil {
			if d2 := stepDepth(t.IfFalse); d2 > d {
				d = d2
			}
		}
		return 1 + d
	default:
		return 1
	}
}
