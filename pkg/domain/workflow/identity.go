package workflow

import (
	"regexp"

	"github.com/flowkeep/flowkeep/pkg/domain"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ID is the pair (namespace, id) that identifies a workflow independent of
// any particular revision.
type ID struct {
	Namespace string
	ID        string
}

// Validate checks the identifier format rules: both parts non-blank,
// alphanumeric plus -/_, each at most 100 characters.
func (w ID) Validate() error {
	if !identifierPattern.MatchString(w.Namespace) {
		return domain.NewMalformedIdentifier("namespace must be 1-100 chars of [A-Za-z0-9_-]")
	}
	if !identifierPattern.MatchString(w.ID) {
		return domain.NewMalformedIdentifier("id must be 1-100 chars of [A-Za-z0-9_-]")
	}
	return nil
}

// RevisionID adds a positive integer version to a workflow ID.
type RevisionID struct {
	Namespace string
	ID        string
	Version   int
}

// Validate checks the revision identifier, including a positive version.
func (r RevisionID) Validate() error {
	if err := (ID{Namespace: r.Namespace, ID: r.ID}).Validate(); err != nil {
		return err
	}
	if r.Version <= 0 {
		return domain.NewMalformedIdentifier("version must be a positive integer")
	}
	return nil
}

// WorkflowID returns the (namespace, id) pair for this revision identifier.
func (r RevisionID) WorkflowID() ID { return ID{Namespace: r.Namespace, ID: r.ID} }
