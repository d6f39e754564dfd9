package app

import (
	stdcontext "context"

	"github.com/flowkeep/flowkeep/pkg/domain"
	workflowdomain "github.com/flowkeep/flowkeep/pkg/domain/workflow"
	"github.com/flowkeep/flowkeep/pkg/parser"
)

// WorkflowService orchestrates the revision lifecycle use cases for callers
// that only have document bytes: create, update-while-inactive,
// activate/deactivate, delete, and listing.
type WorkflowService struct {
	revisions workflowdomain.RevisionStore
	eventBus  domain.EventBus
}

// NewWorkflowService creates a new workflow application service.
func NewWorkflowService(revisions workflowdomain.RevisionStore, eventBus domain.EventBus) *WorkflowService {
	return &WorkflowService{revisions: revisions, eventBus: eventBus}
}

// CreateWorkflow parses source as version 1 of a new workflow and persists
// it. Returns AlreadyExists if (namespace,id) already has a version 1.
func (s *WorkflowService) CreateWorkflow(ctx stdcontext.Context, source []byte, format string) (workflowdomain.WithSource, error) {
	parsed, err := parseForCreate(source, format)
	if err != nil {
		return workflowdomain.WithSource{}, err
	}
	saved, err := s.revisions.SaveFirst(ctx, parsed)
	if err != nil {
		return workflowdomain.WithSource{}, err
	}
	s.publish(domain.EventWorkflowCreated, saved.Revision)
	return saved, nil
}

// CreateNextRevision parses source and stores it as the next version of an
// existing workflow. Returns NotFound if the workflow does not exist.
func (s *WorkflowService) CreateNextRevision(ctx stdcontext.Context, namespace, id string, source []byte, format string) (workflowdomain.WithSource, error) {
	parsed, err := parseForCreate(source, format)
	if err != nil {
		return workflowdomain.WithSource{}, err
	}
	rev := parsed.Revision
	if (rev.Namespace != "" && rev.Namespace != namespace) || (rev.ID != "" && rev.ID != id) {
		return workflowdomain.WithSource{}, domain.NewInvalidRevision("document identity does not match the target workflow")
	}
	saved, err := s.revisions.SaveNext(ctx, namespace, id, parsed)
	if err != nil {
		return workflowdomain.WithSource{}, err
	}
	s.publish(domain.EventWorkflowCreated, saved.Revision)
	return saved, nil
}

// UpdateInactiveRevision replaces name/description/parameters/steps/source
// for an existing, inactive revision. The document's identity fields must
// match id when present; absent ones are filled in from the path.
func (s *WorkflowService) UpdateInactiveRevision(ctx stdcontext.Context, id workflowdomain.RevisionID, source []byte, format string) (workflowdomain.WithSource, error) {
	parsed, err := parser.Parse(source, format)
	if err != nil {
		return workflowdomain.WithSource{}, err
	}
	rev := &parsed.Revision
	if rev.Namespace == "" {
		rev.Namespace = id.Namespace
	}
	if rev.ID == "" {
		rev.ID = id.ID
	}
	if rev.Version == 0 {
		rev.Version = id.Version
	}
	if rev.Namespace != id.Namespace || rev.ID != id.ID || rev.Version != id.Version {
		return workflowdomain.WithSource{}, domain.NewInvalidRevision("document identity does not match the revision being updated")
	}
	if err := rev.Validate(); err != nil {
		return workflowdomain.WithSource{}, err
	}
	return s.revisions.UpdateInactive(ctx, parsed)
}

// Activate flips active to true under optimistic-lock CAS.
func (s *WorkflowService) Activate(ctx stdcontext.Context, id workflowdomain.RevisionID, expectedUpdatedAt domain.Timestamp) (workflowdomain.WithSource, error) {
	saved, err := s.revisions.SetActive(ctx, id, expectedUpdatedAt, true)
	if err != nil {
		return workflowdomain.WithSource{}, err
	}
	s.publish(domain.EventWorkflowActivated, saved.Revision)
	return saved, nil
}

// Deactivate flips active to false under optimistic-lock CAS.
func (s *WorkflowService) Deactivate(ctx stdcontext.Context, id workflowdomain.RevisionID, expectedUpdatedAt domain.Timestamp) (workflowdomain.WithSource, error) {
	saved, err := s.revisions.SetActive(ctx, id, expectedUpdatedAt, false)
	if err != nil {
		return workflowdomain.WithSource{}, err
	}
	s.publish(domain.EventWorkflowDeactivated, saved.Revision)
	return saved, nil
}

// GetRevision fetches one revision without its source text.
func (s *WorkflowService) GetRevision(ctx stdcontext.Context, id workflowdomain.RevisionID) (workflowdomain.Revision, error) {
	return s.revisions.Get(ctx, id)
}

// GetRevisionWithSource fetches one revision including its original source.
func (s *WorkflowService) GetRevisionWithSource(ctx stdcontext.Context, id workflowdomain.RevisionID) (workflowdomain.WithSource, error) {
	return s.revisions.GetWithSource(ctx, id)
}

// ListRevisions lists revisions for a workflow, optionally filtered to only
// active ones.
func (s *WorkflowService) ListRevisions(ctx stdcontext.Context, namespace, id string, activeOnly *bool) ([]workflowdomain.Revision, error) {
	return s.revisions.ListByWorkflow(ctx, namespace, id, activeOnly)
}

// DeleteRevision removes one revision. Rejected if it is active.
func (s *WorkflowService) DeleteRevision(ctx stdcontext.Context, id workflowdomain.RevisionID) error {
	return s.revisions.DeleteRevision(ctx, id)
}

// DeleteWorkflow removes every revision of a workflow. Rejected if any
// revision is active; idempotent otherwise.
func (s *WorkflowService) DeleteWorkflow(ctx stdcontext.Context, namespace, id string) error {
	if err := s.revisions.DeleteWorkflow(ctx, namespace, id); err != nil {
		return err
	}
	s.publish(domain.EventWorkflowDeleted, workflowdomain.Revision{Namespace: namespace, ID: id})
	return nil
}

// ListWorkflows returns the distinct (namespace,id) pairs under namespace.
func (s *WorkflowService) ListWorkflows(ctx stdcontext.Context, namespace string) ([]workflowdomain.ID, error) {
	return s.revisions.ListWorkflows(ctx, namespace)
}

// parseForCreate parses a document whose version the store has yet to
// assign: an absent version is allowed, any version the author did write is
// ignored in favor of the store's assignment.
func parseForCreate(source []byte, format string) (workflowdomain.WithSource, error) {
	parsed, err := parser.Parse(source, format)
	if err != nil {
		return workflowdomain.WithSource{}, err
	}
	if parsed.Revision.Version == 0 {
		parsed.Revision.Version = 1
	}
	if err := parsed.Revision.Validate(); err != nil {
		return workflowdomain.WithSource{}, err
	}
	return parsed, nil
}

func (s *WorkflowService) publish(eventType domain.EventType, rev workflowdomain.Revision) {
	if s.eventBus == nil {
		return
	}
	aggregateID := rev.Namespace + "/" + rev.ID
	s.eventBus.Publish(domain.NewEvent(eventType, aggregateID, rev))
}
