package api

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowkeep/flowkeep/pkg/domain"
	workflowdomain "github.com/flowkeep/flowkeep/pkg/domain/workflow"
	"github.com/flowkeep/flowkeep/pkg/logger"
	"github.com/flowkeep/flowkeep/pkg/parser"
)

const (
	contentTypeYAML    = "application/yaml"
	contentTypeJSON    = "application/json"
	headerCurrentStamp = "X-Current-Updated-At"

	// maxDocumentBytes caps workflow document uploads.
	maxDocumentBytes = 1 << 20
)

// readDocument reads the request body as a workflow document and returns it
// together with the parser format implied by the Content-Type header.
func readDocument(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	mediaType := r.Header.Get("Content-Type")
	if mediaType != "" {
		if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
			mediaType = parsed
		}
	}

	var format string
	switch {
	case mediaType == contentTypeYAML, mediaType == "text/yaml", mediaType == "application/x-yaml":
		format = parser.FormatYAML
	case mediaType == contentTypeJSON:
		format = parser.FormatJSON
	default:
		badRequest(w, r, "Content-Type must be application/yaml or application/json")
		return nil, "", false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes+1))
	if err != nil {
		badRequest(w, r, "failed to read request body")
		return nil, "", false
	}
	if len(body) == 0 {
		badRequest(w, r, "request body is empty")
		return nil, "", false
	}
	if len(body) > maxDocumentBytes {
		badRequest(w, r, "document exceeds the maximum allowed size")
		return nil, "", false
	}
	return body, format, true
}

// writeSource responds with a revision's original document text, verbatim.
func writeSource(w http.ResponseWriter, status int, rev workflowdomain.WithSource) {
	if rev.Format == parser.FormatJSON {
		w.Header().Set("Content-Type", contentTypeJSON)
	} else {
		w.Header().Set("Content-Type", contentTypeYAML)
	}
	w.WriteHeader(status)
	io.WriteString(w, rev.Source)
}

// revisionSummary is the listing shape for one revision (without steps or
// source, which callers fetch individually).
type revisionSummary struct {
	Namespace   string `yaml:"namespace" json:"namespace"`
	ID          string `yaml:"id" json:"id"`
	Version     int    `yaml:"version" json:"version"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Active      bool   `yaml:"active" json:"active"`
	CreatedAt   string `yaml:"createdAt" json:"createdAt"`
	UpdatedAt   string `yaml:"updatedAt" json:"updatedAt"`
}

func summarize(rev workflowdomain.Revision) revisionSummary {
	return revisionSummary{
		Namespace:   rev.Namespace,
		ID:          rev.ID,
		Version:     rev.Version,
		Name:        rev.Name,
		Description: rev.Description,
		Active:      rev.Active,
		CreatedAt:   rev.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   rev.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	body, format, ok := readDocument(w, r)
	if !ok {
		return
	}
	saved, err := s.container.Workflows.CreateWorkflow(r.Context(), body, format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rev := saved.Revision
	logger.InfoC(logger.CategoryAPI, "workflow created",
		"workflow", rev.Namespace+"/"+rev.ID, "version", rev.Version, "requestId", requestID(r.Context()))
	w.Header().Set("Location", revisionPath(rev.Namespace, rev.ID, rev.Version))
	writeSource(w, http.StatusCreated, saved)
}

func (s *Server) handleCreateNextRevision(w http.ResponseWriter, r *http.Request) {
	body, format, ok := readDocument(w, r)
	if !ok {
		return
	}
	saved, err := s.container.Workflows.CreateNextRevision(r.Context(), r.PathValue("ns"), r.PathValue("id"), body, format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rev := saved.Revision
	logger.InfoC(logger.CategoryAPI, "revision created",
		"workflow", rev.Namespace+"/"+rev.ID, "version", rev.Version, "requestId", requestID(r.Context()))
	w.Header().Set("Location", revisionPath(rev.Namespace, rev.ID, rev.Version))
	writeSource(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRevisionID(w, r)
	if !ok {
		return
	}
	body, format, ok := readDocument(w, r)
	if !ok {
		return
	}
	saved, err := s.container.Workflows.UpdateInactiveRevision(r.Context(), id, body, format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSource(w, http.StatusOK, saved)
}

func (s *Server) handleGetRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRevisionID(w, r)
	if !ok {
		return
	}
	rev, err := s.container.Workflows.GetRevisionWithSource(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSource(w, http.StatusOK, rev)
}

func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	var activeOnly *bool
	if raw := r.URL.Query().Get("active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(w, r, "active must be a boolean")
			return
		}
		activeOnly = &parsed
	}
	revisions, err := s.container.Workflows.ListRevisions(r.Context(), r.PathValue("ns"), r.PathValue("id"), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries := make([]revisionSummary, len(revisions))
	for i, rev := range revisions {
		summaries[i] = summarize(rev)
	}
	writeYAML(w, http.StatusOK, summaries)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		badRequest(w, r, "namespace query parameter is required")
		return
	}
	ids, err := s.container.Workflows.ListWorkflows(r.Context(), namespace)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]map[string]string, len(ids))
	for i, id := range ids {
		out[i] = map[string]string{"namespace": id.Namespace, "id": id.ID}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.handleSetActive(w, r, true)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	s.handleSetActive(w, r, false)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathRevisionID(w, r)
	if !ok {
		return
	}
	stamp := strings.TrimSpace(r.Header.Get(headerCurrentStamp))
	if stamp == "" {
		badRequest(w, r, headerCurrentStamp+" header is required")
		return
	}
	expected, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		badRequest(w, r, headerCurrentStamp+" must be an ISO-8601 timestamp")
		return
	}

	var saved workflowdomain.WithSource
	if active {
		saved, err = s.container.Workflows.Activate(r.Context(), id, domain.TimestampFrom(expected))
	} else {
		saved, err = s.container.Workflows.Deactivate(r.Context(), id, domain.TimestampFrom(expected))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSource(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRevisionID(w, r)
	if !ok {
		return
	}
	if err := s.container.Workflows.DeleteRevision(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.container.Workflows.DeleteWorkflow(r.Context(), r.PathValue("ns"), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathRevisionID extracts and validates {ns}/{id}/{version} from the path.
func pathRevisionID(w http.ResponseWriter, r *http.Request) (workflowdomain.RevisionID, bool) {
	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		writeError(w, r, domain.NewMalformedIdentifier("version must be a positive integer"))
		return workflowdomain.RevisionID{}, false
	}
	id := workflowdomain.RevisionID{
		Namespace: r.PathValue("ns"),
		ID:        r.PathValue("id"),
		Version:   version,
	}
	if err := id.Validate(); err != nil {
		writeError(w, r, err)
		return workflowdomain.RevisionID{}, false
	}
	return id, true
}

func writeYAML(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeYAML)
	w.WriteHeader(status)
	if err := yaml.NewEncoder(w).Encode(data); err != nil {
		logger.ErrorC(logger.CategoryAPI, "encode yaml response", "error", err)
	}
}
