package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/flowkeep/flowkeep/pkg/domain/execution"
	workflowdomain "github.com/flowkeep/flowkeep/pkg/domain/workflow"
)

// executeRequest is the POST /api/executions body.
type executeRequest struct {
	Namespace  string                 `json:"namespace"`
	ID         string                 `json:"id"`
	Version    int                    `json:"version"`
	Parameters map[string]interface{} `json:"parameters"`
}

// executionResponse is the JSON shape of one execution record.
type executionResponse struct {
	ExecutionID     string                 `json:"executionId"`
	Status          string                 `json:"status"`
	RevisionID      string                 `json:"revisionId"`
	InputParameters map[string]interface{} `json:"inputParameters"`
	ErrorMessage    string                 `json:"errorMessage,omitempty"`
	StartedAt       string                 `json:"startedAt"`
	CompletedAt     string                 `json:"completedAt,omitempty"`
	Steps           []stepResultResponse   `json:"steps,omitempty"`
	Links           map[string]link        `json:"_links,omitempty"`
}

type stepResultResponse struct {
	StepIndex    int                    `json:"stepIndex"`
	StepID       string                 `json:"stepId"`
	StepType     string                 `json:"stepType"`
	Status       string                 `json:"status"`
	InputData    map[string]interface{} `json:"inputData,omitempty"`
	OutputData   map[string]interface{} `json:"outputData,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	ErrorDetails *execution.ErrorInfo   `json:"errorDetails,omitempty"`
	StartedAt    string                 `json:"startedAt"`
	CompletedAt  string                 `json:"completedAt"`
}

type link struct {
	Href string `json:"href"`
}

func toExecutionResponse(exec execution.WorkflowExecution, steps []execution.StepResult, includeLinks bool) executionResponse {
	resp := executionResponse{
		ExecutionID:     exec.ExecutionID.String(),
		Status:          string(exec.Status),
		RevisionID:      fmt.Sprintf("%s/%s/%d", exec.RevisionNS, exec.RevisionWFID, exec.RevisionVersion),
		InputParameters: exec.InputParameters,
		ErrorMessage:    exec.ErrorMessage,
		StartedAt:       exec.StartedAt.Format(time.RFC3339Nano),
	}
	if !exec.CompletedAt.IsZero() {
		resp.CompletedAt = exec.CompletedAt.Format(time.RFC3339Nano)
	}
	for _, step := range steps {
		resp.Steps = append(resp.Steps, stepResultResponse{
			StepIndex:    step.StepIndex,
			StepID:       step.StepID,
			StepType:     step.StepType,
			Status:       string(step.Status),
			InputData:    step.InputData,
			OutputData:   step.OutputData,
			ErrorMessage: step.ErrorMessage,
			ErrorDetails: step.ErrorDetails,
			StartedAt:    step.StartedAt.Format(time.RFC3339Nano),
			CompletedAt:  step.CompletedAt.Format(time.RFC3339Nano),
		})
	}
	if includeLinks {
		resp.Links = map[string]link{
			"self":     {Href: "/api/executions/" + exec.ExecutionID.String()},
			"workflow": {Href: revisionPath(exec.RevisionNS, exec.RevisionWFID, exec.RevisionVersion)},
			"stream":   {Href: "/api/executions/" + exec.ExecutionID.String() + "/stream"},
		}
	}
	return resp
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	id := workflowdomain.RevisionID{Namespace: req.Namespace, ID: req.ID, Version: req.Version}
	if req.Parameters == nil {
		req.Parameters = map[string]interface{}{}
	}

	exec, err := s.container.Runs.Execute(r.Context(), id, req.Parameters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionResponse(exec, nil, true))
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	trace, err := s.container.Runs.GetTrace(r.Context(), r.PathValue("executionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionResponse(trace.Execution, trace.Steps, true))
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := execution.WorkflowFilter{Limit: 100}

	if raw := q.Get("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			badRequest(w, r, "version must be a positive integer")
			return
		}
		filter.Version = &v
	}
	if raw := q.Get("status"); raw != "" {
		status := execution.Status(raw)
		switch status {
		case execution.StatusPending, execution.StatusRunning, execution.StatusCompleted,
			execution.StatusFailed, execution.StatusCancelled:
			filter.Status = &status
		default:
			badRequest(w, r, "status must be one of PENDING, RUNNING, COMPLETED, FAILED, CANCELLED")
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			badRequest(w, r, "limit must be between 1 and 100")
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			badRequest(w, r, "offset must be non-negative")
			return
		}
		filter.Offset = offset
	}

	execs, total, err := s.container.Runs.ListByWorkflow(r.Context(), r.PathValue("ns"), r.PathValue("id"), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]executionResponse, len(execs))
	for i, exec := range execs {
		items[i] = toExecutionResponse(exec, nil, false)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
		"items":  items,
	})
}
