package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/execution"
)

// ExecutionStore is the SQLite-backed implementation of execution.Store.
type ExecutionStore struct {
	db *sql.DB
}

// NewExecutionStore wraps db as an execution.Store.
func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

var _ execution.Store = (*ExecutionStore)(nil)

func (s *ExecutionStore) CreateExecution(ctx context.Context, exec execution.WorkflowExecution) error {
	inputJSON, err := json.Marshal(exec.InputParameters)
	if err != nil {
		return fmt.Errorf("marshal input parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (execution_id, revision_namespace, revision_workflow_id, revision_version,
		                          input_parameters, status, error_message, started_at, completed_at, last_updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ExecutionID.String(), exec.RevisionNS, exec.RevisionWFID, exec.RevisionVersion,
		string(inputJSON), string(exec.Status), exec.ErrorMessage,
		exec.StartedAt.Format(time.RFC3339Nano), "", exec.LastUpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

func (s *ExecutionStore) UpdateExecutionStatus(ctx context.Context, id domain.NanoID, status execution.Status, errorMessage string) error {
	now := domain.Now()
	completedAt := ""
	if status.IsTerminal() {
		completedAt = now.Format(time.RFC3339Nano)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET status = ?, error_message = ?, completed_at = ?, last_updated_at = ? WHERE execution_id = ?`,
		string(status), errorMessage, completedAt, now.Format(time.RFC3339Nano), id.String(),
	)
	if err != nil {
		return fmt.Errorf("update execution status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFound(fmt.Sprintf("execution %s not found", id))
	}
	return nil
}

func (s *ExecutionStore) FindByID(ctx context.Context, id domain.NanoID) (execution.WorkflowExecution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT execution_id, revision_namespace, revision_workflow_id, revision_version, input_parameters,
		        status, error_message, started_at, completed_at, last_updated_at
		 FROM executions WHERE execution_id = ?`, id.String(),
	)
	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return execution.WorkflowExecution{}, domain.NewNotFound(fmt.Sprintf("execution %s not found", id))
	}
	if err != nil {
		return execution.WorkflowExecution{}, err
	}
	return exec, nil
}

func (s *ExecutionStore) SaveStepResult(ctx context.Context, result execution.StepResult) error {
	inputJSON, err := json.Marshal(result.InputData)
	if err != nil {
		return fmt.Errorf("marshal step input: %w", err)
	}
	outputJSON, err := json.Marshal(result.OutputData)
	if err != nil {
		return fmt.Errorf("marshal step output: %w", err)
	}
	var errorDetailsJSON []byte
	if result.ErrorDetails != nil {
		errorDetailsJSON, err = json.Marshal(result.ErrorDetails)
		if err != nil {
			return fmt.Errorf("marshal error details: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO step_results (result_id, execution_id, step_index, step_id, step_type, status,
		                           input_data, output_data, error_message, error_details, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ResultID.String(), result.ExecutionID.String(), result.StepIndex, result.StepID, result.StepType,
		string(result.Status), string(inputJSON), string(outputJSON), result.ErrorMessage, string(errorDetailsJSON),
		result.StartedAt.Format(time.RFC3339Nano), result.CompletedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert step result: %w", err)
	}
	return nil
}

func (s *ExecutionStore) FindStepResultsByExecutionID(ctx context.Context, id domain.NanoID) ([]execution.StepResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result_id, execution_id, step_index, step_id, step_type, status,
		        input_data, output_data, error_message, error_details, started_at, completed_at
		 FROM step_results WHERE execution_id = ? ORDER BY step_index ASC`, id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("find step results: %w", err)
	}
	defer rows.Close()

	var out []execution.StepResult
	for rows.Next() {
		result, err := scanStepResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

func (s *ExecutionStore) FindByStatus(ctx context.Context, status execution.Status) ([]execution.WorkflowExecution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT execution_id, revision_namespace, revision_workflow_id, revision_version, input_parameters,
		        status, error_message, started_at, completed_at, last_updated_at
		 FROM executions WHERE status = ? ORDER BY started_at ASC`, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("find executions by status: %w", err)
	}
	defer rows.Close()

	var out []execution.WorkflowExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

func (s *ExecutionStore) FindByWorkflow(ctx context.Context, namespace, workflowID string, filter execution.WorkflowFilter) ([]execution.WorkflowExecution, error) {
	query, args := workflowFilterQuery(namespace, workflowID, filter, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find executions by workflow: %w", err)
	}
	defer rows.Close()

	var out []execution.WorkflowExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

func (s *ExecutionStore) CountByWorkflow(ctx context.Context, namespace, workflowID string, filter execution.WorkflowFilter) (int, error) {
	query, args := workflowFilterQuery(namespace, workflowID, filter, true)
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count executions by workflow: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func workflowFilterQuery(namespace, workflowID string, filter execution.WorkflowFilter, countOnly bool) (string, []interface{}) {
	selectClause := `SELECT execution_id, revision_namespace, revision_workflow_id, revision_version, input_parameters,
	                         status, error_message, started_at, completed_at, last_updated_at`
	if countOnly {
		selectClause = `SELECT COUNT(*)`
	}
	query := selectClause + ` FROM executions WHERE revision_namespace = ? AND revision_workflow_id = ?`
	args := []interface{}{namespace, workflowID}

	if filter.Version != nil {
		query += ` AND revision_version = ?`
		args = append(args, *filter.Version)
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if !countOnly {
		query += ` ORDER BY started_at DESC`
		limit := filter.Limit
		if limit <= 0 || limit > 100 {
			limit = 100
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}
	return query, args
}

func scanExecution(row rowScanner) (execution.WorkflowExecution, error) {
	var (
		executionID, namespace, workflowID string
		version                            int
		inputJSON                          string
		status, errorMessage               string
		startedAtStr, completedAtStr, lastUpdatedAtStr string
	)
	if err := row.Scan(&executionID, &namespace, &workflowID, &version, &inputJSON,
		&status, &errorMessage, &startedAtStr, &completedAtStr, &lastUpdatedAtStr); err != nil {
		return execution.WorkflowExecution{}, err
	}

	var inputParameters map[string]interface{}
	if err := json.Unmarshal([]byte(inputJSON), &inputParameters); err != nil {
		return execution.WorkflowExecution{}, fmt.Errorf("unmarshal input parameters: %w", err)
	}

	startedAt, err := time.Parse(time.RFC3339Nano, startedAtStr)
	if err != nil {
		return execution.WorkflowExecution{}, fmt.Errorf("parse started_at: %w", err)
	}
	lastUpdatedAt, err := time.Parse(time.RFC3339Nano, lastUpdatedAtStr)
	if err != nil {
		return execution.WorkflowExecution{}, fmt.Errorf("parse last_updated_at: %w", err)
	}
	var completedAt domain.Timestamp
	if completedAtStr != "" {
		t, err := time.Parse(time.RFC3339Nano, completedAtStr)
		if err != nil {
			return execution.WorkflowExecution{}, fmt.Errorf("parse completed_at: %w", err)
		}
		completedAt = domain.TimestampFrom(t)
	}

	return execution.WorkflowExecution{
		ExecutionID:     domain.NanoID(executionID),
		RevisionNS:      namespace,
		RevisionWFID:    workflowID,
		RevisionVersion: version,
		InputParameters: inputParameters,
		Status:          execution.Status(status),
		ErrorMessage:    errorMessage,
		StartedAt:       domain.TimestampFrom(startedAt),
		CompletedAt:     completedAt,
		LastUpdatedAt:   domain.TimestampFrom(lastUpdatedAt),
	}, nil
}

func scanStepResult(row rowScanner) (execution.StepResult, error) {
	var (
		resultID, executionID, stepID, stepType, status string
		stepIndex                                        int
		inputJSON, outputJSON, errorMessage, errorDetailsJSON string
		startedAtStr, completedAtStr                     string
	)
	if err := row.Scan(&resultID, &executionID, &stepIndex, &stepID, &stepType, &status,
		&inputJSON, &outputJSON, &errorMessage, &errorDetailsJSON, &startedAtStr, &completedAtStr); err != nil {
		return execution.StepResult{}, err
	}

	var inputData, outputData map[string]interface{}
	if inputJSON != "" && inputJSON != "null" {
		if err := json.Unmarshal([]byte(inputJSON), &inputData); err != nil {
			return execution.StepResult{}, fmt.Errorf("unmarshal step input: %w", err)
		}
	}
	if outputJSON != "" && outputJSON != "null" {
		if err := json.Unmarshal([]byte(outputJSON), &outputData); err != nil {
			return execution.StepResult{}, fmt.Errorf("unmarshal step output: %w", err)
		}
	}
	var errorDetails *execution.ErrorInfo
	if errorDetailsJSON != "" {
		errorDetails = &execution.ErrorInfo{}
		if err := json.Unmarshal([]byte(errorDetailsJSON), errorDetails); err != nil {
			return execution.StepResult{}, fmt.Errorf("unmarshal error details: %w", err)
		}
	}

	startedAt, err := time.Parse(time.RFC3339Nano, startedAtStr)
	if err != nil {
		return execution.StepResult{}, fmt.Errorf("parse started_at: %w", err)
	}
	completedAt, err := time.Parse(time.RFC3339Nano, completedAtStr)
	if err != nil {
		return execution.StepResult{}, fmt.Errorf("parse completed_at: %w", err)
	}

	return execution.StepResult{
		ResultID:     domain.NanoID(resultID),
		ExecutionID:  domain.NanoID(executionID),
		StepIndex:    stepIndex,
		StepID:       stepID,
		StepType:     stepType,
		Status:       execution.StepStatus(status),
		InputData:    inputData,
		OutputData:   outputData,
		ErrorMessage: errorMessage,
		ErrorDetails: errorDetails,
		StartedAt:    domain.TimestampFrom(startedAt),
		CompletedAt:  domain.TimestampFrom(completedAt),
	}, nil
}
