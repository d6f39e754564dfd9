package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/workflow"
)

// RevisionStore is the SQLite-backed implementation of workflow.RevisionStore.
type RevisionStore struct {
	db *sql.DB
}

// NewRevisionStore wraps db as a workflow.RevisionStore.
func NewRevisionStore(db *sql.DB) *RevisionStore {
	return &RevisionStore{db: db}
}

var _ workflow.RevisionStore = (*RevisionStore)(nil)

func (s *RevisionStore) SaveFirst(ctx context.Context, rev workflow.WithSource) (workflow.WithSource, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return workflow.WithSource{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM revisions WHERE namespace = ? AND workflow_id = ? LIMIT 1`,
		rev.Revision.Namespace, rev.Revision.ID,
	).Scan(&exists)
	if err == nil {
		return workflow.WithSource{}, domain.NewAlreadyExists(fmt.Sprintf("workflow %s/%s already exists", rev.Revision.Namespace, rev.Revision.ID))
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return workflow.WithSource{}, fmt.Errorf("check existing workflow: %w", err)
	}

	rev.Revision.Version = 1
	if rev.Revision.CreatedAt.IsZero() {
		rev.Revision.CreatedAt = domain.Now()
	}
	rev.Revision.UpdatedAt = rev.Revision.CreatedAt
	// New revisions always start inactive; activation goes through SetActive.
	rev.Revision.Active = false

	patched, err := patchAssignedMetadata(rev.Source, rev.Format, rev.Revision.Version, rev.Revision.CreatedAt, rev.Revision.UpdatedAt, false)
	if err != nil {
		return workflow.WithSource{}, err
	}
	rev.Source = patched

	if err := insertRevision(ctx, tx, rev); err != nil {
		return workflow.WithSource{}, err
	}
	if err := tx.Commit(); err != nil {
		return workflow.WithSource{}, fmt.Errorf("commit: %w", err)
	}
	return rev, nil
}

func (s *RevisionStore) SaveNext(ctx context.Context, namespace, id string, rev workflow.WithSource) (workflow.WithSource, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return workflow.WithSource{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM revisions WHERE namespace = ? AND workflow_id = ?`,
		namespace, id,
	).Scan(&maxVersion); err != nil {
		return workflow.WithSource{}, fmt.Errorf("select max version: %w", err)
	}
	if !maxVersion.Valid {
		return workflow.WithSource{}, domain.NewNotFound(fmt.Sprintf("workflow %s/%s not found", namespace, id))
	}

	rev.Revision.Namespace = namespace
	rev.Revision.ID = id
	rev.Revision.Version = int(maxVersion.Int64) + 1
	now := domain.Now()
	rev.Revision.CreatedAt = now
	rev.Revision.UpdatedAt = now
	rev.Revision.Active = false

	patched, err := patchAssignedMetadata(rev.Source, rev.Format, rev.Revision.Version, now, now, false)
	if err != nil {
		return workflow.WithSource{}, err
	}
	rev.Source = patched

	if err := insertRevision(ctx, tx, rev); err != nil {
		return workflow.WithSource{}, err
	}
	if err := tx.Commit(); err != nil {
		return workflow.WithSource{}, fmt.Errorf("commit: %w", err)
	}
	return rev, nil
}

func (s *RevisionStore) UpdateInactive(ctx context.Context, rev workflow.WithSource) (workflow.WithSource, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return workflow.WithSource{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := rev.Revision.RevisionID()
	existing, err := getRevisionTx(ctx, tx, id)
	if err != nil {
		return workflow.WithSource{}, err
	}
	if existing.Active {
		return workflow.WithSource{}, domain.NewActiveConflict("cannot update an active revision")
	}

	parametersJSON, err := json.Marshal(rev.Revision.Parameters)
	if err != nil {
		return workflow.WithSource{}, fmt.Errorf("marshal parameters: %w", err)
	}
	stepsJSON, err := encodeSteps(rev.Revision.Steps)
	if err != nil {
		return workflow.WithSource{}, err
	}

	updatedAt := domain.Now()
	patched, err := patchAssignedMetadata(rev.Source, rev.Format, id.Version, existing.CreatedAt, updatedAt, existing.Active)
	if err != nil {
		return workflow.WithSource{}, err
	}
	rev.Source = patched

	_, err = tx.ExecContext(ctx,
		`UPDATE revisions SET name = ?, description = ?, parameters = ?, steps = ?, source = ?, format = ?, updated_at = ?
		 WHERE namespace = ? AND workflow_id = ? AND version = ?`,
		rev.Revision.Name, rev.Revision.Description, string(parametersJSON), string(stepsJSON), rev.Source, rev.Format,
		updatedAt.Format(time.RFC3339Nano), id.Namespace, id.ID, id.Version,
	)
	if err != nil {
		return workflow.WithSource{}, fmt.Errorf("update revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return workflow.WithSource{}, fmt.Errorf("commit: %w", err)
	}

	rev.Revision.CreatedAt = existing.CreatedAt
	rev.Revision.Active = existing.Active
	rev.Revision.UpdatedAt = updatedAt
	return rev, nil
}

func (s *RevisionStore) SetActive(ctx context.Context, id workflow.RevisionID, expectedUpdatedAt domain.Timestamp, active bool) (workflow.WithSource, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return workflow.WithSource{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var currentSource, currentFormat string
	var currentUpdatedAt string
	err = tx.QueryRowContext(ctx,
		`SELECT source, format, updated_at FROM revisions WHERE namespace = ? AND workflow_id = ? AND version = ?`,
		id.Namespace, id.ID, id.Version,
	).Scan(&currentSource, &currentFormat, &currentUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.WithSource{}, domain.NewNotFound(fmt.Sprintf("revision %s/%s/%d not found", id.Namespace, id.ID, id.Version))
	}
	if err != nil {
		return workflow.WithSource{}, fmt.Errorf("select revision for activation: %w", err)
	}

	if currentUpdatedAt != expectedUpdatedAt.Format(time.RFC3339Nano) {
		return workflow.WithSource{}, domain.NewOptimisticLockConflict(
			fmt.Sprintf("expected updatedAt %s but current is %s", expectedUpdatedAt.Format(time.RFC3339Nano), currentUpdatedAt))
	}

	newUpdatedAt := domain.Now()
	newSource, err := patchMetadataSource(currentSource, currentFormat, newUpdatedAt, active)
	if err != nil {
		return workflow.WithSource{}, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE revisions SET active = ?, updated_at = ?, source = ?
		 WHERE namespace = ? AND workflow_id = ? AND version = ? AND updated_at = ?`,
		boolToInt(active), newUpdatedAt.Format(time.RFC3339Nano), newSource,
		id.Namespace, id.ID, id.Version, currentUpdatedAt,
	)
	if err != nil {
		return workflow.WithSource{}, fmt.Errorf("update active flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return workflow.WithSource{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return workflow.WithSource{}, domain.NewOptimisticLockConflict("concurrent writer updated this revision first")
	}
	if err := tx.Commit(); err != nil {
		return workflow.WithSource{}, fmt.Errorf("commit: %w", err)
	}

	return getRevisionWithSource(ctx, s.db, id)
}

func (s *RevisionStore) Get(ctx context.Context, id workflow.RevisionID) (workflow.Revision, error) {
	withSource, err := getRevisionWithSource(ctx, s.db, id)
	if err != nil {
		return workflow.Revision{}, err
	}
	return withSource.Revision, nil
}

func (s *RevisionStore) GetWithSource(ctx context.Context, id workflow.RevisionID) (workflow.WithSource, error) {
	return getRevisionWithSource(ctx, s.db, id)
}

func (s *RevisionStore) ListByWorkflow(ctx context.Context, namespace, id string, activeOnly *bool) ([]workflow.Revision, error) {
	query := `SELECT version, created_at, name, description, parameters, steps, active, updated_at
	          FROM revisions WHERE namespace = ? AND workflow_id = ?`
	args := []interface{}{namespace, id}
	if activeOnly != nil {
		query += ` AND active = ?`
		args = append(args, boolToInt(*activeOnly))
	}
	query += ` ORDER BY version ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []workflow.Revision
	for rows.Next() {
		rev, err := scanRevision(rows, namespace, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	if activeOnly != nil && *activeOnly && len(out) == 0 {
		return nil, domain.NewNotFound(fmt.Sprintf("no active revision for workflow %s/%s", namespace, id))
	}
	return out, nil
}

func (s *RevisionStore) DeleteRevision(ctx context.Context, id workflow.RevisionID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT active FROM revisions WHERE namespace = ? AND workflow_id = ? AND version = ?`,
		id.Namespace, id.ID, id.Version,
	).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFound(fmt.Sprintf("revision %s/%s/%d not found", id.Namespace, id.ID, id.Version))
	}
	if err != nil {
		return fmt.Errorf("select revision for delete: %w", err)
	}
	if active != 0 {
		return domain.NewActiveConflict("cannot delete an active revision")
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM revisions WHERE namespace = ? AND workflow_id = ? AND version = ?`,
		id.Namespace, id.ID, id.Version,
	); err != nil {
		return fmt.Errorf("delete revision: %w", err)
	}
	return tx.Commit()
}

func (s *RevisionStore) DeleteWorkflow(ctx context.Context, namespace, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var activeCount int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revisions WHERE namespace = ? AND workflow_id = ? AND active = 1`,
		namespace, id,
	).Scan(&activeCount); err != nil {
		return fmt.Errorf("count active revisions: %w", err)
	}
	if activeCount > 0 {
		return domain.NewActiveConflict("cannot delete a workflow with an active revision")
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM revisions WHERE namespace = ? AND workflow_id = ?`, namespace, id,
	); err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	return tx.Commit()
}

func (s *RevisionStore) ListWorkflows(ctx context.Context, namespace string) ([]workflow.ID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT workflow_id FROM revisions WHERE namespace = ? ORDER BY workflow_id ASC`, namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []workflow.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workflow id: %w", err)
		}
		out = append(out, workflow.ID{Namespace: namespace, ID: id})
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func insertRevision(ctx context.Context, tx *sql.Tx, rev workflow.WithSource) error {
	parametersJSON, err := json.Marshal(rev.Revision.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	stepsJSON, err := encodeSteps(rev.Revision.Steps)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO revisions (namespace, workflow_id, version, created_at, name, description, parameters, steps, active, updated_at, source, format)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rev.Revision.Namespace, rev.Revision.ID, rev.Revision.Version,
		rev.Revision.CreatedAt.Format(time.RFC3339Nano),
		rev.Revision.Name, rev.Revision.Description, string(parametersJSON), string(stepsJSON),
		boolToInt(rev.Revision.Active), rev.Revision.UpdatedAt.Format(time.RFC3339Nano),
		rev.Source, rev.Format,
	)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

func getRevisionTx(ctx context.Context, tx *sql.Tx, id workflow.RevisionID) (workflow.Revision, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT version, created_at, name, description, parameters, steps, active, updated_at
		 FROM revisions WHERE namespace = ? AND workflow_id = ? AND version = ?`,
		id.Namespace, id.ID, id.Version,
	)
	rev, err := scanRevision(row, id.Namespace, id.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.Revision{}, domain.NewNotFound(fmt.Sprintf("revision %s/%s/%d not found", id.Namespace, id.ID, id.Version))
	}
	return rev, err
}

func getRevisionWithSource(ctx context.Context, db *sql.DB, id workflow.RevisionID) (workflow.WithSource, error) {
	row := db.QueryRowContext(ctx,
		`SELECT version, created_at, name, description, parameters, steps, active, updated_at, source, format
		 FROM revisions WHERE namespace = ? AND workflow_id = ? AND version = ?`,
		id.Namespace, id.ID, id.Version,
	)

	var (
		version                                     int
		createdAtStr, name, description              string
		parametersJSON, stepsJSON                    string
		active                                       int
		updatedAtStr, source, format                 string
	)
	if err := row.Scan(&version, &createdAtStr, &name, &description, &parametersJSON, &stepsJSON, &active, &updatedAtStr, &source, &format); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.WithSource{}, domain.NewNotFound(fmt.Sprintf("revision %s/%s/%d not found", id.Namespace, id.ID, id.Version))
		}
		return workflow.WithSource{}, fmt.Errorf("scan revision: %w", err)
	}

	rev, err := buildRevision(id.Namespace, id.ID, version, createdAtStr, name, description, parametersJSON, stepsJSON, active, updatedAtStr)
	if err != nil {
		return workflow.WithSource{}, err
	}
	return workflow.WithSource{Revision: rev, Source: source, Format: format}, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRevision(row rowScanner, namespace, id string) (workflow.Revision, error) {
	var (
		version                         int
		createdAtStr, name, description string
		parametersJSON, stepsJSON       string
		active                          int
		updatedAtStr                    string
	)
	if err := row.Scan(&version, &createdAtStr, &name, &description, &parametersJSON, &stepsJSON, &active, &updatedAtStr); err != nil {
		return workflow.Revision{}, err
	}
	return buildRevision(namespace, id, version, createdAtStr, name, description, parametersJSON, stepsJSON, active, updatedAtStr)
}

func buildRevision(namespace, id string, version int, createdAtStr, name, description, parametersJSON, stepsJSON string, active int, updatedAtStr string) (workflow.Revision, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return workflow.Revision{}, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, updatedAtStr)
	if err != nil {
		return workflow.Revision{}, fmt.Errorf("parse updated_at: %w", err)
	}
	var parameters []workflow.ParameterDefinition
	if err := json.Unmarshal([]byte(parametersJSON), &parameters); err != nil {
		return workflow.Revision{}, fmt.Errorf("unmarshal parameters: %w", err)
	}
	steps, err := decodeSteps(stepsJSON)
	if err != nil {
		return workflow.Revision{}, err
	}
	return workflow.Revision{
		Namespace:   namespace,
		ID:          id,
		Version:     version,
		CreatedAt:   domain.TimestampFrom(createdAt),
		Name:        name,
		Description: description,
		Parameters:  parameters,
		Steps:       steps,
		Active:      active != 0,
		UpdatedAt:   domain.TimestampFrom(updatedAt),
	}, nil
}

func encodeSteps(steps []workflow.Step) ([]byte, error) {
	encoded := make([]map[string]interface{}, len(steps))
	for i, step := range steps {
		m := step.Encode()
		m["type"] = step.Type()
		encoded[i] = m
	}
	out, err := json.Marshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	return out, nil
}

func decodeSteps(stepsJSON string) ([]workflow.Step, error) {
	var raw []interface{}
	if err := json.Unmarshal([]byte(stepsJSON), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	steps := make([]workflow.Step, 0, len(raw))
	for _, r := range raw {
		step, err := workflow.DecodeStep(r)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
