package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
)

// WorkflowRepository handles workflow template rows.
type WorkflowRepository struct {
	db *sql.DB
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT id, name, description, owner, nodes, created_at, updated_at
		FROM workflows
		WHERE id = $1
	`

	var (
		workflow  models.Workflow
		nodesJSON []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID, &workflow.Name, &workflow.Description, &workflow.Owner,
		&nodesJSON, &workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := json.Unmarshal(nodesJSON, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow nodes: %w", err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	nodesJSON, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow nodes: %w", err)
	}

	query := `
		INSERT INTO workflows (id, name, description, owner, nodes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			owner = EXCLUDED.owner,
			nodes = EXCLUDED.nodes,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Description, workflow.Owner,
		nodesJSON, workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// ExecutionRepository handles execution record rows.
type ExecutionRepository struct {
	db *sql.DB
}

const executionColumns = `
	id, workflow_id, user_id, status, input, variables, step_results,
	triggered_by, trigger_data, ai_tokens_used, api_calls_made, error,
	started_at, completed_at
`

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	inputJSON, err := json.Marshal(execution.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	variablesJSON, err := json.Marshal(execution.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	stepResultsJSON, err := json.Marshal(execution.StepResults)
	if err != nil {
		return fmt.Errorf("failed to marshal step results: %w", err)
	}

	triggerDataJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	var errorJSON []byte
	if execution.Error != nil {
		errorJSON, err = json.Marshal(execution.Error)
		if err != nil {
			return fmt.Errorf("failed to marshal execution error: %w", err)
		}
	}

	query := `
		INSERT INTO workflow_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			variables = EXCLUDED.variables,
			step_results = EXCLUDED.step_results,
			ai_tokens_used = EXCLUDED.ai_tokens_used,
			api_calls_made = EXCLUDED.api_calls_made,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.UserID, execution.Status,
		inputJSON, variablesJSON, stepResultsJSON,
		execution.TriggeredBy, triggerDataJSON,
		execution.AITokensUsed, execution.APICallsMade, errorJSON,
		nullableTime(execution.StartedAt), execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution       models.WorkflowExecution
		inputJSON       []byte
		variablesJSON   []byte
		stepResultsJSON []byte
		triggerDataJSON []byte
		errorJSON       []byte
		startedAt       sql.NullTime
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.UserID, &execution.Status,
		&inputJSON, &variablesJSON, &stepResultsJSON,
		&execution.TriggeredBy, &triggerDataJSON,
		&execution.AITokensUsed, &execution.APICallsMade, &errorJSON,
		&startedAt, &execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		execution.StartedAt = startedAt.Time
	}

	for _, field := range []struct {
		data []byte
		dest any
	}{
		{inputJSON, &execution.Input},
		{variablesJSON, &execution.Variables},
		{stepResultsJSON, &execution.StepResults},
		{triggerDataJSON, &execution.TriggerData},
		{errorJSON, &execution.Error},
	} {
		if len(field.data) == 0 {
			continue
		}

		if err := json.Unmarshal(field.data, field.dest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution field: %w", err)
		}
	}

	return &execution, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t
}

// ApprovalRepository handles approval request rows.
type ApprovalRepository struct {
	db *sql.DB
}

const approvalColumns = `
	id, execution_id, node_id, approval_type, status, message, requested_by,
	approval_data, fields, created_at, timeout_at, resolved_at
`

func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE id = $1`

	approval, err := scanApproval(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrApprovalNotFound
		}

		return nil, fmt.Errorf("failed to scan approval request: %w", err)
	}

	return approval, nil
}

func (r *ApprovalRepository) Save(ctx context.Context, approval *models.ApprovalRequest) error {
	dataJSON, err := json.Marshal(approval.ApprovalData)
	if err != nil {
		return fmt.Errorf("failed to marshal approval data: %w", err)
	}

	fieldsJSON, err := json.Marshal(approval.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal approval fields: %w", err)
	}

	query := `
		INSERT INTO approval_requests (` + approvalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			approval_data = EXCLUDED.approval_data,
			resolved_at = EXCLUDED.resolved_at
	`

	_, err = r.db.ExecContext(ctx, query,
		approval.ID, approval.ExecutionID, approval.NodeID, approval.ApprovalType,
		approval.Status, approval.Message, approval.RequestedBy,
		dataJSON, fieldsJSON, approval.CreatedAt, approval.TimeoutAt, approval.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save approval request: %w", err)
	}

	return nil
}

func (r *ApprovalRepository) ListDuePending(ctx context.Context, now time.Time) ([]*models.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests
		WHERE status = $1 AND timeout_at <= $2
		ORDER BY timeout_at
	`

	rows, err := r.db.QueryContext(ctx, query, models.ApprovalStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due approvals: %w", err)
	}
	defer rows.Close()

	var due []*models.ApprovalRequest

	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}

		due = append(due, approval)
	}

	return due, rows.Err()
}

// Resolve is a conditional update: it only applies to rows still pending,
// which makes concurrent or repeated sweeps idempotent at the query layer.
func (r *ApprovalRepository) Resolve(ctx context.Context, id string, to models.ApprovalStatus, resolvedAt time.Time) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query, id, to, resolvedAt, models.ApprovalStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to resolve approval request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func scanApproval(row rowScanner) (*models.ApprovalRequest, error) {
	var (
		approval   models.ApprovalRequest
		dataJSON   []byte
		fieldsJSON []byte
	)

	err := row.Scan(
		&approval.ID, &approval.ExecutionID, &approval.NodeID, &approval.ApprovalType,
		&approval.Status, &approval.Message, &approval.RequestedBy,
		&dataJSON, &fieldsJSON, &approval.CreatedAt, &approval.TimeoutAt, &approval.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &approval.ApprovalData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal approval data: %w", err)
		}
	}

	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &approval.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal approval fields: %w", err)
		}
	}

	return &approval, nil
}

// BreakpointRepository handles breakpoint rows.
type BreakpointRepository struct {
	db *sql.DB
}

func (r *BreakpointRepository) Save(ctx context.Context, breakpoint *models.Breakpoint) error {
	query := `
		INSERT INTO breakpoints (id, execution_id, node_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`

	_, err := r.db.ExecContext(ctx, query,
		breakpoint.ID, breakpoint.ExecutionID, breakpoint.NodeID,
		breakpoint.CreatedAt, breakpoint.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save breakpoint: %w", err)
	}

	return nil
}

func (r *BreakpointRepository) GetByNode(ctx context.Context, executionID, nodeID string) (*models.Breakpoint, error) {
	query := `
		SELECT id, execution_id, node_id, created_at, expires_at
		FROM breakpoints
		WHERE execution_id = $1 AND node_id = $2
	`

	var breakpoint models.Breakpoint

	err := r.db.QueryRowContext(ctx, query, executionID, nodeID).Scan(
		&breakpoint.ID, &breakpoint.ExecutionID, &breakpoint.NodeID,
		&breakpoint.CreatedAt, &breakpoint.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrBreakpointNotFound
		}

		return nil, fmt.Errorf("failed to scan breakpoint: %w", err)
	}

	return &breakpoint, nil
}

func (r *BreakpointRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Breakpoint, error) {
	query := `
		SELECT id, execution_id, node_id, created_at, expires_at
		FROM breakpoints
		WHERE expires_at <= $1
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired breakpoints: %w", err)
	}
	defer rows.Close()

	var expired []*models.Breakpoint

	for rows.Next() {
		var breakpoint models.Breakpoint

		err := rows.Scan(
			&breakpoint.ID, &breakpoint.ExecutionID, &breakpoint.NodeID,
			&breakpoint.CreatedAt, &breakpoint.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan breakpoint: %w", err)
		}

		expired = append(expired, &breakpoint)
	}

	return expired, rows.Err()
}

func (r *BreakpointRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM breakpoints WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete breakpoint: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *BreakpointRepository) DeleteByExecution(ctx context.Context, executionID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM breakpoints WHERE execution_id = $1", executionID)
	if err != nil {
		return fmt.Errorf("failed to delete breakpoints for execution %s: %w", executionID, err)
	}

	return nil
}
