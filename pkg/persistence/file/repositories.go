package file

import (
	"context"
	"time"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
)

const (
	workflowsDir   = "workflows"
	executionsDir  = "executions"
	approvalsDir   = "approvals"
	breakpointsDir = "breakpoints"
)

// WorkflowRepository stores workflow templates as JSON files.
type WorkflowRepository struct {
	store *Persistence
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow
	if err := r.store.read(workflowsDir, id, &workflow, persistence.ErrWorkflowNotFound); err != nil {
		return nil, err
	}

	return &workflow, nil
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	return r.store.write(workflowsDir, workflow.ID, workflow)
}

// ExecutionRepository stores execution records as JSON files.
type ExecutionRepository struct {
	store *Persistence
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution
	if err := r.store.read(executionsDir, id, &execution, persistence.ErrExecutionNotFound); err != nil {
		return nil, err
	}

	return &execution, nil
}

func (r *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	return r.store.write(executionsDir, execution.ID, execution)
}

// ApprovalRepository stores approval requests as JSON files.
type ApprovalRepository struct {
	store *Persistence
}

func (r *ApprovalRepository) GetByID(_ context.Context, id string) (*models.ApprovalRequest, error) {
	var approval models.ApprovalRequest
	if err := r.store.read(approvalsDir, id, &approval, persistence.ErrApprovalNotFound); err != nil {
		return nil, err
	}

	return &approval, nil
}

func (r *ApprovalRepository) Save(_ context.Context, approval *models.ApprovalRequest) error {
	return r.store.write(approvalsDir, approval.ID, approval)
}

func (r *ApprovalRepository) ListDuePending(ctx context.Context, now time.Time) ([]*models.ApprovalRequest, error) {
	ids, err := r.store.list(approvalsDir)
	if err != nil {
		return nil, err
	}

	var due []*models.ApprovalRequest

	for _, id := range ids {
		approval, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if approval.Status == models.ApprovalStatusPending && !approval.TimeoutAt.After(now) {
			due = append(due, approval)
		}
	}

	return due, nil
}

// Resolve applies the pending-only predicate under the store mutex so a
// request leaves pending exactly once even under concurrent sweeps.
func (r *ApprovalRepository) Resolve(ctx context.Context, id string, to models.ApprovalStatus, resolvedAt time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	approval, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	if approval.Status != models.ApprovalStatusPending {
		return false, nil
	}

	approval.Status = to
	approval.ResolvedAt = &resolvedAt

	if err := r.Save(ctx, approval); err != nil {
		return false, err
	}

	return true, nil
}

// BreakpointRepository stores debug breakpoints as JSON files.
type BreakpointRepository struct {
	store *Persistence
}

func (r *BreakpointRepository) Save(_ context.Context, breakpoint *models.Breakpoint) error {
	return r.store.write(breakpointsDir, breakpoint.ID, breakpoint)
}

func (r *BreakpointRepository) GetByNode(ctx context.Context, executionID, nodeID string) (*models.Breakpoint, error) {
	breakpoints, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	for _, breakpoint := range breakpoints {
		if breakpoint.ExecutionID == executionID && breakpoint.NodeID == nodeID {
			return breakpoint, nil
		}
	}

	return nil, persistence.ErrBreakpointNotFound
}

func (r *BreakpointRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Breakpoint, error) {
	breakpoints, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	var expired []*models.Breakpoint

	for _, breakpoint := range breakpoints {
		if breakpoint.Expired(now) {
			expired = append(expired, breakpoint)
		}
	}

	return expired, nil
}

func (r *BreakpointRepository) Delete(_ context.Context, id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.remove(breakpointsDir, id)
}

func (r *BreakpointRepository) DeleteByExecution(ctx context.Context, executionID string) error {
	breakpoints, err := r.all(ctx)
	if err != nil {
		return err
	}

	for _, breakpoint := range breakpoints {
		if breakpoint.ExecutionID != executionID {
			continue
		}

		if _, err := r.Delete(ctx, breakpoint.ID); err != nil {
			return err
		}
	}

	return nil
}

func (r *BreakpointRepository) all(_ context.Context) ([]*models.Breakpoint, error) {
	ids, err := r.store.list(breakpointsDir)
	if err != nil {
		return nil, err
	}

	breakpoints := make([]*models.Breakpoint, 0, len(ids))

	for _, id := range ids {
		var breakpoint models.Breakpoint
		if err := r.store.read(breakpointsDir, id, &breakpoint, persistence.ErrBreakpointNotFound); err != nil {
			return nil, err
		}

		breakpoints = append(breakpoints, &breakpoint)
	}

	return breakpoints, nil
}
