// Package persistence provides the record store abstraction for executions,
// approvals, breakpoints and workflow templates.
package persistence

import (
	"context"
	"time"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
)

// Persistence bundles the collection repositories. All operations are
// document-level read-modify-write with last-write-wins semantics; no
// multi-document transactional guarantee is assumed or required.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	ApprovalRepository() ApprovalRepository
	BreakpointRepository() BreakpointRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository reads and writes workflow templates.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
}

// ExecutionRepository reads and writes workflow execution records.
type ExecutionRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	Save(ctx context.Context, execution *models.WorkflowExecution) error
}

// ApprovalRepository reads and writes approval requests. Resolve is the
// idempotence gate of the approval state machine: it transitions a request
// out of pending exactly once.
type ApprovalRepository interface {
	GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	Save(ctx context.Context, approval *models.ApprovalRequest) error

	// ListDuePending returns pending approvals with timeoutAt <= now.
	ListDuePending(ctx context.Context, now time.Time) ([]*models.ApprovalRequest, error)

	// Resolve conditionally transitions the approval from pending to the
	// given terminal status. It returns false when the request already
	// left pending, so concurrent sweeps and decisions never double-fire.
	Resolve(ctx context.Context, id string, to models.ApprovalStatus, resolvedAt time.Time) (bool, error)
}

// BreakpointRepository reads and writes debug breakpoints.
type BreakpointRepository interface {
	Save(ctx context.Context, breakpoint *models.Breakpoint) error
	GetByNode(ctx context.Context, executionID, nodeID string) (*models.Breakpoint, error)

	// ListExpired returns breakpoints with expiresAt <= now.
	ListExpired(ctx context.Context, now time.Time) ([]*models.Breakpoint, error)

	// Delete removes one breakpoint; false means it was already gone.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteByExecution removes all breakpoints of an execution. Used on
	// normal completion.
	DeleteByExecution(ctx context.Context, executionID string) error
}
