package file

import (
	"context"
	"testing"
	"time"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	workflow := &models.Workflow{
		ID:    "wf-1",
		Name:  "daily digest",
		Owner: "user-1",
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: models.NodeTypeLog, Config: map[string]any{"message": "hi"}},
		},
	}

	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

	loaded, err := store.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "daily digest", loaded.Name)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, models.NodeTypeLog, loaded.Nodes[0].Type)
}

func TestWorkflowRepository_NotFound(t *testing.T) {
	store := NewPersistence(t.TempDir())

	_, err := store.WorkflowRepository().GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestExecutionRepository_RoundTrip(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	execution := &models.WorkflowExecution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		Variables:  map[string]any{"x": float64(1)},
		StepResults: map[string]*models.NodeExecutionResult{
			"n1": {Success: true, Output: map[string]any{"logged": true}},
		},
		AITokensUsed: 42,
	}

	require.NoError(t, store.ExecutionRepository().Save(ctx, execution))

	loaded, err := store.ExecutionRepository().GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, loaded.Status)
	assert.Equal(t, 42, loaded.AITokensUsed)
	require.Contains(t, loaded.StepResults, "n1")
	assert.True(t, loaded.StepResults["n1"].Success)
}

func TestApprovalRepository_ListDuePending(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()
	now := time.Now()

	save := func(id string, status models.ApprovalStatus, timeoutAt time.Time) {
		require.NoError(t, store.ApprovalRepository().Save(ctx, &models.ApprovalRequest{
			ID:          id,
			ExecutionID: "exec-1",
			NodeID:      "n1",
			Status:      status,
			TimeoutAt:   timeoutAt,
		}))
	}

	save("due", models.ApprovalStatusPending, now.Add(-time.Minute))
	save("not-due", models.ApprovalStatusPending, now.Add(time.Hour))
	save("already-expired", models.ApprovalStatusExpired, now.Add(-time.Hour))

	due, err := store.ApprovalRepository().ListDuePending(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)
}

func TestApprovalRepository_ResolveOnce(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.ApprovalRepository().Save(ctx, &models.ApprovalRequest{
		ID:     "appr-1",
		Status: models.ApprovalStatusPending,
	}))

	applied, err := store.ApprovalRepository().Resolve(ctx, "appr-1", models.ApprovalStatusApproved, time.Now())
	require.NoError(t, err)
	assert.True(t, applied)

	// Second transition must not apply: terminal once.
	applied, err = store.ApprovalRepository().Resolve(ctx, "appr-1", models.ApprovalStatusExpired, time.Now())
	require.NoError(t, err)
	assert.False(t, applied)

	loaded, err := store.ApprovalRepository().GetByID(ctx, "appr-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, loaded.Status)
	assert.NotNil(t, loaded.ResolvedAt)
}

func TestBreakpointRepository_ExpiryAndDelete(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.BreakpointRepository().Save(ctx, &models.Breakpoint{
		ID:          "bp-1",
		ExecutionID: "exec-1",
		NodeID:      "n1",
		ExpiresAt:   now.Add(-time.Minute),
	}))
	require.NoError(t, store.BreakpointRepository().Save(ctx, &models.Breakpoint{
		ID:          "bp-2",
		ExecutionID: "exec-1",
		NodeID:      "n2",
		ExpiresAt:   now.Add(time.Hour),
	}))

	expired, err := store.BreakpointRepository().ListExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "bp-1", expired[0].ID)

	deleted, err := store.BreakpointRepository().Delete(ctx, "bp-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	// Deleting again reports already-gone without error.
	deleted, err = store.BreakpointRepository().Delete(ctx, "bp-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	bp, err := store.BreakpointRepository().GetByNode(ctx, "exec-1", "n2")
	require.NoError(t, err)
	assert.Equal(t, "bp-2", bp.ID)

	require.NoError(t, store.BreakpointRepository().DeleteByExecution(ctx, "exec-1"))

	_, err = store.BreakpointRepository().GetByNode(ctx, "exec-1", "n2")
	assert.ErrorIs(t, err, persistence.ErrBreakpointNotFound)
}

func TestValidateID_PathTraversal(t *testing.T) {
	store := NewPersistence(t.TempDir())

	_, err := store.WorkflowRepository().GetByID(context.Background(), "../escape")
	assert.Error(t, err)

	err = store.WorkflowRepository().Save(context.Background(), &models.Workflow{ID: "a/b"})
	assert.Error(t, err)
}
