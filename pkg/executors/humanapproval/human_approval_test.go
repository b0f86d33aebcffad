package humanapproval

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanketsMane/Flowversal-sub007/pkg/approval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence/file"
)

func newExecutor(t *testing.T) (*Executor, persistence.ApprovalRepository) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := store.ApprovalRepository()

	return NewExecutor(logger, approval.NewService(logger, repo)), repo
}

func testContext(variables map[string]any) *models.ExecutionContext {
	workflow := &models.Workflow{ID: "wf-1"}
	execution := &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1", Variables: variables}

	return models.NewExecutionContext(workflow, execution)
}

func TestExecuteRequestsApprovalAndSignalsPause(t *testing.T) {
	executor, repo := newExecutor(t)

	node := &models.WorkflowNode{
		ID:   "approve-1",
		Type: models.NodeTypeHumanApproval,
		Config: map[string]any{
			"approvalType": "manual_review",
			"message":      "Ship {{release}}?",
		},
	}

	result, err := executor.Execute(context.Background(), testContext(map[string]any{"release": "v2"}), node)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.ApprovalRequested)
	assert.NotEmpty(t, result.ApprovalID)
	assert.Equal(t, "Ship v2?", result.Output["message"])

	stored, err := repo.GetByID(context.Background(), result.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, stored.Status)
	assert.Equal(t, "exec-1", stored.ExecutionID)
}

func TestExecuteInvalidConfigFailsWithoutPause(t *testing.T) {
	executor, _ := newExecutor(t)

	node := &models.WorkflowNode{
		ID:     "approve-1",
		Type:   models.NodeTypeHumanApproval,
		Config: map[string]any{"timeoutHours": -2.0},
	}

	result, err := executor.Execute(context.Background(), testContext(nil), node)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.ApprovalRequested)
}
