package runner

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanketsMane/Flowversal-sub007/pkg/approval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/condition"
	"github.com/SanketsMane/Flowversal-sub007/pkg/dispatcher"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/conditional"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/humanapproval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/trigger"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/utility"
	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence/file"
	"github.com/SanketsMane/Flowversal-sub007/pkg/protocol"
	"github.com/SanketsMane/Flowversal-sub007/pkg/registry"
)

type countingExecutor struct {
	nodeType string
	calls    int
	result   func() *models.NodeExecutionResult
}

func (c *countingExecutor) Execute(_ context.Context, _ *models.ExecutionContext, _ *models.WorkflowNode) (*models.NodeExecutionResult, error) {
	c.calls++

	if c.result != nil {
		return c.result(), nil
	}

	return models.SuccessResult(map[string]any{"call": c.calls}), nil
}

func (c *countingExecutor) Types() []string {
	return []string{c.nodeType}
}

type noopModelClient struct{}

func (noopModelClient) Generate(_ context.Context, _ string, _ protocol.ModelOptions) (*protocol.Completion, error) {
	return &protocol.Completion{Text: "true"}, nil
}

type harness struct {
	runner *Runner
	store  persistence.Persistence
}

func newHarness(t *testing.T, extra ...*countingExecutor) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())

	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	approvals := approval.NewService(logger, store.ApprovalRepository())

	conditionalExecutor := conditional.NewExecutor(logger, noopModelClient{}, condition.NewEvaluator(logger))

	reg := registry.NewRegistry(logger)
	reg.Register(utility.NewExecutor(logger))
	reg.Register(conditionalExecutor)
	reg.Register(trigger.NewExecutor(logger, conditionalExecutor))
	reg.Register(humanapproval.NewExecutor(logger, approvals))

	for _, executor := range extra {
		reg.Register(executor)
	}

	return &harness{
		runner: NewRunner(logger, store, dispatcher.NewDispatcher(logger, reg), approvals, nil),
		store:  store,
	}
}

func (h *harness) saveWorkflow(t *testing.T, nodes ...*models.WorkflowNode) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		ID:    "wf-1",
		Name:  "test workflow",
		Owner: "tester",
		Nodes: nodes,
	}

	require.NoError(t, h.store.WorkflowRepository().Save(context.Background(), workflow))

	return workflow
}

func TestRunCompletesSetVariableThenConditional(t *testing.T) {
	h := newHarness(t)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "set-x", Type: models.NodeTypeSetVariable, Config: map[string]any{"key": "x", "value": 1.0}},
		&models.WorkflowNode{ID: "check-x", Type: models.NodeTypeConditional, Config: map[string]any{"condition": "x == 1", "trueAction": "log:done"}},
	)

	result, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1", TriggeredBy: "manual"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.True(t, result.Success)

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)

	assert.Len(t, execution.StepResults, 2)
	assert.Equal(t, "true", execution.StepResults["check-x"].Branch)
	assert.Equal(t, "log:done", execution.StepResults["check-x"].Output["action_output"])
	assert.NotNil(t, execution.CompletedAt)
}

func TestRunUnknownWorkflowFails(t *testing.T) {
	h := newHarness(t)

	_, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "missing"})
	require.Error(t, err)
	assert.True(t, persistence.IsNotFound(err))
}

func TestRunNodeFailureFailsExecution(t *testing.T) {
	failing := &countingExecutor{nodeType: "flaky", result: func() *models.NodeExecutionResult {
		return models.FailedResult("downstream unavailable")
	}}
	h := newHarness(t, failing)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "n1", Type: "flaky"},
		&models.WorkflowNode{ID: "n2", Type: models.NodeTypeLog, Config: map[string]any{"message": "never"}},
	)

	result, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.False(t, result.Success)

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)

	require.NotNil(t, execution.Error)
	assert.Equal(t, "downstream unavailable", execution.Error.Message)
	assert.NotContains(t, execution.StepResults, "n2")
}

func TestResumeSkipsCompletedNodes(t *testing.T) {
	counted := &countingExecutor{nodeType: "counted"}
	h := newHarness(t, counted)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "n1", Type: "counted"},
		&models.WorkflowNode{ID: "n2", Type: models.NodeTypeLog, Config: map[string]any{"message": "tail"}},
	)

	first, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)
	require.Equal(t, 1, counted.calls)

	// Re-invoking with the same execution id must not re-dispatch n1.
	second, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1", ExecutionID: first.ExecutionID})
	require.NoError(t, err)

	assert.Equal(t, first.ExecutionID, second.ExecutionID)
	assert.Equal(t, 1, counted.calls)
}

func TestApprovalRequestSuspendsExecution(t *testing.T) {
	h := newHarness(t)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "approve", Type: models.NodeTypeHumanApproval, Config: map[string]any{"message": "go?"}},
		&models.WorkflowNode{ID: "after", Type: models.NodeTypeLog, Config: map[string]any{"message": "after"}},
	)

	result, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusWaitingApproval, result.Status)
	assert.False(t, result.Success)

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusWaitingApproval, execution.Status)
	assert.True(t, execution.StepResults["approve"].ApprovalRequested)
	assert.NotContains(t, execution.StepResults, "after")

	// Re-running while the decision is still pending keeps it suspended.
	again, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1", ExecutionID: result.ExecutionID})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaitingApproval, again.Status)
}

func TestRedeliveredRunKeepsSuspendedStatusDurable(t *testing.T) {
	h := newHarness(t)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "approve", Type: models.NodeTypeHumanApproval, Config: map[string]any{"message": "go?"}},
	)

	first, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaitingApproval, first.Status)

	// At-least-once delivery: the same run message arrives again, twice.
	for range 2 {
		again, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1", ExecutionID: first.ExecutionID})
		require.NoError(t, err)

		assert.Equal(t, models.ExecutionStatusWaitingApproval, again.Status)

		persisted, err := h.store.ExecutionRepository().GetByID(context.Background(), first.ExecutionID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusWaitingApproval, persisted.Status)
	}
}

func TestApprovedDecisionResumesAndCompletes(t *testing.T) {
	h := newHarness(t)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "approve", Type: models.NodeTypeHumanApproval, Config: map[string]any{}},
		&models.WorkflowNode{ID: "after", Type: models.NodeTypeLog, Config: map[string]any{"message": "after"}},
	)

	suspended, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), suspended.ExecutionID)
	require.NoError(t, err)

	approvalID := execution.StepResults["approve"].ApprovalID

	result, err := h.runner.ResumeApproval(context.Background(), &ResumeRequest{
		NodeID:       "approve",
		ApprovalID:   approvalID,
		Decision:     approval.DecisionApproved,
		ApprovalData: map[string]any{"note": "ship it"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.True(t, result.Success)

	execution, err = h.store.ExecutionRepository().GetByID(context.Background(), suspended.ExecutionID)
	require.NoError(t, err)

	approveResult := execution.StepResults["approve"]
	assert.True(t, approveResult.Success)
	assert.Equal(t, approval.DecisionApproved, approveResult.Output["approvalDecision"])
	assert.Equal(t, "ship it", approveResult.Output["note"])
	assert.Contains(t, execution.StepResults, "after")
}

func TestRejectedDecisionFailsExecution(t *testing.T) {
	h := newHarness(t)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "approve", Type: models.NodeTypeHumanApproval, Config: map[string]any{}},
	)

	suspended, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), suspended.ExecutionID)
	require.NoError(t, err)

	result, err := h.runner.ResumeApproval(context.Background(), &ResumeRequest{
		ApprovalID: execution.StepResults["approve"].ApprovalID,
		Decision:   approval.DecisionRejected,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)

	execution, err = h.store.ExecutionRepository().GetByID(context.Background(), suspended.ExecutionID)
	require.NoError(t, err)

	assert.False(t, execution.StepResults["approve"].Success)
	assert.Equal(t, approval.DecisionRejected, execution.StepResults["approve"].Output["approvalDecision"])
}

func TestExpireApprovalFailsExecutionWithTimeoutMarker(t *testing.T) {
	h := newHarness(t)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "approve", Type: models.NodeTypeHumanApproval, Config: map[string]any{"timeoutHours": 0.001}},
	)

	suspended, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), suspended.ExecutionID)
	require.NoError(t, err)

	request, err := h.store.ApprovalRepository().GetByID(context.Background(), execution.StepResults["approve"].ApprovalID)
	require.NoError(t, err)

	require.NoError(t, h.runner.ExpireApproval(context.Background(), request))

	execution, err = h.store.ExecutionRepository().GetByID(context.Background(), suspended.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, true, execution.StepResults["approve"].Output["approvalTimeout"])
}

func TestTriggerNotFiringHaltsWithoutFailure(t *testing.T) {
	counted := &countingExecutor{nodeType: "counted"}
	h := newHarness(t, counted)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "gate", Type: models.NodeTypeTrigger, Config: map[string]any{"triggerType": "form-submit"}},
		&models.WorkflowNode{ID: "n1", Type: "counted"},
	)

	result, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Zero(t, counted.calls)
}

func TestCancelledExecutionStopsBeforeNextNode(t *testing.T) {
	h := newHarness(t)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "approve", Type: models.NodeTypeHumanApproval, Config: map[string]any{}},
		&models.WorkflowNode{ID: "after", Type: models.NodeTypeLog, Config: map[string]any{"message": "after"}},
	)

	suspended, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), suspended.ExecutionID)
	require.NoError(t, err)

	approvalID := execution.StepResults["approve"].ApprovalID

	execution.Status = models.ExecutionStatusCancelled
	require.NoError(t, h.store.ExecutionRepository().Save(context.Background(), execution))

	result, err := h.runner.ResumeApproval(context.Background(), &ResumeRequest{
		ApprovalID: approvalID,
		Decision:   approval.DecisionApproved,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCancelled, result.Status)

	execution, err = h.store.ExecutionRepository().GetByID(context.Background(), suspended.ExecutionID)
	require.NoError(t, err)
	assert.NotContains(t, execution.StepResults, "after")
}

func TestBreakpointPausesDispatch(t *testing.T) {
	counted := &countingExecutor{nodeType: "counted"}
	h := newHarness(t, counted)

	h.saveWorkflow(t,
		&models.WorkflowNode{ID: "n1", Type: models.NodeTypeSetVariable, Config: map[string]any{"key": "x", "value": 1.0}},
		&models.WorkflowNode{ID: "n2", Type: "counted"},
	)

	// Pre-create the execution so the breakpoint can reference it.
	executionID := "exec-bp"
	require.NoError(t, h.store.ExecutionRepository().Save(context.Background(), &models.WorkflowExecution{
		ID:         executionID,
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusPending,
		StartedAt:  time.Now().UTC(),
	}))

	require.NoError(t, h.store.BreakpointRepository().Save(context.Background(), &models.Breakpoint{
		ID:          "bp-1",
		ExecutionID: executionID,
		NodeID:      "n2",
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	}))

	result, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1", ExecutionID: executionID})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusRunning, result.Status)
	assert.Zero(t, counted.calls)

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), executionID)
	require.NoError(t, err)
	assert.Contains(t, execution.StepResults, "n1")
}

func TestRunTerminalExecutionReturnsWithoutDispatch(t *testing.T) {
	counted := &countingExecutor{nodeType: "counted"}
	h := newHarness(t, counted)

	h.saveWorkflow(t, &models.WorkflowNode{ID: "n1", Type: "counted"})

	first, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCompleted, first.Status)

	again, err := h.runner.Run(context.Background(), &RunRequest{WorkflowID: "wf-1", ExecutionID: first.ExecutionID})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, again.Status)
	assert.Equal(t, 1, counted.calls)
}
