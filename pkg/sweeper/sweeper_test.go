package sweeper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanketsMane/Flowversal-sub007/pkg/approval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/dispatcher"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/humanapproval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence/file"
	"github.com/SanketsMane/Flowversal-sub007/pkg/registry"
	"github.com/SanketsMane/Flowversal-sub007/pkg/runner"
)

type sweepHarness struct {
	store           persistence.Persistence
	service         *approval.Service
	runner          *runner.Runner
	approvalSweep   *ApprovalSweeper
	breakpointSweep *BreakpointSweeper
}

func newSweepHarness(t *testing.T) *sweepHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())

	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	service := approval.NewService(logger, store.ApprovalRepository())

	reg := registry.NewRegistry(logger)
	reg.Register(humanapproval.NewExecutor(logger, service))

	executionRunner := runner.NewRunner(logger, store, dispatcher.NewDispatcher(logger, reg), service, nil)

	return &sweepHarness{
		store:           store,
		service:         service,
		runner:          executionRunner,
		approvalSweep:   NewApprovalSweeper(logger, store.ApprovalRepository(), service, executionRunner, nil),
		breakpointSweep: NewBreakpointSweeper(logger, store.BreakpointRepository(), nil),
	}
}

// suspendOnApproval runs a single-node approval workflow to its suspended
// state and returns the execution id.
func (h *sweepHarness) suspendOnApproval(t *testing.T, timeoutHours float64) string {
	t.Helper()

	workflow := &models.Workflow{
		ID:    "wf-1",
		Name:  "approval workflow",
		Owner: "tester",
		Nodes: []*models.WorkflowNode{
			{ID: "approve", Type: models.NodeTypeHumanApproval, Config: map[string]any{"timeoutHours": timeoutHours}},
		},
	}
	require.NoError(t, h.store.WorkflowRepository().Save(context.Background(), workflow))

	result, err := h.runner.Run(context.Background(), &runner.RunRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaitingApproval, result.Status)

	return result.ExecutionID
}

func TestApprovalSweepExpiresDueRequests(t *testing.T) {
	h := newSweepHarness(t)

	executionID := h.suspendOnApproval(t, 0.0001)
	time.Sleep(time.Second)

	count, err := h.approvalSweep.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), executionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, true, execution.StepResults["approve"].Output["approvalTimeout"])

	approvals, err := h.store.ApprovalRepository().ListDuePending(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, approvals)
}

func TestApprovalSweepTwiceSweepsEachRecordOnce(t *testing.T) {
	h := newSweepHarness(t)

	h.suspendOnApproval(t, 0.0001)
	time.Sleep(time.Second)

	first, err := h.approvalSweep.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := h.approvalSweep.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second)
}

func TestApprovalSweepLeavesFreshRequestsAlone(t *testing.T) {
	h := newSweepHarness(t)

	executionID := h.suspendOnApproval(t, 24.0)

	count, err := h.approvalSweep.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaitingApproval, execution.Status)
}

func TestBreakpointSweepDeletesExpiredOnly(t *testing.T) {
	h := newSweepHarness(t)

	now := time.Now().UTC()

	require.NoError(t, h.store.BreakpointRepository().Save(context.Background(), &models.Breakpoint{
		ID: "bp-old", ExecutionID: "exec-1", NodeID: "n1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))
	require.NoError(t, h.store.BreakpointRepository().Save(context.Background(), &models.Breakpoint{
		ID: "bp-new", ExecutionID: "exec-1", NodeID: "n2", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	count, err := h.breakpointSweep.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = h.store.BreakpointRepository().GetByNode(context.Background(), "exec-1", "n1")
	assert.True(t, persistence.IsNotFound(err))

	_, err = h.store.BreakpointRepository().GetByNode(context.Background(), "exec-1", "n2")
	assert.NoError(t, err)
}

func TestBreakpointSweepTwiceIsIdempotent(t *testing.T) {
	h := newSweepHarness(t)

	now := time.Now().UTC()

	require.NoError(t, h.store.BreakpointRepository().Save(context.Background(), &models.Breakpoint{
		ID: "bp-old", ExecutionID: "exec-1", NodeID: "n1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))

	first, err := h.breakpointSweep.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := h.breakpointSweep.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second)
}

func TestSchedulerStartsAndStops(t *testing.T) {
	h := newSweepHarness(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scheduler := NewScheduler(logger, h.approvalSweep, h.breakpointSweep)

	require.NoError(t, scheduler.Start(context.Background()))
	scheduler.Stop()
}
