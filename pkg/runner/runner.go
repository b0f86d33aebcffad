// Package runner drives a workflow execution from start to a terminal or
// suspended state.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SanketsMane/Flowversal-sub007/pkg/approval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/dispatcher"
	"github.com/SanketsMane/Flowversal-sub007/pkg/eventbus"
	"github.com/SanketsMane/Flowversal-sub007/pkg/events"
	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
)

// RunRequest is the scheduler's entry point payload.
type RunRequest struct {
	WorkflowID  string         `json:"workflowId"  validate:"required"`
	UserID      string         `json:"userId"`
	ExecutionID string         `json:"executionId"`
	Input       map[string]any `json:"input"`
	TriggeredBy string         `json:"triggeredBy"`
	TriggerData map[string]any `json:"triggerData"`
}

// ResumeRequest is the approval decision callback payload.
type ResumeRequest struct {
	NodeID       string         `json:"nodeId"     validate:"required"`
	ApprovalID   string         `json:"approvalId" validate:"required"`
	Decision     string         `json:"decision"   validate:"required,oneof=approved rejected"`
	ApprovalData map[string]any `json:"approvalData"`
}

// RunResult reports where a dispatch pass left the execution.
type RunResult struct {
	ExecutionID string                 `json:"executionId"`
	Status      models.ExecutionStatus `json:"status"`
	Success     bool                   `json:"success"`
}

// Runner owns the dispatch loop. Within one pass nodes run strictly
// sequentially; re-invocation with the same execution id is tolerated by
// skipping nodes that already hold a terminal step result.
type Runner struct {
	logger      *slog.Logger
	store       persistence.Persistence
	dispatcher  *dispatcher.Dispatcher
	approvals   *approval.Service
	publisher   eventbus.EventPublisher
	breakpoints bool
}

// NewRunner creates the execution driver. The publisher may be nil when
// lifecycle notifications are not wanted (tests, one-shot jobs).
func NewRunner(
	logger *slog.Logger,
	store persistence.Persistence,
	nodeDispatcher *dispatcher.Dispatcher,
	approvals *approval.Service,
	publisher eventbus.EventPublisher,
) *Runner {
	return &Runner{
		logger:      logger.With("module", "runner"),
		store:       store,
		dispatcher:  nodeDispatcher,
		approvals:   approvals,
		publisher:   publisher,
		breakpoints: true,
	}
}

// Run starts a new execution or resumes an existing one and advances it as
// far as it can go.
func (r *Runner) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	workflow, err := r.store.WorkflowRepository().GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", req.WorkflowID, err)
	}

	execution, resumed, err := r.startOrResume(ctx, workflow, req)
	if err != nil {
		return nil, err
	}

	if execution.IsTerminal() {
		return resultFor(execution), nil
	}

	// Redelivered run for a suspended execution. Only an approval decision
	// moves it back to running, so report the suspension as-is.
	if execution.Status == models.ExecutionStatusWaitingApproval && execution.AwaitingApproval() {
		r.logger.InfoContext(ctx, "Execution still waiting on approval, ignoring redelivery",
			"execution_id", execution.ID,
		)

		return resultFor(execution), nil
	}

	execution.MarkRunning(time.Now().UTC())

	if err := r.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	if resumed {
		r.publish(ctx, execution.ID, events.ExecutionResumed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, workflow.ID),
			ExecutionID: execution.ID,
		})
	} else {
		r.publish(ctx, execution.ID, events.ExecutionStarted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, workflow.ID),
			ExecutionID: execution.ID,
			TriggeredBy: execution.TriggeredBy,
		})
	}

	return r.advance(ctx, workflow, execution)
}

// ResumeApproval applies an external approval decision and, when approved,
// continues the suspended execution from the node after the approval.
func (r *Runner) ResumeApproval(ctx context.Context, req *ResumeRequest) (*RunResult, error) {
	request, result, err := r.approvals.Decide(ctx, req.ApprovalID, req.Decision, req.ApprovalData)
	if err != nil {
		return nil, err
	}

	execution, err := r.store.ExecutionRepository().GetByID(ctx, request.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution %s: %w", request.ExecutionID, err)
	}

	workflow, err := r.store.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", execution.WorkflowID, err)
	}

	nodeID := req.NodeID
	if nodeID == "" {
		nodeID = request.NodeID
	}

	// The pending step result recorded at request time is replaced with
	// the decision's terminal result.
	execution.ApplyResult(nodeID, result)

	if execution.IsTerminal() {
		// The run was cancelled or otherwise finished while waiting. The
		// decision outcome is still recorded, but nothing advances.
		if err := r.store.ExecutionRepository().Save(ctx, execution); err != nil {
			return nil, fmt.Errorf("failed to persist execution: %w", err)
		}

		return resultFor(execution), nil
	}

	r.publish(ctx, execution.ID, events.ApprovalResolved{
		BaseEvent:   events.NewBaseEvent(events.ApprovalResolvedEvent, workflow.ID),
		ExecutionID: execution.ID,
		ApprovalID:  request.ID,
		Status:      string(request.Status),
	})

	if !result.Success {
		return r.fail(ctx, workflow, execution, nodeID, result.Error)
	}

	execution.MarkRunning(time.Now().UTC())

	if err := r.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	r.publish(ctx, execution.ID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, workflow.ID),
		ExecutionID: execution.ID,
		NodeID:      nodeID,
		ApprovalID:  request.ID,
	})

	return r.advance(ctx, workflow, execution)
}

// ExpireApproval records the timeout outcome of an already-expired approval
// and fails the owning execution. The sweeper calls this only after winning
// the conditional transition to expired, so it never double-fires.
func (r *Runner) ExpireApproval(ctx context.Context, request *models.ApprovalRequest) error {
	execution, err := r.store.ExecutionRepository().GetByID(ctx, request.ExecutionID)
	if err != nil {
		return fmt.Errorf("failed to load execution %s: %w", request.ExecutionID, err)
	}

	result := approval.TimeoutResult(request)
	execution.ApplyResult(request.NodeID, result)

	r.publish(ctx, execution.ID, events.ApprovalResolved{
		BaseEvent:   events.NewBaseEvent(events.ApprovalResolvedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		ApprovalID:  request.ID,
		Status:      string(models.ApprovalStatusExpired),
	})

	_, err = r.fail(ctx, nil, execution, request.NodeID, result.Error)

	return err
}

func (r *Runner) startOrResume(ctx context.Context, workflow *models.Workflow, req *RunRequest) (*models.WorkflowExecution, bool, error) {
	if req.ExecutionID != "" {
		execution, err := r.store.ExecutionRepository().GetByID(ctx, req.ExecutionID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load execution %s: %w", req.ExecutionID, err)
		}

		return execution, true, nil
	}

	execution := &models.WorkflowExecution{
		ID:          uuid.New().String(),
		WorkflowID:  workflow.ID,
		UserID:      req.UserID,
		Status:      models.ExecutionStatusPending,
		Input:       req.Input,
		TriggeredBy: req.TriggeredBy,
		TriggerData: req.TriggerData,
		StartedAt:   time.Now().UTC(),
	}

	return execution, false, nil
}

// advance runs the dispatch loop until the execution suspends, fails,
// completes or is cancelled externally.
func (r *Runner) advance(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution) (*RunResult, error) {
	ec := models.NewExecutionContext(workflow, execution)

	for _, node := range workflow.Nodes {
		if existing, done := execution.StepResults[node.ID]; done {
			if existing.ApprovalRequested {
				// Still waiting on a decision.
				return resultFor(execution), nil
			}

			continue
		}

		cancelled, err := r.cancelled(ctx, execution)
		if err != nil {
			return nil, err
		}

		if cancelled {
			r.publish(ctx, execution.ID, events.ExecutionCancelled{
				BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, workflow.ID),
				ExecutionID: execution.ID,
			})

			return resultFor(execution), nil
		}

		if r.pausedOnBreakpoint(ctx, execution, node) {
			return resultFor(execution), nil
		}

		result := r.dispatcher.Dispatch(ctx, ec, node)

		execution.ApplyResult(node.ID, result)
		ec.RecordResult(node.ID, result)

		// Persist after every node so usage accounting and step results
		// survive a crash between nodes.
		if err := r.store.ExecutionRepository().Save(ctx, execution); err != nil {
			return nil, fmt.Errorf("failed to persist execution: %w", err)
		}

		if result.ApprovalRequested {
			return r.suspend(ctx, workflow, execution, node, result)
		}

		if !result.Success {
			return r.fail(ctx, workflow, execution, node.ID, result.Error)
		}

		if result.Halt {
			r.logger.InfoContext(ctx, "Node halted remaining sequence",
				"execution_id", execution.ID,
				"node_id", node.ID,
			)

			break
		}
	}

	return r.complete(ctx, workflow, execution)
}

func (r *Runner) suspend(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution, node *models.WorkflowNode, result *models.NodeExecutionResult) (*RunResult, error) {
	execution.MarkWaitingApproval()

	if err := r.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	r.logger.InfoContext(ctx, "Execution suspended on approval",
		"execution_id", execution.ID,
		"node_id", node.ID,
		"approval_id", result.ApprovalID,
	)

	requested := events.ApprovalRequested{
		BaseEvent:   events.NewBaseEvent(events.ApprovalRequestedEvent, workflow.ID),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		ApprovalID:  result.ApprovalID,
	}
	if request, err := r.store.ApprovalRepository().GetByID(ctx, result.ApprovalID); err == nil {
		requested.TimeoutAt = request.TimeoutAt
	}

	r.publish(ctx, execution.ID, requested)

	r.publish(ctx, execution.ID, events.ExecutionSuspended{
		BaseEvent:   events.NewBaseEvent(events.ExecutionSuspendedEvent, workflow.ID),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		ApprovalID:  result.ApprovalID,
	})

	return resultFor(execution), nil
}

func (r *Runner) fail(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution, nodeID, message string) (*RunResult, error) {
	execution.MarkFailed(time.Now().UTC(), &models.ExecutionError{
		Message: message,
		Stack:   fmt.Sprintf("node %s of workflow %s", nodeID, execution.WorkflowID),
	})

	if err := r.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	workflowID := execution.WorkflowID
	if workflow != nil {
		workflowID = workflow.ID
	}

	r.logger.WarnContext(ctx, "Execution failed",
		"execution_id", execution.ID,
		"node_id", nodeID,
		"error", message,
	)

	r.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, workflowID),
		ExecutionID: execution.ID,
		NodeID:      nodeID,
		Error:       message,
	})

	return resultFor(execution), nil
}

func (r *Runner) complete(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution) (*RunResult, error) {
	execution.MarkCompleted(time.Now().UTC())

	if err := r.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	// Breakpoints are a debug construct scoped to the run.
	if err := r.store.BreakpointRepository().DeleteByExecution(ctx, execution.ID); err != nil {
		r.logger.WarnContext(ctx, "Failed to clear breakpoints",
			"execution_id", execution.ID,
			"error", err,
		)
	}

	r.logger.InfoContext(ctx, "Execution completed",
		"execution_id", execution.ID,
		"ai_tokens_used", execution.AITokensUsed,
		"api_calls_made", execution.APICallsMade,
	)

	r.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, workflow.ID),
		ExecutionID: execution.ID,
		Duration:    time.Since(execution.StartedAt),
	})

	return resultFor(execution), nil
}

// cancelled re-reads the execution record so an external cancellation is
// honored before the next node dispatch.
func (r *Runner) cancelled(ctx context.Context, execution *models.WorkflowExecution) (bool, error) {
	current, err := r.store.ExecutionRepository().GetByID(ctx, execution.ID)
	if err != nil {
		return false, fmt.Errorf("failed to reload execution %s: %w", execution.ID, err)
	}

	if current.Status == models.ExecutionStatusCancelled {
		execution.Status = models.ExecutionStatusCancelled
		execution.CompletedAt = current.CompletedAt

		return true, nil
	}

	return false, nil
}

func (r *Runner) pausedOnBreakpoint(ctx context.Context, execution *models.WorkflowExecution, node *models.WorkflowNode) bool {
	if !r.breakpoints {
		return false
	}

	breakpoint, err := r.store.BreakpointRepository().GetByNode(ctx, execution.ID, node.ID)
	if err != nil {
		return false
	}

	if breakpoint.Expired(time.Now().UTC()) {
		return false
	}

	r.logger.InfoContext(ctx, "Execution paused on breakpoint",
		"execution_id", execution.ID,
		"node_id", node.ID,
		"breakpoint_id", breakpoint.ID,
	)

	return true
}

func (r *Runner) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.Publish(ctx, key, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"error", err,
		)
	}
}

func resultFor(execution *models.WorkflowExecution) *RunResult {
	return &RunResult{
		ExecutionID: execution.ID,
		Status:      execution.Status,
		Success:     execution.Status == models.ExecutionStatusCompleted,
	}
}
