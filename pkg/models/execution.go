package models

import "time"

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending         ExecutionStatus = "pending"
	ExecutionStatusRunning         ExecutionStatus = "running"
	ExecutionStatusWaitingApproval ExecutionStatus = "waiting-approval"
	ExecutionStatusCompleted       ExecutionStatus = "completed"
	ExecutionStatusFailed          ExecutionStatus = "failed"
	ExecutionStatusCancelled       ExecutionStatus = "cancelled"
)

// ExecutionError is the terminal error recorded on a failed execution.
// Stack is structured and redacted, suitable for user-visible surfaces.
type ExecutionError struct {
	Message string `json:"message" bson:"message"`
	Stack   string `json:"stack,omitempty" bson:"stack,omitempty"`
}

// WorkflowExecution is the mutable run record for one workflow execution.
// It is never deleted, only transitioned to a terminal status, and is the
// single source of truth for accumulated usage counters.
type WorkflowExecution struct {
	ID          string                          `json:"id" bson:"_id"`
	WorkflowID  string                          `json:"workflow_id" bson:"workflow_id"`
	UserID      string                          `json:"user_id" bson:"user_id"`
	Status      ExecutionStatus                 `json:"status" bson:"status"`
	Input       map[string]any                  `json:"input,omitempty" bson:"input,omitempty"`
	Variables   map[string]any                  `json:"variables,omitempty" bson:"variables,omitempty"`
	StepResults map[string]*NodeExecutionResult `json:"step_results,omitempty" bson:"step_results,omitempty"`
	TriggeredBy string                          `json:"triggered_by,omitempty" bson:"triggered_by,omitempty"`
	TriggerData map[string]any                  `json:"trigger_data,omitempty" bson:"trigger_data,omitempty"`
	AITokensUsed int                            `json:"ai_tokens_used" bson:"ai_tokens_used"`
	APICallsMade int                            `json:"api_calls_made" bson:"api_calls_made"`
	Error       *ExecutionError                 `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt   time.Time                       `json:"started_at" bson:"started_at"`
	CompletedAt *time.Time                      `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// IsTerminal reports whether the execution reached a final status.
func (e *WorkflowExecution) IsTerminal() bool {
	switch e.Status {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// MarkRunning transitions a pending or suspended execution back to running.
func (e *WorkflowExecution) MarkRunning(now time.Time) {
	e.Status = ExecutionStatusRunning
	if e.StartedAt.IsZero() {
		e.StartedAt = now
	}
}

// MarkWaitingApproval suspends the execution on a pending approval.
func (e *WorkflowExecution) MarkWaitingApproval() {
	e.Status = ExecutionStatusWaitingApproval
}

// MarkCompleted transitions the execution to its successful terminal state.
func (e *WorkflowExecution) MarkCompleted(now time.Time) {
	e.Status = ExecutionStatusCompleted
	e.CompletedAt = &now
}

// MarkFailed transitions the execution to failed with a structured error.
func (e *WorkflowExecution) MarkFailed(now time.Time, execErr *ExecutionError) {
	e.Status = ExecutionStatusFailed
	e.CompletedAt = &now
	e.Error = execErr
}

// ApplyResult appends a node result and folds its side effects (usage
// counters, variable writes) into the execution record.
// AwaitingApproval reports whether any recorded step is still holding the
// execution on an undecided approval.
func (e *WorkflowExecution) AwaitingApproval() bool {
	for _, result := range e.StepResults {
		if result.ApprovalRequested {
			return true
		}
	}

	return false
}

func (e *WorkflowExecution) ApplyResult(nodeID string, result *NodeExecutionResult) {
	if e.StepResults == nil {
		e.StepResults = make(map[string]*NodeExecutionResult)
	}

	e.StepResults[nodeID] = result
	e.AITokensUsed += result.Usage.TokensUsed
	e.APICallsMade += result.Usage.APICalls

	if len(result.Variables) > 0 {
		if e.Variables == nil {
			e.Variables = make(map[string]any, len(result.Variables))
		}

		for k, v := range result.Variables {
			e.Variables[k] = v
		}
	}
}
