// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single stream all orchestrator events publish to.
const Topic = "flowversal.orchestrator.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionSuspendedEvent EventType = "execution.suspended"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	// Approval lifecycle events.
	ApprovalRequestedEvent EventType = "approval.requested"
	ApprovalResolvedEvent  EventType = "approval.resolved"

	// Sweep events.
	SweepCompletedEvent EventType = "sweep.completed"
	SweepFailedEvent    EventType = "sweep.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id,omitempty"`
	ApprovalID  string `json:"approval_id,omitempty"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionSuspended struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	ApprovalID  string `json:"approval_id"`
}

func (e ExecutionSuspended) GetType() EventType {
	return ExecutionSuspendedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id,omitempty"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type ApprovalRequested struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	NodeID      string    `json:"node_id"`
	ApprovalID  string    `json:"approval_id"`
	TimeoutAt   time.Time `json:"timeout_at"`
}

func (e ApprovalRequested) GetType() EventType {
	return ApprovalRequestedEvent
}

type ApprovalResolved struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ApprovalID  string `json:"approval_id"`
	Status      string `json:"status"`
}

func (e ApprovalResolved) GetType() EventType {
	return ApprovalResolvedEvent
}

type SweepCompleted struct {
	BaseEvent

	Job   string `json:"job"`
	Count int    `json:"count"`
}

func (e SweepCompleted) GetType() EventType {
	return SweepCompletedEvent
}

type SweepFailed struct {
	BaseEvent

	Job   string `json:"job"`
	Error string `json:"error"`
}

func (e SweepFailed) GetType() EventType {
	return SweepFailedEvent
}
