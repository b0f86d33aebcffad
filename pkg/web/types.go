package web

import "github.com/SanketsMane/Flowversal-sub007/pkg/models"

// CreateWorkflowRequest is the payload for registering a workflow the
// orchestrator can run standalone.
type CreateWorkflowRequest struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"  validate:"required,min=3"`
	Description string                 `json:"description"`
	Owner       string                 `json:"owner" validate:"required"`
	Nodes       []*models.WorkflowNode `json:"nodes"`
}

// CreateBreakpointRequest is the payload for setting a debug breakpoint on a
// node of an execution.
type CreateBreakpointRequest struct {
	NodeID           string  `json:"nodeId" validate:"required"`
	ExpiresInMinutes float64 `json:"expiresInMinutes"`
}

// SweepResponse reports how many records a sweep invocation touched.
type SweepResponse struct {
	Count int `json:"count"`
}
