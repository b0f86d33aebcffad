// Package models defines the core domain models for workflow execution orchestration.
package models

import "time"

// Built-in node types. The set is closed: the dispatcher rejects anything else.
const (
	NodeTypeAIChat              = "ai-chat"
	NodeTypeAIAgent             = "ai-agent"
	NodeTypeAIGenerate          = "ai-generate"
	NodeTypeAIWorkflowGenerator = "ai-workflow-generator"
	NodeTypeHTTPRequest         = "http-request"
	NodeTypeEmail               = "email"
	NodeTypeWebhook             = "webhook"
	NodeTypeConditional         = "conditional"
	NodeTypeTrigger             = "trigger"
	NodeTypeDelay               = "delay"
	NodeTypeLog                 = "log"
	NodeTypeSetVariable         = "set-variable"
	NodeTypeHumanApproval       = "human-approval"
)

// Workflow is an immutable template: an ordered list of typed nodes.
// The orchestrator only reads workflows; editing belongs to the builder.
type Workflow struct {
	ID          string          `json:"id" bson:"_id"`
	Name        string          `json:"name"        validate:"required,min=3" bson:"name"`
	Description string          `json:"description" bson:"description"`
	Owner       string          `json:"owner"       validate:"required" bson:"owner"`
	Nodes       []*WorkflowNode `json:"nodes" bson:"nodes"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" bson:"updated_at"`
}

// WorkflowNode is one step in a workflow. Config is opaque here and is
// validated by the executor that owns the node type.
type WorkflowNode struct {
	ID     string         `json:"id"   validate:"required" bson:"id"`
	Type   string         `json:"type" validate:"required" bson:"type"`
	Name   string         `json:"name" bson:"name"`
	Config map[string]any `json:"config" bson:"config"`
}

// NodeByID returns the node with the given ID, or nil.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}
