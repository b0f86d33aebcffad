// Package humanapproval provides the executor for human-approval nodes.
package humanapproval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SanketsMane/Flowversal-sub007/pkg/approval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/template"
)

// Executor serves the human-approval node type. Its request path is the one
// executor outcome that is neither success-and-continue nor failure: the
// result carries ApprovalRequested and the driver suspends the run.
type Executor struct {
	logger  *slog.Logger
	service *approval.Service
}

// NewExecutor creates the human-approval executor.
func NewExecutor(logger *slog.Logger, service *approval.Service) *Executor {
	return &Executor{
		logger:  logger.With("module", "human_approval_executor"),
		service: service,
	}
}

func (e *Executor) Types() []string {
	return []string{models.NodeTypeHumanApproval}
}

func (e *Executor) Execute(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode) (*models.NodeExecutionResult, error) {
	resolved := &models.WorkflowNode{
		ID:     node.ID,
		Type:   node.Type,
		Name:   node.Name,
		Config: template.ResolveMap(node.Config, ec),
	}

	request, err := e.service.Request(ctx, ec.Execution, resolved)
	if err != nil {
		return models.FailedResult(fmt.Sprintf("approval request failed: %v", err)), nil
	}

	result := models.SuccessResult(map[string]any{
		"approvalId": request.ID,
		"status":     string(models.ApprovalStatusPending),
		"message":    request.Message,
		"timeoutAt":  request.TimeoutAt,
	})
	result.ApprovalRequested = true
	result.ApprovalID = request.ID

	return result, nil
}
