// Package utility provides the executor for delay, log and set-variable
// nodes.
package utility

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/template"
)

// maxDelay bounds a delay node so a misconfigured workflow cannot park a
// dispatch loop indefinitely.
const maxDelay = 5 * time.Minute

// Executor serves the utility node types. Set-variable writes travel back on
// the result and are merged into the execution record by the driver.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates the utility executor.
func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("module", "utility_executor")}
}

func (e *Executor) Types() []string {
	return []string{
		models.NodeTypeDelay,
		models.NodeTypeLog,
		models.NodeTypeSetVariable,
	}
}

func (e *Executor) Execute(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode) (*models.NodeExecutionResult, error) {
	switch node.Type {
	case models.NodeTypeDelay:
		return e.delay(ctx, node)
	case models.NodeTypeLog:
		return e.log(ctx, ec, node)
	default:
		return e.setVariables(ec, node)
	}
}

func (e *Executor) delay(ctx context.Context, node *models.WorkflowNode) (*models.NodeExecutionResult, error) {
	seconds, ok := node.Config["seconds"].(float64)
	if !ok || seconds < 0 {
		return models.FailedResult("delay node requires a non-negative 'seconds' in config"), nil
	}

	duration := time.Duration(seconds * float64(time.Second))
	if duration > maxDelay {
		duration = maxDelay
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return models.FailedResult(fmt.Sprintf("delay interrupted: %v", ctx.Err())), nil
	case <-timer.C:
	}

	return models.SuccessResult(map[string]any{
		"delayed_seconds": duration.Seconds(),
	}), nil
}

func (e *Executor) log(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode) (*models.NodeExecutionResult, error) {
	message, _ := node.Config["message"].(string)
	resolved := template.Resolve(message, ec)

	level, _ := node.Config["level"].(string)

	switch level {
	case "debug":
		e.logger.DebugContext(ctx, resolved, "execution_id", ec.Execution.ID, "node_id", node.ID)
	case "warn":
		e.logger.WarnContext(ctx, resolved, "execution_id", ec.Execution.ID, "node_id", node.ID)
	case "error":
		e.logger.ErrorContext(ctx, resolved, "execution_id", ec.Execution.ID, "node_id", node.ID)
	default:
		e.logger.InfoContext(ctx, resolved, "execution_id", ec.Execution.ID, "node_id", node.ID)
	}

	return models.SuccessResult(map[string]any{
		"message": resolved,
	}), nil
}

func (e *Executor) setVariables(ec *models.ExecutionContext, node *models.WorkflowNode) (*models.NodeExecutionResult, error) {
	variables, ok := node.Config["variables"].(map[string]any)
	if !ok {
		// Single key/value form.
		key, keyOK := node.Config["key"].(string)
		if !keyOK || key == "" {
			return models.FailedResult("set-variable node requires 'variables' or 'key' in config"), nil
		}

		variables = map[string]any{key: node.Config["value"]}
	}

	resolved := template.ResolveMap(variables, ec)

	for key, value := range resolved {
		ec.SetVariable(key, value)
	}

	result := models.SuccessResult(map[string]any{
		"variables_set": len(resolved),
	})
	result.Variables = resolved

	return result, nil
}
