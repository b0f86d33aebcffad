// Package trigger provides the executor for trigger gate nodes.
package trigger

import (
	"context"
	"log/slog"

	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/conditional"
	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/template"
)

// Trigger kinds checked by the gate.
const (
	KindManual      = "manual"
	KindAICondition = "ai-condition"
	KindFormSubmit  = "form-submit"
	KindWebhook     = "webhook"
	KindScheduled   = "scheduled"
)

// Executor serves the trigger node type: a stateless gate deciding whether
// the run proceeds. A trigger that does not fire halts the remaining
// sequence without failing the run; an unrecognized trigger kind never
// fires.
type Executor struct {
	logger      *slog.Logger
	conditional *conditional.Executor
}

// NewExecutor creates the trigger executor. Condition triggers reuse the
// conditional executor's evaluation path.
func NewExecutor(logger *slog.Logger, conditionalExecutor *conditional.Executor) *Executor {
	return &Executor{
		logger:      logger.With("module", "trigger_executor"),
		conditional: conditionalExecutor,
	}
}

func (e *Executor) Types() []string {
	return []string{models.NodeTypeTrigger}
}

func (e *Executor) Execute(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode) (*models.NodeExecutionResult, error) {
	kind, _ := node.Config["triggerType"].(string)
	if kind == "" {
		kind, _ = node.Config["type"].(string)
	}

	fired, tokens := e.fired(ctx, ec, node, kind)

	e.logger.InfoContext(ctx, "Trigger checked",
		"node_id", node.ID,
		"trigger_type", kind,
		"fired", fired,
	)

	result := models.SuccessResult(map[string]any{
		"trigger_type": kind,
		"fired":        fired,
	})
	result.Usage = models.UsageDelta{TokensUsed: tokens}
	result.Halt = !fired

	return result, nil
}

func (e *Executor) fired(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode, kind string) (bool, int) {
	switch kind {
	case KindManual:
		return true, 0
	case KindAICondition:
		conditionText, _ := node.Config["condition"].(string)
		if conditionText == "" {
			return false, 0
		}

		useAI, ok := node.Config["useAI"].(bool)
		if !ok {
			useAI = true
		}

		resolved := template.Resolve(conditionText, ec)
		outcome, _, tokens := e.conditional.Evaluate(ctx, ec, resolved, useAI)

		return outcome, tokens
	case KindFormSubmit:
		return len(ec.Input) > 0, 0
	case KindWebhook:
		return len(ec.Execution.TriggerData) > 0, 0
	case KindScheduled:
		return ec.Execution.TriggeredBy == "scheduled", 0
	default:
		e.logger.WarnContext(ctx, "Unrecognized trigger type, not firing", "trigger_type", kind)

		return false, 0
	}
}
