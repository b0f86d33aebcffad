// Package conditional provides the executor for branch nodes.
package conditional

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SanketsMane/Flowversal-sub007/pkg/condition"
	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/protocol"
	"github.com/SanketsMane/Flowversal-sub007/pkg/template"
)

// Evaluation modes reported on the node output.
const (
	ModeAI       = "ai"
	ModeLiteral  = "literal"
	ModeFallback = "fallback"
)

const (
	aiEvalSystemPrompt = "Evaluate the following condition. Respond with exactly \"true\" or \"false\" and nothing else."
	aiEvalMaxTokens    = 4
	aiEvalTemperature  = 0.0
)

// Executor serves the conditional node type. Evaluation prefers the language
// model when the node asks for it and quietly falls back to the restricted
// literal evaluator on any model failure; a condition that cannot be
// evaluated resolves to false rather than failing the node.
type Executor struct {
	logger    *slog.Logger
	client    protocol.ModelClient
	evaluator *condition.Evaluator
}

// NewExecutor creates the conditional executor.
func NewExecutor(logger *slog.Logger, client protocol.ModelClient, evaluator *condition.Evaluator) *Executor {
	return &Executor{
		logger:    logger.With("module", "conditional_executor"),
		client:    client,
		evaluator: evaluator,
	}
}

func (e *Executor) Types() []string {
	return []string{models.NodeTypeConditional}
}

func (e *Executor) Execute(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode) (*models.NodeExecutionResult, error) {
	conditionText, _ := node.Config["condition"].(string)
	if conditionText == "" {
		return models.FailedResult("conditional node requires a 'condition' in config"), nil
	}

	useAI, _ := node.Config["useAI"].(bool)

	resolved := template.Resolve(conditionText, ec)

	outcome, mode, tokens := e.Evaluate(ctx, ec, resolved, useAI)

	branch := "false"
	if outcome {
		branch = "true"
	}

	output := map[string]any{
		"result":          outcome,
		"condition":       resolved,
		"evaluation_mode": mode,
	}

	actionKey := "falseAction"
	if outcome {
		actionKey = "trueAction"
	}

	if action, ok := node.Config[actionKey].(string); ok && action != "" {
		actionOutput, actionTokens, err := e.runAction(ctx, ec, action)
		if err != nil {
			failed := models.FailedResult(fmt.Sprintf("%s failed: %v", actionKey, err))
			failed.Branch = branch
			failed.Usage = models.UsageDelta{TokensUsed: tokens}

			return failed, nil
		}

		tokens += actionTokens
		output["action_output"] = actionOutput
	}

	result := models.SuccessResult(output)
	result.Branch = branch
	result.Usage = models.UsageDelta{TokensUsed: tokens}

	return result, nil
}

// Evaluate resolves a condition string to a boolean. With useAI set it asks
// the model for a bare true/false verdict and degrades to the literal
// evaluator on any failure, reporting mode "fallback" so the degraded path
// stays observable; the literal path resolves rejected or failing conditions
// to false. Returns the outcome, the mode that produced it, and tokens
// consumed.
func (e *Executor) Evaluate(ctx context.Context, ec *models.ExecutionContext, resolved string, useAI bool) (bool, string, int) {
	mode := ModeLiteral

	if useAI {
		outcome, tokens, err := e.evaluateWithModel(ctx, resolved)
		if err == nil {
			return outcome, ModeAI, tokens
		}

		e.logger.WarnContext(ctx, "AI condition evaluation failed, falling back to literal",
			"condition", resolved,
			"error", err,
		)

		mode = ModeFallback
	}

	outcome, err := e.evaluator.Evaluate(resolved, ec.Variables)
	if err != nil {
		e.logger.WarnContext(ctx, "Condition rejected, resolving to false",
			"condition", resolved,
			"error", err,
		)

		return false, mode, 0
	}

	return outcome, mode, 0
}

func (e *Executor) evaluateWithModel(ctx context.Context, resolved string) (bool, int, error) {
	completion, err := e.client.Generate(ctx, resolved, protocol.ModelOptions{
		System:      aiEvalSystemPrompt,
		Temperature: aiEvalTemperature,
		MaxTokens:   aiEvalMaxTokens,
	})
	if err != nil {
		return false, 0, err
	}

	switch strings.ToLower(strings.TrimSpace(completion.Text)) {
	case "true":
		return true, completion.TokensUsed, nil
	case "false":
		return false, completion.TokensUsed, nil
	default:
		return false, completion.TokensUsed, fmt.Errorf("model returned %q, expected true or false", completion.Text)
	}
}

// runAction executes a branch action string. An "ai:" or "prompt:" prefix
// marks a model prompt; anything else passes through as a literal value.
func (e *Executor) runAction(ctx context.Context, ec *models.ExecutionContext, action string) (any, int, error) {
	resolved := template.Resolve(action, ec)

	prompt := resolved

	switch {
	case strings.HasPrefix(resolved, "ai:"):
		prompt = strings.TrimSpace(strings.TrimPrefix(resolved, "ai:"))
	case strings.HasPrefix(resolved, "prompt:"):
		prompt = strings.TrimSpace(strings.TrimPrefix(resolved, "prompt:"))
	default:
		return resolved, 0, nil
	}

	completion, err := e.client.Generate(ctx, prompt, protocol.ModelOptions{})
	if err != nil {
		return nil, 0, err
	}

	return completion.Text, completion.TokensUsed, nil
}
