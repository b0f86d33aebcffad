// Package ai provides the executor for language-model node types.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/protocol"
	"github.com/SanketsMane/Flowversal-sub007/pkg/template"
)

const (
	defaultMaxTokens   = 1024
	defaultTemperature = 0.7

	generatorSystemPrompt = "You are a workflow designer. Respond with a JSON workflow definition only."
)

// Executor serves the ai-* node types. Routing between subtypes is an inner
// switch; an unrecognized ai subtype falls back to plain chat. Token usage
// travels back on the result's usage delta.
type Executor struct {
	logger *slog.Logger
	client protocol.ModelClient
}

// NewExecutor creates the AI executor with the given model client.
func NewExecutor(logger *slog.Logger, client protocol.ModelClient) *Executor {
	return &Executor{
		logger: logger.With("module", "ai_executor"),
		client: client,
	}
}

func (e *Executor) Types() []string {
	return []string{
		models.NodeTypeAIChat,
		models.NodeTypeAIAgent,
		models.NodeTypeAIGenerate,
		models.NodeTypeAIWorkflowGenerator,
	}
}

func (e *Executor) Execute(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode) (*models.NodeExecutionResult, error) {
	config := template.ResolveMap(node.Config, ec)

	prompt := stringValue(config, "prompt")
	if prompt == "" {
		prompt = stringValue(config, "message")
	}

	if prompt == "" {
		return models.FailedResult("ai node requires a 'prompt' or 'message' in config"), nil
	}

	opts := modelOptions(config)

	var completion *protocol.Completion

	var err error

	// Subtype routing. Anything unrecognized is served as plain chat:
	// the fallback is intentional so new ai-* types degrade gracefully.
	switch node.Type {
	case models.NodeTypeAIAgent:
		completion, err = e.generateAgent(ctx, prompt, config, opts)
	case models.NodeTypeAIGenerate:
		completion, err = e.client.Generate(ctx, prompt, opts)
	case models.NodeTypeAIWorkflowGenerator:
		completion, err = e.generateWorkflow(ctx, prompt, opts)
	case models.NodeTypeAIChat:
		completion, err = e.client.Generate(ctx, prompt, opts)
	default:
		e.logger.WarnContext(ctx, "Unrecognized ai subtype, serving as chat", "node_type", node.Type)

		completion, err = e.client.Generate(ctx, prompt, opts)
	}

	if err != nil {
		return models.FailedResult(fmt.Sprintf("model call failed: %v", err)), nil
	}

	e.logger.InfoContext(ctx, "Model call completed",
		"node_id", node.ID,
		"node_type", node.Type,
		"tokens_used", completion.TokensUsed,
	)

	result := models.SuccessResult(map[string]any{
		"response": completion.Text,
		"model":    completion.Model,
	})
	result.Usage = models.UsageDelta{TokensUsed: completion.TokensUsed}

	return result, nil
}

// generateAgent runs a tool-aware prompt: the configured tools are described
// to the model inside the system prompt so the completion can reference them.
func (e *Executor) generateAgent(ctx context.Context, prompt string, config map[string]any, opts protocol.ModelOptions) (*protocol.Completion, error) {
	if tools, ok := config["tools"].([]any); ok && len(tools) > 0 {
		names := make([]string, 0, len(tools))

		for _, tool := range tools {
			if name, ok := tool.(string); ok {
				names = append(names, name)
			}
		}

		if len(names) > 0 {
			toolPrompt := "You may use the following tools: " + strings.Join(names, ", ")
			if opts.System == "" {
				opts.System = toolPrompt
			} else {
				opts.System += "\n" + toolPrompt
			}
		}
	}

	return e.client.Generate(ctx, prompt, opts)
}

func (e *Executor) generateWorkflow(ctx context.Context, prompt string, opts protocol.ModelOptions) (*protocol.Completion, error) {
	if opts.System == "" {
		opts.System = generatorSystemPrompt
	}

	return e.client.Generate(ctx, prompt, opts)
}

func modelOptions(config map[string]any) protocol.ModelOptions {
	opts := protocol.ModelOptions{
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}

	if model := stringValue(config, "model"); model != "" {
		opts.Model = model
	}

	if system := stringValue(config, "system"); system != "" {
		opts.System = system
	}

	if temperature, ok := config["temperature"].(float64); ok {
		opts.Temperature = temperature
	}

	if maxTokens, ok := config["maxTokens"].(float64); ok {
		opts.MaxTokens = int(maxTokens)
	}

	return opts
}

func stringValue(config map[string]any, key string) string {
	value, _ := config[key].(string)

	return value
}
