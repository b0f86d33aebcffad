package conditional

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanketsMane/Flowversal-sub007/pkg/condition"
	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/protocol"
)

type stubModelClient struct {
	text  string
	err   error
	calls int
}

func (s *stubModelClient) Generate(_ context.Context, _ string, _ protocol.ModelOptions) (*protocol.Completion, error) {
	s.calls++

	if s.err != nil {
		return nil, s.err
	}

	return &protocol.Completion{Text: s.text, TokensUsed: 2}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecutor(client protocol.ModelClient) *Executor {
	logger := testLogger()

	return NewExecutor(logger, client, condition.NewEvaluator(logger))
}

func testContext(variables map[string]any) *models.ExecutionContext {
	workflow := &models.Workflow{ID: "wf-1"}
	execution := &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1", Variables: variables}

	return models.NewExecutionContext(workflow, execution)
}

func conditionalNode(config map[string]any) *models.WorkflowNode {
	return &models.WorkflowNode{ID: "cond-1", Type: models.NodeTypeConditional, Config: config}
}

func TestLiteralComparisonEvaluatesTrue(t *testing.T) {
	executor := newExecutor(&stubModelClient{})

	result, err := executor.Execute(context.Background(), testContext(nil), conditionalNode(map[string]any{
		"condition": "5 > 3",
	}))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "true", result.Branch)
	assert.Equal(t, true, result.Output["result"])
	assert.Equal(t, ModeLiteral, result.Output["evaluation_mode"])
}

func TestUnsafeConditionResolvesToFalseBranch(t *testing.T) {
	executor := newExecutor(&stubModelClient{})

	result, err := executor.Execute(context.Background(), testContext(nil), conditionalNode(map[string]any{
		"condition": "os.exit(1); true",
	}))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "false", result.Branch)
	assert.Equal(t, false, result.Output["result"])
}

func TestVariableComparisonBranches(t *testing.T) {
	executor := newExecutor(&stubModelClient{})

	result, err := executor.Execute(context.Background(), testContext(map[string]any{"x": 1}), conditionalNode(map[string]any{
		"condition": "x == 1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "true", result.Branch)
}

func TestAIEvaluationUsed(t *testing.T) {
	client := &stubModelClient{text: "true"}
	executor := newExecutor(client)

	result, err := executor.Execute(context.Background(), testContext(nil), conditionalNode(map[string]any{
		"condition": "is the sky blue",
		"useAI":     true,
	}))
	require.NoError(t, err)

	assert.Equal(t, "true", result.Branch)
	assert.Equal(t, ModeAI, result.Output["evaluation_mode"])
	assert.Equal(t, 2, result.Usage.TokensUsed)
	assert.Equal(t, 1, client.calls)
}

func TestAIFailureFallsBackToLiteral(t *testing.T) {
	client := &stubModelClient{err: errors.New("model unavailable")}
	executor := newExecutor(client)

	result, err := executor.Execute(context.Background(), testContext(nil), conditionalNode(map[string]any{
		"condition": "10 >= 10",
		"useAI":     true,
	}))
	require.NoError(t, err)

	assert.Equal(t, "true", result.Branch)
	assert.Equal(t, ModeFallback, result.Output["evaluation_mode"])
}

func TestAIGarbageVerdictFallsBackToLiteral(t *testing.T) {
	client := &stubModelClient{text: "probably"}
	executor := newExecutor(client)

	result, err := executor.Execute(context.Background(), testContext(nil), conditionalNode(map[string]any{
		"condition": "2 < 1",
		"useAI":     true,
	}))
	require.NoError(t, err)

	assert.Equal(t, "false", result.Branch)
	assert.Equal(t, ModeFallback, result.Output["evaluation_mode"])
}

func TestTrueActionLiteralPassThrough(t *testing.T) {
	executor := newExecutor(&stubModelClient{})

	result, err := executor.Execute(context.Background(), testContext(map[string]any{"x": 1}), conditionalNode(map[string]any{
		"condition":  "x == 1",
		"trueAction": "log:done",
	}))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "true", result.Branch)
	assert.Equal(t, "log:done", result.Output["action_output"])
}

func TestFalseActionAIPrompt(t *testing.T) {
	client := &stubModelClient{text: "an apology"}
	executor := newExecutor(client)

	result, err := executor.Execute(context.Background(), testContext(nil), conditionalNode(map[string]any{
		"condition":   "1 > 2",
		"falseAction": "ai: write an apology",
	}))
	require.NoError(t, err)

	assert.Equal(t, "false", result.Branch)
	assert.Equal(t, "an apology", result.Output["action_output"])
	assert.Equal(t, 2, result.Usage.TokensUsed)
}

func TestMissingConditionFails(t *testing.T) {
	executor := newExecutor(&stubModelClient{})

	result, err := executor.Execute(context.Background(), testContext(nil), conditionalNode(map[string]any{}))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "condition")
}
