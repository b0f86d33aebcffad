package utility

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
)

func newExecutor() *Executor {
	return NewExecutor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testContext(variables map[string]any) *models.ExecutionContext {
	workflow := &models.Workflow{ID: "wf-1"}
	execution := &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1", Variables: variables}

	return models.NewExecutionContext(workflow, execution)
}

func TestDelayWaitsConfiguredDuration(t *testing.T) {
	executor := newExecutor()

	node := &models.WorkflowNode{ID: "delay-1", Type: models.NodeTypeDelay, Config: map[string]any{"seconds": 0.01}}

	start := time.Now()
	result, err := executor.Execute(context.Background(), testContext(nil), node)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestDelayInterruptedByContext(t *testing.T) {
	executor := newExecutor()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	node := &models.WorkflowNode{ID: "delay-1", Type: models.NodeTypeDelay, Config: map[string]any{"seconds": 10.0}}

	result, err := executor.Execute(ctx, testContext(nil), node)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "delay interrupted")
}

func TestDelayMissingSecondsFails(t *testing.T) {
	executor := newExecutor()

	node := &models.WorkflowNode{ID: "delay-1", Type: models.NodeTypeDelay, Config: map[string]any{}}

	result, err := executor.Execute(context.Background(), testContext(nil), node)
	require.NoError(t, err)

	assert.False(t, result.Success)
}

func TestLogResolvesPlaceholders(t *testing.T) {
	executor := newExecutor()

	node := &models.WorkflowNode{
		ID:     "log-1",
		Type:   models.NodeTypeLog,
		Config: map[string]any{"message": "done: {{outcome}}", "level": "warn"},
	}

	result, err := executor.Execute(context.Background(), testContext(map[string]any{"outcome": "ok"}), node)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "done: ok", result.Output["message"])
}

func TestSetVariableReturnsWritesOnResult(t *testing.T) {
	executor := newExecutor()

	ec := testContext(nil)
	node := &models.WorkflowNode{
		ID:     "set-1",
		Type:   models.NodeTypeSetVariable,
		Config: map[string]any{"variables": map[string]any{"x": 1.0, "greeting": "hi"}},
	}

	result, err := executor.Execute(context.Background(), ec, node)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1.0, result.Variables["x"])
	assert.Equal(t, "hi", result.Variables["greeting"])
	assert.Equal(t, 1.0, ec.Variables["x"])
}

func TestSetVariableSingleKeyForm(t *testing.T) {
	executor := newExecutor()

	node := &models.WorkflowNode{
		ID:     "set-1",
		Type:   models.NodeTypeSetVariable,
		Config: map[string]any{"key": "status", "value": "ready"},
	}

	result, err := executor.Execute(context.Background(), testContext(nil), node)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "ready", result.Variables["status"])
}

func TestSetVariableResolvesPlaceholders(t *testing.T) {
	executor := newExecutor()

	node := &models.WorkflowNode{
		ID:     "set-1",
		Type:   models.NodeTypeSetVariable,
		Config: map[string]any{"key": "copy", "value": "{{source}}"},
	}

	result, err := executor.Execute(context.Background(), testContext(map[string]any{"source": "origin"}), node)
	require.NoError(t, err)

	assert.Equal(t, "origin", result.Variables["copy"])
}
