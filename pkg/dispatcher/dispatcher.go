// Package dispatcher routes nodes to their type-specific executors and
// normalizes the outcome.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/otelhelper"
	"github.com/SanketsMane/Flowversal-sub007/pkg/registry"
)

// Dispatcher resolves each node type through the registry and converts every
// executor outcome, including errors and panics, into a NodeExecutionResult.
// Nothing below this boundary throws into the execution driver.
type Dispatcher struct {
	logger   *slog.Logger
	registry *registry.Registry
	tracer   trace.Tracer
}

// NewDispatcher creates a dispatcher over the given executor registry.
func NewDispatcher(logger *slog.Logger, reg *registry.Registry) *Dispatcher {
	return &Dispatcher{
		logger:   logger.With("module", "dispatcher"),
		registry: reg,
		tracer:   otelhelper.NewTracer("flowversal-dispatcher"),
	}
}

// Dispatch runs one node and returns its normalized result. The returned
// result always has a measured duration; Success=false results carry the
// failure message.
func (d *Dispatcher) Dispatch(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode) *models.NodeExecutionResult {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "node.dispatch",
		attribute.String(otelhelper.ExecutionIDKey, ec.Execution.ID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
	)
	defer span.End()

	started := time.Now()

	result := d.execute(ctx, ec, node)
	result.Duration = time.Since(started)

	if !result.Success {
		otelhelper.SetError(span, fmt.Errorf("node %s failed: %s", node.ID, result.Error))

		d.logger.WarnContext(ctx, "Node failed",
			"execution_id", ec.Execution.ID,
			"node_id", node.ID,
			"node_type", node.Type,
			"error", result.Error,
		)

		return result
	}

	d.logger.InfoContext(ctx, "Node completed",
		"execution_id", ec.Execution.ID,
		"node_id", node.ID,
		"node_type", node.Type,
		"duration", result.Duration,
	)

	return result
}

func (d *Dispatcher) execute(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode) (result *models.NodeExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "Executor panicked",
				"node_id", node.ID,
				"node_type", node.Type,
				"panic", r,
				"stack", string(debug.Stack()),
			)

			result = models.FailedResult(fmt.Sprintf("executor panicked: %v", r))
		}
	}()

	executor, found := d.registry.Executor(node.Type)
	if !found {
		return models.FailedResult(fmt.Sprintf("Unknown node type: %s", node.Type))
	}

	result, err := executor.Execute(ctx, ec, node)
	if err != nil {
		return models.FailedResult(err.Error())
	}

	if result == nil {
		return models.FailedResult(fmt.Sprintf("executor for %s returned no result", node.Type))
	}

	if !result.Success && result.Error == "" {
		result.Error = fmt.Sprintf("node %s failed without a message", node.ID)
	}

	return result
}
