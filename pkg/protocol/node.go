// Package protocol defines the interfaces and contracts between the
// execution driver, node executors, and outbound capabilities.
package protocol

import (
	"context"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
)

// NodeExecutor executes nodes of one category. An executor may serve several
// node types (its Types list); routing between them is an inner concern.
//
// Executors are side-effect-free with respect to the record store: usage
// accounting and variable writes travel back on the result and are applied
// and persisted by the execution driver.
type NodeExecutor interface {
	// Execute runs one node against the execution context. A nil error
	// with a Success=false result is a normal node failure; a non-nil
	// error is converted into one at the dispatcher boundary.
	Execute(ctx context.Context, ec *models.ExecutionContext, node *models.WorkflowNode) (*models.NodeExecutionResult, error)

	// Types returns the node types this executor serves.
	Types() []string
}
