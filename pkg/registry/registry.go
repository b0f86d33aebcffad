// Package registry provides the type-keyed node executor registry built at
// startup.
package registry

import (
	"log/slog"
	"sort"

	"github.com/SanketsMane/Flowversal-sub007/pkg/protocol"
)

// Registry maps node types to their executors. Routing over the closed node
// type set is a registry lookup; an unregistered type is surfaced by the
// dispatcher, never silently skipped.
type Registry struct {
	logger    *slog.Logger
	executors map[string]protocol.NodeExecutor
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		executors: make(map[string]protocol.NodeExecutor),
	}
}

// Register binds an executor to every node type it serves. A later
// registration for the same type wins, which lets tests swap executors.
func (r *Registry) Register(executor protocol.NodeExecutor) {
	for _, nodeType := range executor.Types() {
		r.executors[nodeType] = executor
		r.logger.Debug("Registered node executor", "node_type", nodeType)
	}
}

// Executor returns the executor registered for the node type.
func (r *Registry) Executor(nodeType string) (protocol.NodeExecutor, bool) {
	executor, ok := r.executors[nodeType]

	return executor, ok
}

// Types returns the sorted list of registered node types.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.executors))
	for nodeType := range r.executors {
		types = append(types, nodeType)
	}

	sort.Strings(types)

	return types
}
