package models

import "time"

// UsageDelta carries the usage accounting produced by a single node dispatch.
// Executors stay side-effect-free with respect to the record store: the
// execution driver applies and persists the delta once per node.
type UsageDelta struct {
	TokensUsed int `json:"tokens_used,omitempty" bson:"tokens_used,omitempty"`
	APICalls   int `json:"api_calls,omitempty" bson:"api_calls,omitempty"`
}

// NodeExecutionResult is produced once per node per dispatch attempt.
// A result with Success=false always carries a non-empty Error.
type NodeExecutionResult struct {
	Success  bool           `json:"success" bson:"success"`
	Output   map[string]any `json:"output,omitempty" bson:"output,omitempty"`
	Error    string         `json:"error,omitempty" bson:"error,omitempty"`
	Duration time.Duration  `json:"duration" bson:"duration"`
	Usage    UsageDelta     `json:"usage,omitempty" bson:"usage,omitempty"`

	// Variables holds writes a set-variable node asks the driver to merge
	// into the execution record.
	Variables map[string]any `json:"variables,omitempty" bson:"variables,omitempty"`

	// Branch labels the outcome of a conditional node ("true" / "false").
	Branch string `json:"branch,omitempty" bson:"branch,omitempty"`

	// ApprovalRequested marks the deliberate pause-not-fail signal of a
	// human-approval node. The driver suspends the run instead of
	// completing it.
	ApprovalRequested bool   `json:"approval_requested,omitempty" bson:"approval_requested,omitempty"`
	ApprovalID        string `json:"approval_id,omitempty" bson:"approval_id,omitempty"`

	// Halt asks the driver to stop dispatching the remaining sequence
	// without failing the run (a trigger node that did not fire).
	Halt bool `json:"halt,omitempty" bson:"halt,omitempty"`
}

// FailedResult builds a terminal failed result with the given message.
func FailedResult(message string) *NodeExecutionResult {
	return &NodeExecutionResult{
		Success: false,
		Error:   message,
	}
}

// SuccessResult builds a successful result wrapping the given output.
func SuccessResult(output map[string]any) *NodeExecutionResult {
	return &NodeExecutionResult{
		Success: true,
		Output:  output,
	}
}
