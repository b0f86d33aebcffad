package models

// ExecutionContext is the transient, in-process view over one workflow
// execution. It lives only for the duration of one dispatch pass and is
// reconstructed on resume from the persisted WorkflowExecution.
type ExecutionContext struct {
	Workflow    *Workflow                       `json:"workflow"`
	Execution   *WorkflowExecution              `json:"execution"`
	Input       map[string]any                  `json:"input,omitempty"`
	Variables   map[string]any                  `json:"variables,omitempty"`
	StepResults map[string]*NodeExecutionResult `json:"step_results,omitempty"`
}

// NewExecutionContext builds a context seeded from the persisted execution
// record, so a resumed run sees the variables and step results of the
// original pass.
func NewExecutionContext(workflow *Workflow, execution *WorkflowExecution) *ExecutionContext {
	variables := make(map[string]any, len(execution.Variables))
	for k, v := range execution.Variables {
		variables[k] = v
	}

	stepResults := make(map[string]*NodeExecutionResult, len(execution.StepResults))
	for k, v := range execution.StepResults {
		stepResults[k] = v
	}

	return &ExecutionContext{
		Workflow:    workflow,
		Execution:   execution,
		Input:       execution.Input,
		Variables:   variables,
		StepResults: stepResults,
	}
}

// SetVariable writes a variable visible to subsequent nodes in this pass.
func (ec *ExecutionContext) SetVariable(key string, value any) {
	if ec.Variables == nil {
		ec.Variables = make(map[string]any)
	}

	ec.Variables[key] = value
}

// RecordResult makes a node result visible to subsequent nodes in this pass.
func (ec *ExecutionContext) RecordResult(nodeID string, result *NodeExecutionResult) {
	if ec.StepResults == nil {
		ec.StepResults = make(map[string]*NodeExecutionResult)
	}

	ec.StepResults[nodeID] = result
}
