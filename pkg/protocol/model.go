package protocol

import "context"

// ModelOptions tunes a single language-model call.
type ModelOptions struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	System      string  `json:"system,omitempty"`
}

// Completion is the outcome of one language-model call.
type Completion struct {
	Text       string `json:"text"`
	Model      string `json:"model,omitempty"`
	TokensUsed int    `json:"tokens_used"`
}

// ModelClient is the outbound language-model capability. The orchestrator
// consumes it; transport and credentials belong to the implementation.
type ModelClient interface {
	Generate(ctx context.Context, prompt string, opts ModelOptions) (*Completion, error)
}
