package types

import "time"

// FunctionCandidate is one row of the function registry: a capability
// COSMO can invoke to satisfy an intent.
type FunctionCandidate struct {
	FunctionKey  string   `json:"function_key"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	InputSchema  []byte   `json:"input_schema,omitempty"`
	OutputSchema []byte   `json:"output_schema,omitempty"`
	Enabled      bool     `json:"enabled"`
}

// FunctionSelection is the selector's output: which functions to run and
// in what order. ExecutionOrder is always a permutation of Selected.
type FunctionSelection struct {
	Selected       []string `json:"selected_functions"`
	ExecutionOrder []string `json:"execution_order"`
	Reasoning      string   `json:"reasoning"`
}

// FunctionExecutionResult records one function invocation attempt.
type FunctionExecutionResult struct {
	FunctionKey string        `json:"function_key"`
	Success     bool          `json:"success"`
	Result      any           `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	Events      []string      `json:"events,omitempty"`
	Elapsed     time.Duration `json:"elapsed_ms"`
}

// BatchExecutionResult aggregates a whole batch of function executions.
type BatchExecutionResult struct {
	Results []FunctionExecutionResult `json:"results"`
	Errors  []string                  `json:"errors,omitempty"`
	Elapsed time.Duration             `json:"elapsed_ms"`
	// Context is the accumulated context after sequential execution;
	// successful results are merged under their function key.
	Context map[string]any `json:"-"`
}
