package types

// ExecutionResult is the canonical output envelope returned to all four
// trigger surfaces.
type ExecutionResult struct {
	Success bool            `json:"success"`
	Data    any             `json:"data,omitempty"`
	Error   *ExecutionError `json:"error,omitempty"`
	Debug   *DebugData      `json:"debug,omitempty"`
}

// ExecutionError is the structured failure half of ExecutionResult.
type ExecutionError struct {
	Message    string    `json:"message"`
	Code       ErrorCode `json:"code"`
	HTTPStatus int       `json:"-"`
}

// DebugData is the telemetry bag attached to responses when debug output
// is enabled.
type DebugData struct {
	TokensUsed     int              `json:"tokensUsed"`
	CostUSD        float64          `json:"cost"`
	ModelUsed      string           `json:"modelUsed"`
	Provider       string           `json:"provider,omitempty"`
	Tier           CostTier         `json:"costTier,omitempty"`
	Category       string           `json:"category,omitempty"`
	Functions      []string         `json:"functionsInvoked,omitempty"`
	FallbackUsed   bool             `json:"fallbackUsed,omitempty"`
	TimingsMs      map[string]int64 `json:"timingsMs,omitempty"`
	TierAttempts   []string         `json:"tierAttempts,omitempty"`
	IntentCategory string           `json:"intentCategory,omitempty"`
}

// Failure builds an error envelope from a coded error.
func Failure(err *CosmoError) ExecutionResult {
	return ExecutionResult{
		Success: false,
		Error: &ExecutionError{
			Message:    err.Message,
			Code:       err.Code,
			HTTPStatus: err.Code.HTTPStatus(),
		},
	}
}

// Success builds a success envelope.
func SuccessResult(data any, debug *DebugData) ExecutionResult {
	return ExecutionResult{Success: true, Data: data, Debug: debug}
}
