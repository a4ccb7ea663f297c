package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/cosmohq/cosmo-core/internal/types"
)

// ErrorEnvelope is the caller-facing error shape. Every error returned
// over HTTP uses this envelope with a status derived from the code.
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

type ErrorBody struct {
	Message   string          `json:"message"`
	Code      types.ErrorCode `json:"code"`
	RequestID string          `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, requestID string, code types.ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(code.HTTPStatus())
	json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: ErrorBody{
			Message:   message,
			Code:      code,
			RequestID: requestID,
		},
	})
}

// WriteCosmoError writes a domain error using its own code.
func WriteCosmoError(w http.ResponseWriter, requestID string, err *types.CosmoError) {
	WriteError(w, requestID, err.Code, err.Message)
}

func WriteAuthError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, types.CodeUnauthorized, message)
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, types.CodeInvalidPayload, message)
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, types.CodeInternal, message)
}

func WriteRateLimitError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, types.CodeRateLimited, message)
}

func WriteBudgetExceededError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, types.CodePaymentRequired, message)
}

// WriteJSON writes a payload with the standard headers.
func WriteJSON(w http.ResponseWriter, requestID string, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
