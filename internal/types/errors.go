package types

import (
	"fmt"
	"net/http"
)

// ErrorCode is the stable, caller-facing error taxonomy. Every code maps
// to a fixed HTTP status for HTTP-facing deployments.
type ErrorCode string

const (
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeInvalidPayload     ErrorCode = "INVALID_PAYLOAD"
	CodePermissionDenied   ErrorCode = "PERMISSION_DENIED"
	CodeFunctionFailed     ErrorCode = "FUNCTION_FAILED"
	CodeModelUnavailable   ErrorCode = "MODEL_UNAVAILABLE"
	CodeConfigMissing      ErrorCode = "CONFIG_MISSING"
	CodePaymentRequired    ErrorCode = "PAYMENT_REQUIRED"
	CodeIntegrationExpired ErrorCode = "INTEGRATION_EXPIRED"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeInternal           ErrorCode = "INTERNAL"
)

// HTTPStatus returns the fixed status for a code. Unknown codes are
// treated as internal errors.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeUnauthorized, CodeIntegrationExpired:
		return http.StatusUnauthorized
	case CodeInvalidPayload:
		return http.StatusBadRequest
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeFunctionFailed:
		return http.StatusBadGateway
	case CodeModelUnavailable:
		return http.StatusServiceUnavailable
	case CodePaymentRequired:
		return http.StatusPaymentRequired
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CosmoError is a coded domain error. It is the only error shape that
// crosses the system boundary.
type CosmoError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *CosmoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CosmoError) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, message string) *CosmoError {
	return &CosmoError{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, cause error) *CosmoError {
	return &CosmoError{Code: code, Message: message, Cause: cause}
}
