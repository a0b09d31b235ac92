// Package errors provides error classification and HTTP response writing
// for the request facade.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/breaker"
	"github.com/rohansen856/database-layering/internal/store"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	// General errors
	ErrorCodeUnknown          ErrorCode = "UNKNOWN"
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceDown      ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout          ErrorCode = "TIMEOUT"
	ErrorCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"

	// Key-Value errors
	ErrorCodeKeyNotFound ErrorCode = "KEY_NOT_FOUND"

	// Resilience errors. An open circuit is its own class; the dependency
	// was not even tried.
	ErrorCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"

	// Auth errors
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler provides error handling functionality.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// HandleError classifies a domain error and writes the matching HTTP
// response.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, errorCode := Classify(err)
	requestID := r.Header.Get("X-Request-ID")

	h.WriteErrorResponse(w, statusCode, errorCode, err.Error(), requestID)
}

// Classify maps a domain error to its HTTP status and error code.
func Classify(err error) (int, ErrorCode) {
	switch {
	case err == nil:
		return http.StatusOK, ErrorCodeUnknown
	case errors.Is(err, breaker.ErrOpen):
		return http.StatusServiceUnavailable, ErrorCodeCircuitOpen
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrorCodeKeyNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorCodeTimeout
	default:
		return http.StatusInternalServerError, ErrorCodeInternalError
	}
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// WriteValidationError writes a validation error response.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}

// WriteInternalError writes an internal error response.
func (h *Handler) WriteInternalError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeInternalError, message, requestID)
}

// WriteServiceUnavailable writes a service unavailable response.
func (h *Handler) WriteServiceUnavailable(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusServiceUnavailable, ErrorCodeServiceDown, message, requestID)
}

// WriteRateLimitedError writes a rate limit exceeded response with
// retry-after guidance in seconds.
func (h *Handler) WriteRateLimitedError(w http.ResponseWriter, retryAfterSecs int, requestID string) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	h.WriteErrorResponse(w, http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded", requestID)
}

// WriteUnauthorized writes an authentication failure response.
func (h *Handler) WriteUnauthorized(w http.ResponseWriter, requestID string) {
	h.WriteErrorResponse(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid or missing API key", requestID)
}
