// Package errors provides standardized error handling for the council pipeline.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Advisor / provider errors
	ErrCodeProviderUnavailable      ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeBothProvidersUnavailable ErrorCode = "BOTH_PROVIDERS_UNAVAILABLE"
	ErrCodeProviderEmptyResponse    ErrorCode = "PROVIDER_EMPTY_RESPONSE"

	// Synthesis errors
	ErrCodeMergeCallFailed    ErrorCode = "MERGE_CALL_FAILED"
	ErrCodeMergeSchemaInvalid ErrorCode = "MERGE_SCHEMA_INVALID"
	ErrCodeArbiterFailed      ErrorCode = "ARBITER_FAILED"

	// Pipeline / transport errors
	ErrCodePipelineTimeout ErrorCode = "PIPELINE_TIMEOUT"
	ErrCodeRequestInvalid  ErrorCode = "REQUEST_INVALID"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"

	// Storage errors
	ErrCodeThreadNotFound        ErrorCode = "THREAD_NOT_FOUND"
	ErrCodeShareTokenNotFound    ErrorCode = "SHARE_TOKEN_NOT_FOUND"
	ErrCodeDatabaseQueryFailed   ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed  ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeHistoryCacheUnhealthy ErrorCode = "HISTORY_CACHE_UNHEALTHY"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewProviderUnavailableError creates a retryable single-provider error.
func NewProviderUnavailableError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderUnavailable,
		Message:   fmt.Sprintf("Advisor provider '%s' failed", provider),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

// NewBothProvidersUnavailableError creates the terminal council-mode error.
func NewBothProvidersUnavailableError() *StandardError {
	return &StandardError{
		Code:      ErrCodeBothProvidersUnavailable,
		Message:   "Both advisor providers are unavailable",
		Details:   "neither advisor produced a response",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderEmptyResponseError marks a provider call that returned no text.
func NewProviderEmptyResponseError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderEmptyResponse,
		Message:   fmt.Sprintf("Advisor provider '%s' returned empty content", provider),
		Retryable: true,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

// NewMergeCallFailedError creates a synthesis transport error.
func NewMergeCallFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMergeCallFailed,
		Message:   "Synthesis model call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMergeSchemaInvalidError marks a merge output that failed validation
// after the bounded retry. Recovered by raw-text fallback, never surfaced.
func NewMergeSchemaInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMergeSchemaInvalid,
		Message:   "Merge output did not match the artifact schema",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewArbiterFailedError marks a failed arbiter review; the review is omitted.
func NewArbiterFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArbiterFailed,
		Message:   "Arbiter review failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPipelineTimeoutError creates the whole-request timeout error.
func NewPipelineTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodePipelineTimeout,
		Message:   "Council pipeline exceeded its time budget",
		Details:   "try again with a shorter message or fewer attachments",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestInvalidError creates a non-retryable bad-request error.
func NewRequestInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestInvalid,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewThreadNotFoundError creates a non-retryable lookup error.
func NewThreadNotFoundError(threadID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeThreadNotFound,
		Message:   "Thread not found",
		Details:   fmt.Sprintf("threadId: %s", threadID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewShareTokenNotFoundError creates a non-retryable lookup error.
func NewShareTokenNotFoundError(token string) *StandardError {
	return &StandardError{
		Code:      ErrCodeShareTokenNotFound,
		Message:   "Share token not found",
		Details:   fmt.Sprintf("token: %s", token),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseQueryFailedError creates a retryable query error.
func NewDatabaseQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database query execution error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Internal server error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Status Mapping
// ==========================

// HTTPStatusMapping maps internal error codes to HTTP response statuses.
// Only terminal pipeline failures map to non-2xx classes; schema and arbiter
// failures degrade gracefully and never reach this table from the handler.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeProviderUnavailable:      http.StatusServiceUnavailable,
	ErrCodeBothProvidersUnavailable: http.StatusServiceUnavailable,
	ErrCodeProviderEmptyResponse:    http.StatusServiceUnavailable,
	ErrCodePipelineTimeout:          http.StatusGatewayTimeout,
	ErrCodeRequestInvalid:           http.StatusBadRequest,
	ErrCodeThreadNotFound:           http.StatusNotFound,
	ErrCodeShareTokenNotFound:       http.StatusNotFound,
	ErrCodeDatabaseQueryFailed:      http.StatusInternalServerError,
	ErrCodeDatabaseInsertFailed:     http.StatusInternalServerError,
	ErrCodeMergeCallFailed:          http.StatusInternalServerError,
	ErrCodeMergeSchemaInvalid:       http.StatusInternalServerError,
	ErrCodeInternal:                 http.StatusInternalServerError,
}

// HTTPStatus returns the response status for an error code.
func HTTPStatus(code ErrorCode) int {
	if status, exists := HTTPStatusMapping[code]; exists {
		return status
	}
	return http.StatusInternalServerError
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeProviderUnavailable,
		ErrCodeBothProvidersUnavailable,
		ErrCodeProviderEmptyResponse,
		ErrCodeMergeCallFailed,
		ErrCodePipelineTimeout,
		ErrCodeDatabaseQueryFailed,
		ErrCodeDatabaseInsertFailed:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "PROVIDER"):
		return "ADVISOR"
	case strings.Contains(codeStr, "MERGE") || strings.Contains(codeStr, "ARBITER"):
		return "SYNTHESIS"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "CACHE"):
		return "STORAGE"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "NOT_FOUND"):
		return "REQUEST"
	default:
		return "OTHER"
	}
}
