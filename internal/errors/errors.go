// Package errors provides the error taxonomy for the minter scanner.
//
// Three classes matter operationally: transient network/provider failures
// (retried or degraded locally, never fatal), missing data (records degrade
// to a partial state), and parse failures (logged and treated as a cache
// miss). No error in this system aborts the process.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/minter-scanner/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryTransient represents recoverable network/provider errors
	CategoryTransient ErrorCategory = "transient"
	// CategoryRateLimit represents upstream 429 responses
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryMissingData represents data absent at the source
	CategoryMissingData ErrorCategory = "missing_data"
	// CategoryParse represents malformed data (treated as cache miss)
	CategoryParse ErrorCategory = "parse"
	// CategoryUserInput represents invalid API request input
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryDatabase represents storage-layer errors
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents unexpected internal errors
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError for API responses
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewProviderError creates a transient upstream provider error
func NewProviderError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryTransient,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_ERROR",
		Message:    fmt.Sprintf("data provider error: %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewProviderTimeoutError creates a provider timeout error
func NewProviderTimeoutError(provider string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryTransient,
		StatusCode: http.StatusGatewayTimeout,
		Code:       "PROVIDER_TIMEOUT",
		Message:    fmt.Sprintf("data provider timeout: %s", provider),
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewRateLimitedError creates an upstream rate limit error. Tokens hit by
// this error are quarantined by the enrichment pipeline.
func NewRateLimitedError(provider string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "PROVIDER_RATE_LIMIT",
		Message:    fmt.Sprintf("data provider rate limit exceeded: %s", provider),
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewMissingMetadataError creates a missing-data error for a token
func NewMissingMetadataError(tokenID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryMissingData,
		StatusCode: http.StatusNotFound,
		Code:       "METADATA_NOT_FOUND",
		Message:    fmt.Sprintf("no on-chain metadata for token %s", tokenID),
		Details: map[string]interface{}{
			"tokenId": tokenID,
		},
	}
}

// NewParseError creates a parse error for malformed data. Callers treat
// this as a cache miss and recompute from source.
func NewParseError(what string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryParse,
		StatusCode: http.StatusInternalServerError,
		Code:       "PARSE_ERROR",
		Message:    fmt.Sprintf("malformed %s", what),
		Cause:      cause,
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryMissingData,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRateLimited reports whether the error is an upstream 429, either as a
// categorized error or as a raw provider message.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if catErr := Categorize(err); catErr.Category == CategoryRateLimit {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit")
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryTransient, CategoryDatabase:
		return true
	case CategoryRateLimit:
		// Rate limits are handled by quarantine, not immediate retry
		return false
	default:
		return false
	}
}
