// Package llmerrors provides structured error classification for inference endpoint calls.
//
// Callers in this module never retry: a classified error only decides how a
// failure is logged and labelled before it is collapsed into a sentinel value.
package llmerrors

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorType represents different categories of inference errors.
type ErrorType int8

const (
	// ErrorTypeTimeout represents a request that exceeded its deadline.
	ErrorTypeTimeout ErrorType = iota
	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection refused or reset).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents a successful HTTP exchange without the expected reply field.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed request errors (400, 404 unknown model, 413, 422).
	ErrorTypeBadPrompt
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error represents a classified inference error.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("inference error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("inference error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("inference error (%s): status %d", e.Type.String(), e.StatusCode)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// NewError creates a new classified error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewErrorWithStatus creates a new classified error with HTTP status.
func NewErrorWithStatus(errorType ErrorType, statusCode int, cause error) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Err: cause}
}

// TypeForStatus maps an HTTP status code to an error type.
func TypeForStatus(status int) ErrorType {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeAuth
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case status >= 500:
		return ErrorTypeTransient
	case status >= 400:
		return ErrorTypeBadPrompt
	default:
		return ErrorTypeUnknown
	}
}

// Classify converts an arbitrary transport error into a classified *Error.
// Already classified errors are returned unchanged. statusCode is used when
// the provider SDK exposed one (0 otherwise).
func Classify(err error, statusCode int) error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}

	if statusCode > 0 {
		return NewErrorWithStatus(TypeForStatus(statusCode), statusCode, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Type: ErrorTypeTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Type: ErrorTypeTimeout, Err: err}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return &Error{Type: ErrorTypeTimeout, Err: err}
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "eof"),
		strings.Contains(errStr, "no such host"):
		return &Error{Type: ErrorTypeTransient, Err: err}
	case strings.Contains(errStr, "context canceled"):
		return &Error{Type: ErrorTypeTransient, Err: err}
	default:
		return &Error{Type: ErrorTypeUnknown, Err: err}
	}
}

// SanitizePrompt creates a safe representation of a prompt for logging.
// For large prompts, it returns first/last portions plus a hash of the full content.
func SanitizePrompt(prompt string, maxChars int) string {
	if len(prompt) <= maxChars {
		return prompt
	}

	halfMax := maxChars / 2
	if halfMax < 100 {
		halfMax = 100
	}
	if 2*halfMax >= len(prompt) {
		return prompt
	}

	first := prompt[:halfMax]
	last := prompt[len(prompt)-halfMax:]

	hash := sha256.Sum256([]byte(prompt))
	hashStr := fmt.Sprintf("%x", hash)[:16]

	return fmt.Sprintf("%s...[%d chars, hash:%s]...%s", first, len(prompt), hashStr, last)
}
