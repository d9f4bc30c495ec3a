package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrUnknownAPI is returned when the API selector has no configured endpoint.
	ErrUnknownAPI = errors.New("unknown api")

	// ErrUnexpectedPayload is returned when a response body is not a JSON object.
	ErrUnexpectedPayload = errors.New("unexpected response payload")
)

// APIError represents a failed API call with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Code       string // server error code, e.g. M_FORBIDDEN
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure is transient. The client never
// retries; callers that implement a retry policy can use this to decide.
func (e *APIError) Temporary() bool {
	return isTemporary(e.ErrorClass)
}

func isTemporary(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx will fail the same way again
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
