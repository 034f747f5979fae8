package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors the Flickr API can produce
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeAPI         ErrorType = "api"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Flickr API error codes that map onto a specific ErrorType.
const (
	CodeUserNotFound    = 1
	CodeRateLimited     = 201
	CodeInvalidAPIKey   = 100
	CodeInvalidSig      = 96
	CodeMissingSig      = 97
	CodeLoginFailed     = 98
	CodeUserNotLoggedIn = 99
)

// Error represents an API error with type information. Code is either the
// Flickr "code" field of a failed response or the HTTP status.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// FromAPICode classifies a Flickr {"stat":"fail"} response. The API
// answered, so none of these types are retried by the transport; only
// CodeRateLimited is singled out, for the caller's cooldown.
func FromAPICode(code int, message string) *Error {
	t := ErrorTypeAPI
	switch code {
	case CodeRateLimited:
		t = ErrorTypeRateLimit
	case CodeInvalidAPIKey, CodeInvalidSig, CodeMissingSig, CodeLoginFailed, CodeUserNotLoggedIn:
		t = ErrorTypeAuth
	case CodeUserNotFound:
		t = ErrorTypeNotFound
	}
	return &Error{Type: t, Code: code, Message: message}
}

// FromStatusCode classifies a non-200 HTTP response.
func FromStatusCode(statusCode int, message string) *Error {
	t := ErrorTypeUnknown
	switch {
	case statusCode == 429:
		t = ErrorTypeRateLimit
	case statusCode == 401 || statusCode == 403:
		t = ErrorTypeAuth
	case statusCode == 404:
		t = ErrorTypeNotFound
	case IsRetryableStatusCode(statusCode):
		t = ErrorTypeServerError
	}
	return &Error{Type: t, Code: statusCode, Message: message}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// IsRateLimited reports whether err signals that the remote API throttled us.
func IsRateLimited(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeRateLimit
}

// IsAPIError reports whether err originated from the remote API at all,
// as opposed to a local failure.
func IsAPIError(err error) bool {
	var apiErr *Error
	return stderrors.As(err, &apiErr)
}

// IsRetryable checks if an error type should be retried by the transport.
// Rate limits are handled by the caller's cooldown policy instead.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether an HTTP status is worth another
// attempt. 0 stands for a request that never got a response.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error
		return true
	case 401, 403, 404, 429:
		return false
	default:
		return statusCode >= 500
	}
}
