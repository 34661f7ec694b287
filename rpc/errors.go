package rpc

import (
	"fmt"
	"net/http"
)

// Error is a handler error carrying an HTTP status and a machine readable
// code. Handlers return it to control the response; any other error is
// reported as 500.
type Error struct {
	status  int
	code    string
	message string
	cause   error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Status returns the HTTP status code.
func (e *Error) Status() int { return e.status }

// Code returns the machine readable code, if any.
func (e *Error) Code() string { return e.code }

// Message returns the message without the cause.
func (e *Error) Message() string { return e.message }

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates an error with the given status and message.
func NewError(status int, message string) *Error {
	return &Error{status: status, message: message}
}

// Errorf creates an error with the given status and formatted message.
func Errorf(status int, format string, args ...any) *Error {
	return &Error{status: status, message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with a status and message.
func Wrap(status int, message string, cause error) *Error {
	return &Error{status: status, message: message, cause: cause}
}

// WithCode returns a copy of e carrying code.
func (e *Error) WithCode(code string) *Error {
	c := *e
	c.code = code
	return &c
}

// BadRequest creates a 400 error.
func BadRequest(message string) *Error { return NewError(http.StatusBadRequest, message) }

// NotFound creates a 404 error.
func NotFound(message string) *Error { return NewError(http.StatusNotFound, message) }

// errorBody is the JSON shape of every error response.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}
