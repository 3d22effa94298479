package apierr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Error is returned by handlers and written as {"error": {...}}. The cause
// is kept for logs and errors.Is but never sent to the client.
type Error struct {
	code    Code
	message string
	status  int
	details map[string]any
	cause   error
}

func New(code Code, status int, message string) *Error {
	return &Error{code: code, message: message, status: status}
}

func Wrap(code Code, status int, message string, cause error) *Error {
	return &Error{code: code, message: message, status: status, cause: cause}
}

// With attaches a client-visible detail such as the accepted values of a field.
func (e *Error) With(key string, value any) *Error {
	if e.details == nil {
		e.details = map[string]any{}
	}
	e.details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error           { return e.cause }
func (e *Error) Code() Code              { return e.code }
func (e *Error) Message() string         { return e.message }
func (e *Error) Status() int             { return e.status }
func (e *Error) Details() map[string]any { return e.details }

// Body is the JSON object under the "error" key.
type Body struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Response struct {
	Error Body `json:"error"`
}

func (e *Error) Response() Response {
	return Response{Error: Body{Code: e.code, Message: e.message, Details: e.details}}
}

// IsNotFound reports whether err wraps pgx.ErrNoRows.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
