// Package errors provides the application error taxonomy and the error
// handling engine: severity classification, failure fingerprinting, and
// deduplicated alert dispatch.
package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// Category is the platform-neutral class of a failure. Severity is
// assigned from categories, keeping the classifier free of concrete
// exception type names.
type Category string

const (
	CategoryValidation   Category = "VALIDATION"
	CategoryNotFound     Category = "NOT_FOUND"
	CategoryConflict     Category = "CONFLICT"
	CategoryUnauthorized Category = "UNAUTHORIZED"
	CategoryForbidden    Category = "FORBIDDEN"
	CategoryTimeout      Category = "TIMEOUT"
	CategoryConnection   Category = "CONNECTION"
	CategoryRateLimit    Category = "RATE_LIMIT"
	CategoryData         Category = "DATA"
	CategoryExternal     Category = "EXTERNAL"
	CategoryUnavailable  Category = "UNAVAILABLE"
	CategoryInternal     Category = "INTERNAL"
	CategoryUnknown      Category = "UNKNOWN"
)

// Severity ranks a failure for logging and alerting.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Alertable reports whether failures of this severity are eligible for
// alert dispatch.
func (s Severity) Alertable() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// AppError is the structured error type raised by application code.
type AppError struct {
	Category Category `json:"category"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Cause    error    `json:"-"`

	// Stack is captured at construction, most recent call first.
	Stack []string `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to walk the cause chain.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying cause and returns the error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// New creates an AppError of the given category, capturing the call stack
// from the raising site.
func New(category Category, code, message string) *AppError {
	return newError(category, code, message)
}

// Convenience constructors for the common categories. Each captures the
// stack from its own caller, not from inside this package.

func Validation(code, message string) *AppError   { return newError(CategoryValidation, code, message) }
func NotFound(code, message string) *AppError     { return newError(CategoryNotFound, code, message) }
func Conflict(code, message string) *AppError     { return newError(CategoryConflict, code, message) }
func Unauthorized(code, message string) *AppError { return newError(CategoryUnauthorized, code, message) }
func Timeout(code, message string) *AppError      { return newError(CategoryTimeout, code, message) }
func Connection(code, message string) *AppError   { return newError(CategoryConnection, code, message) }
func External(code, message string) *AppError     { return newError(CategoryExternal, code, message) }
func Internal(code, message string) *AppError     { return newError(CategoryInternal, code, message) }

// newError is called directly by each exported constructor so the stack
// depth to the raising site is the same on every path.
func newError(category Category, code, message string) *AppError {
	return &AppError{
		Category: category,
		Code:     code,
		Message:  message,
		Stack:    captureStack(4),
	}
}

// captureStack records the stack above skip frames as "file:line func"
// strings, most recent call first.
func captureStack(skip int) []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(skip, pcs[:])

	frames := runtime.CallersFrames(pcs[:n])
	var stack []string
	for {
		frame, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}
	return stack
}

// ClassName returns the failure's class for log records: the category and
// code for AppError, the concrete Go type otherwise.
func ClassName(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return fmt.Sprintf("%s:%s", appErr.Category, appErr.Code)
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}
