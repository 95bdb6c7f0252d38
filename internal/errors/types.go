// Package errors defines the structured error used for startup, config and
// route loading failures.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeRoute      ErrorType = "route"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// GatewayError is a structured error type with context.
type GatewayError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Route       string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Route != "" {
		parts = append(parts, "route:"+e.Route)
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

// Unwrap returns the underlying cause error.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is matches another GatewayError with the same type and code.
func (e *GatewayError) Is(target error) bool {
	var t *GatewayError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithContext adds context information to the error.
func (e *GatewayError) WithContext(key string, value interface{}) *GatewayError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRoute records the route key the error belongs to.
func (e *GatewayError) WithRoute(key string) *GatewayError {
	e.Route = key
	return e
}

// WithFile records the file path the error belongs to.
func (e *GatewayError) WithFile(path string) *GatewayError {
	e.FilePath = path
	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *GatewayError {
	return &GatewayError{Type: ErrorTypeValidation, Code: code, Message: message, Recoverable: true}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *GatewayError {
	return &GatewayError{Type: ErrorTypeSecurity, Code: code, Message: message}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *GatewayError {
	return &GatewayError{Type: ErrorTypeConfig, Code: code, Message: message, Recoverable: true}
}

// NewRouteError creates a route loading error.
func NewRouteError(code, key string, cause error) *GatewayError {
	return &GatewayError{
		Type:    ErrorTypeRoute,
		Code:    code,
		Message: "failed to load route",
		Cause:   cause,
		Route:   key,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *GatewayError {
	return &GatewayError{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *GatewayError {
	return &GatewayError{Type: ErrorTypeNetwork, Code: code, Message: message, Cause: cause}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *GatewayError {
	return &GatewayError{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// Wrap wraps err in a GatewayError, carrying over route and file context
// from an inner GatewayError.
func Wrap(err error, errType ErrorType, code, message string) *GatewayError {
	if err == nil {
		return nil
	}

	wrapped := &GatewayError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeConfig,
	}

	var ge *GatewayError
	if errors.As(err, &ge) {
		wrapped.Context = ge.Context
		wrapped.Route = ge.Route
		wrapped.FilePath = ge.FilePath
	}
	return wrapped
}

// IsRecoverable reports whether the error can be fixed without a restart,
// for example by editing config or a page file.
func IsRecoverable(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Recoverable
	}
	return false
}

// IsType reports whether err is a GatewayError of the given type.
func IsType(err error, errType ErrorType) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Type == errType
}

// FormatError formats an error for user display, appending sorted context.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var ge *GatewayError
	if !errors.As(err, &ge) || len(ge.Context) == 0 {
		return err.Error()
	}

	keys := make([]string, 0, len(ge.Context))
	for k := range ge.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(err.Error())
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %v", k, ge.Context[k])
	}
	return b.String()
}

// Common errors

// ErrInvalidPath reports a path the gateway refuses to use.
func ErrInvalidPath(path string) *GatewayError {
	return NewSecurityError("ERR_INVALID_PATH", "invalid path").WithContext("path", path)
}

// ErrPathTraversal reports a path that escapes its root.
func ErrPathTraversal(path string) *GatewayError {
	return NewSecurityError("ERR_PATH_TRAVERSAL", "path traversal attempt detected").WithContext("path", path)
}

// ErrInvalidOrigin reports a malformed allowed origin pattern.
func ErrInvalidOrigin(origin string) *GatewayError {
	return NewValidationError("ERR_INVALID_ORIGIN", "invalid origin").WithContext("origin", origin)
}
