package route

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is a route failure raised from Data or Body. An Error with a
// redirect target sends HTML clients to that target with 302 Found.
type Error struct {
	Message  string
	Redirect string
	Err      error
}

// NewError returns a route error without a redirect.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// RedirectTo returns a route error that redirects HTML clients to target.
func RedirectTo(target, message string) *Error {
	return &Error{Message: message, Redirect: target}
}

// Wrap returns a route error carrying err as its cause.
func Wrap(err error, message string) *Error {
	return &Error{Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Name is reported as the error type to JSON clients.
func (e *Error) Name() string { return "RouteError" }

// RedirectTarget reports the redirect carried by err, if any.
func RedirectTarget(err error) (string, bool) {
	var re *Error
	if errors.As(err, &re) && re.Redirect != "" {
		return re.Redirect, true
	}
	return "", false
}

// Issue is one failed validation rule.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
}

// ValidationError reports structured per-field failures.
type ValidationError struct {
	Issues []Issue
}

// Error joins the issue messages with ", ".
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Message
	}
	return strings.Join(msgs, ", ")
}

// Name is reported as the error type to JSON clients.
func (e *ValidationError) Name() string { return "ValidationError" }

// NewValidationError converts validator failures into issues.
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	issues := make([]Issue, 0, len(errs))
	for _, fe := range errs {
		issues = append(issues, Issue{
			Path:    fieldPath(fe),
			Message: issueMessage(fe),
			Tag:     fe.Tag(),
		})
	}
	return &ValidationError{Issues: issues}
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func issueMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must have length %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed the %q rule", field, fe.Tag())
	}
}

// TypeError reports a value of the wrong type, usually a programming
// mistake in the route rather than bad input.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return e.Message }

// Name is reported as the error type to JSON clients.
func (e *TypeError) Name() string { return "TypeError" }
