package server

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"

	"github.com/go-playground/validator/v10"

	"github.com/redraskal/gateway/internal/logging"
	"github.com/redraskal/gateway/internal/monitoring"
	"github.com/redraskal/gateway/pkg/route"
)

// Kind is the category of a route error.
type Kind int

const (
	KindGeneric Kind = iota
	KindValidation
	KindRedirect
	KindTypeMismatch
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRedirect:
		return "redirect"
	case KindTypeMismatch:
		return "type_mismatch"
	default:
		return "generic"
	}
}

// Classification is how the dispatcher treats a Data or Body error.
type Classification struct {
	Kind    Kind
	Name    string
	Message string
	// Issues is set for KindValidation.
	Issues []route.Issue
	// Redirect is set for KindRedirect.
	Redirect string
	Err      error
}

// Classify inspects err. It does not log.
func Classify(err error) Classification {
	c := Classification{Kind: KindGeneric, Name: "Error", Err: err}
	if err == nil {
		return c
	}

	var ve *route.ValidationError
	var vErrs validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
	case errors.As(err, &vErrs):
		ve = route.NewValidationError(vErrs)
	}
	if ve != nil {
		c.Kind = KindValidation
		c.Name = ve.Name()
		c.Message = ve.Error()
		c.Issues = ve.Issues
		return c
	}

	if target, ok := route.RedirectTarget(err); ok {
		c.Kind = KindRedirect
		c.Name = errorName(err)
		c.Redirect = target
		c.Message = err.Error()
		return c
	}

	if isTypeMismatch(err) {
		c.Kind = KindTypeMismatch
		c.Name = "TypeError"
		c.Message = err.Error()
		return c
	}

	c.Name = errorName(err)
	c.Message = err.Error()
	return c
}

// errorName returns the Name of the first error in the chain that has one.
func errorName(err error) string {
	var named interface{ Name() string }
	if errors.As(err, &named) {
		return named.Name()
	}
	return "Error"
}

func isTypeMismatch(err error) bool {
	var assertErr *runtime.TypeAssertionError
	var unmarshalErr *json.UnmarshalTypeError
	var typeErr *route.TypeError
	return errors.As(err, &assertErr) || errors.As(err, &unmarshalErr) || errors.As(err, &typeErr)
}

// classifier logs and counts classified errors.
type classifier struct {
	logger  logging.Logger
	metrics *monitoring.Metrics
}

// classify returns Classify(err) after logging one line for it. Type
// mismatches are logged with the full error and, for panics, the stack.
func (c classifier) classify(ctx context.Context, pathname string, err error) Classification {
	cls := Classify(err)
	c.metrics.RecordRouteError(cls.Kind.String())

	if cls.Kind == KindTypeMismatch {
		fields := []interface{}{"path", pathname, "type", cls.Name}
		var pe *route.PanicError
		if errors.As(err, &pe) && len(pe.Stack) > 0 {
			fields = append(fields, "stack", string(pe.Stack))
		}
		c.logger.Error(ctx, err, "Route type error", fields...)
		return cls
	}

	c.logger.Error(ctx, err, "["+cls.Name+"] "+pathname+" "+cls.Message,
		"path", pathname, "type", cls.Name, "kind", cls.Kind.String())
	return cls
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string        `json:"type"`
	Issues  []route.Issue `json:"issues,omitempty"`
	Message string        `json:"message"`
}

func (c Classification) body() errorBody {
	d := errorDetail{Type: c.Name, Message: c.Message}
	if c.Kind == KindValidation {
		d.Issues = c.Issues
	}
	return errorBody{Error: d}
}
