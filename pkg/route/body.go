package route

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

const maxMultipartMemory = 32 << 20

var jsonMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// FormData parses a urlencoded or multipart body. It returns nil for
// requests that are not POST, unless the form was already parsed (as it is
// for method-overridden requests).
func FormData(r *http.Request) (url.Values, error) {
	if r.PostForm != nil {
		return r.PostForm, nil
	}
	if r.Method != http.MethodPost {
		return nil, nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
	default:
		return nil, nil
	}
	return r.PostForm, nil
}

// JSON decodes a JSON body for POST, PUT, PATCH and DELETE requests from
// clients that accept or send application/json. It returns nil otherwise.
func JSON[T any](r *http.Request) (*T, error) {
	if !jsonMethods[r.Method] || !isJSON(r) || r.Body == nil {
		return nil, nil
	}
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json body: %w", err)
	}
	return &v, nil
}

func isJSON(r *http.Request) bool {
	if r.Header.Get("Accept") == "application/json" {
		return true
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

// Parse reads a form or JSON body into a map. Repeated form keys become
// []string values.
func Parse(r *http.Request) (map[string]any, error) {
	form, err := FormData(r)
	if err != nil {
		return nil, err
	}
	if form != nil {
		out := make(map[string]any, len(form))
		for k, vs := range form {
			if len(vs) == 1 {
				out[k] = vs[0]
			} else {
				out[k] = append([]string(nil), vs...)
			}
		}
		return out, nil
	}
	m, err := JSON[map[string]any](r)
	if err != nil || m == nil {
		return nil, err
	}
	return *m, nil
}

// ParseInto parses the body into T and validates it with `validate` struct
// tags. Form values are converted to T's field types; fields are matched by
// their json tag. It returns nil, nil when the request carries no body.
func ParseInto[T any](r *http.Request) (*T, error) {
	form, err := FormData(r)
	if err != nil {
		return nil, err
	}

	var v *T
	if form != nil {
		data, _ := Parse(r)
		v = new(T)
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           v,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(data); err != nil {
			return nil, &TypeError{Message: err.Error()}
		}
	} else {
		v, err = JSON[T](r)
		if err != nil || v == nil {
			return nil, err
		}
	}

	if err := Validate(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks v's `validate` struct tags. Failures are returned as a
// *ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationError(verrs)
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return &TypeError{Message: invalid.Error()}
	}
	return err
}
