// Package validation holds the declarative payload schemas. It performs no I/O.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError describes the first field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Message
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report json names so messages match the request payload.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates v and converts the first failure into a FieldError.
func Struct(v interface{}) *FieldError {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &FieldError{Field: "", Rule: "invalid", Message: err.Error()}
	}
	return toFieldError(verrs[0])
}

func toFieldError(fe validator.FieldError) *FieldError {
	field := fieldPath(fe.Namespace())
	out := &FieldError{Field: field, Rule: fe.Tag()}
	switch fe.Tag() {
	case "required":
		out.Message = fmt.Sprintf("%s is required", field)
	case "email":
		out.Message = fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if fe.Kind() == reflect.String {
			out.Message = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		} else {
			out.Message = fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
	case "max":
		if fe.Kind() == reflect.String {
			out.Message = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		} else {
			out.Message = fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
	case "oneof":
		out.Message = fmt.Sprintf("%s must be one of: %s", field, strings.Join(strings.Fields(fe.Param()), ", "))
	case "url", "uri":
		out.Message = fmt.Sprintf("%s must be a valid URL", field)
	default:
		out.Message = fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
	return out
}

// fieldPath drops the top level struct name: "ExerciseInput.equipment[0]" -> "equipment[0]".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// normalizeList trims entries, drops empty ones and removes duplicates keeping order.
func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
