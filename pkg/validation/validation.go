// Package validation checks contract structs at the system boundary and
// reports the first violated constraint as a structured error.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	appErr "github.com/comfydeploy/engine/pkg/errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// New returns the shared validator. Field names in reported errors use the json tag.
func New() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return instance
}

// Struct validates v and returns nil or an invalid-input AppError naming the
// first failing field.
func Struct(v any) error {
	err := New().Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		return appErr.Validation(fe.Field(), message(fe))
	}
	return appErr.Wrap(err, appErr.CodeInvalid, "invalid input")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid url", fe.Field())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a uuid", fe.Field())
	case "min", "gte", "gt":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte", "lt":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
