package httpx

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationError maps json field names to the rule each one broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, rule := range e.Fields {
		parts = append(parts, f+": "+rule)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator adapts go-playground/validator to echo.Validator.  Field names
// in errors come from json tags.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
	}
	return &ValidationError{Fields: fields}
}

// Bind decodes the request into dst and validates it.  It returns a
// *ValidationError for rule failures and the decode error otherwise.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return c.Validate(dst)
}

// BadBody writes the 400 "Invalid body." response for a Bind failure.
func BadBody(c echo.Context, err error) error {
	var details any
	var verr *ValidationError
	if errors.As(err, &verr) {
		details = map[string]any{"fieldErrors": verr.Fields}
	}
	return Fail(c, http.StatusBadRequest, CodeValidation, "Invalid body.", details)
}
