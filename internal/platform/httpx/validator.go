package httpx

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/medq/medq/internal/platform/apperr"
)

// Validator adapts go-playground/validator to echo.Validator. Field names in
// messages use the json tag so clients see the names they sent.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	if err := cv.v.Struct(i); err != nil {
		return apperr.Invalid("%s", FormatValidationErrors(err))
	}
	return nil
}

var tagMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"min":      "must be at least %s",
	"max":      "must be at most %s",
	"gt":       "must be greater than %s",
	"gte":      "must be greater than or equal to %s",
	"oneof":    "must be one of: %s",
}

// FormatValidationErrors joins every field error into one message, e.g.
// "title is required, score must be at least 0".
func FormatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		if strings.Contains(msg, "%s") {
			param := fe.Param()
			if fe.Tag() == "oneof" {
				param = strings.Join(strings.Fields(param), ", ")
			}
			msg = strings.Replace(msg, "%s", param, 1)
		}
		parts = append(parts, fe.Field()+" "+msg)
	}
	return strings.Join(parts, ", ")
}

// Bind decodes the request into v and validates it.
func Bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return err
	}
	return c.Validate(v)
}
