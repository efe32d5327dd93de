package scheduling

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"schedula/reservations/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs the struct tags of in and reports the first failure as a
// *ValidationError.
func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return validationError(fieldError(ve[0]))
	}
	return validationError(err.Error())
}

func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "datetime":
		switch fe.Param() {
		case domain.DateLayout:
			return field + " must be a date formatted YYYY-MM-DD"
		case domain.TimeOfDayLayout:
			return field + " must be a time formatted HH:MM"
		}
		return fmt.Sprintf("%s must match %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
