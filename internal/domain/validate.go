package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("kephone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("eventtype", func(fl validator.FieldLevel) bool {
		return EventType(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks an input struct and reports the first problem as a
// *ValidationError. Missing required fields are reported together.
func Validate(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Msg: err.Error()}
	}
	var missing []string
	var first *ValidationError
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		if first == nil {
			first = &ValidationError{Field: fe.Field(), Msg: describe(fe)}
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Msg: "missing required fields: " + strings.Join(missing, ", ")}
	}
	return first
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "kephone":
		return "malformed phone number"
	case "eventtype":
		return "unknown event type"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "too long (max " + fe.Param() + ")"
	case "latitude", "longitude":
		return "out of range"
	}
	return "invalid value"
}
