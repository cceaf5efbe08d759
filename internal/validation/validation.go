// Package validation holds the shared request validator and turns its
// failures into field-level validation errors.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names rather than Go names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("entrytype", func(fl validator.FieldLevel) bool {
		return model.EntryType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("iana", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && s != "Local" && !strings.ContainsAny(s, " \t")
	})

	return v
}

// Validator returns the shared instance, for adapters such as echo's.
func Validator() *validator.Validate {
	return validate
}

// Struct validates s and returns the first failure as a validation error
// naming the field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.New(err).
			Component("validation").
			Category(errors.CategoryValidation).
			Build()
	}

	fe := verrs[0]
	return errors.ValidationError(fieldPath(fe), problem(fe))
}

// fieldPath drops the top-level struct name and embedded struct names from
// the namespace. JSON names are lower camel case, Go names of embedded
// structs are not.
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) < 2 {
		return fe.Field()
	}
	kept := make([]string, 0, len(parts)-1)
	for i, p := range parts[1:] {
		last := i == len(parts)-2
		if !last && p != "" && unicode.IsUpper(rune(p[0])) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ".")
}

func problem(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "unique":
		return "must not contain duplicates"
	case "entrytype":
		return "must be one of CLOCK_IN, CLOCK_OUT, BREAK_START, BREAK_END"
	case "iana":
		return "must be an IANA timezone name"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "latitude", "longitude":
		return fmt.Sprintf("must be a valid %s", fe.Tag())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
