// Package validate runs go-playground struct tag validation and reports the
// first failing field by its JSON name.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return instance
}

// FieldError names the first field that failed and the tag it failed on.
type FieldError struct {
	Field string
	Tag   string
}

func (e *FieldError) Error() string {
	return "invalid " + e.Field + ": " + e.Tag
}

// Struct validates v. A nil error means every tag passed.
func Struct(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &FieldError{Field: fieldErrs[0].Field(), Tag: fieldErrs[0].Tag()}
	}
	return err
}

// Field maps a failing field to a caller supplied sentinel. Errors for
// fields missing from sentinels are returned unchanged.
func Field(err error, sentinels map[string]error) error {
	var fe *FieldError
	if errors.As(err, &fe) {
		if sentinel, ok := sentinels[fe.Field]; ok {
			return sentinel
		}
	}
	return err
}
