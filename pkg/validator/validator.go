package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	v *validator.Validate

	// regxEmail is the loose address check used across ingestion and queue building:
	// local@domain.tld without whitespace.
	regxEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func init() {
	v = validator.New()
	_ = v.RegisterValidation("simplemail", func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
}

func Validate(i interface{}) error {
	if i == nil {
		return fmt.Errorf("data to validate is nil")
	}

	return v.Struct(i)
}

// Var validates single variable using tag.
func Var(field interface{}, tag string) error {
	return v.Var(field, tag)
}

// IsEmail reports whether s looks like an email address.
func IsEmail(s string) bool {
	if s != strings.TrimSpace(s) {
		return false
	}

	return regxEmail.MatchString(s)
}
