package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	slugRe = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
)

// Validator returns the process-wide validator with custom rules
// registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return len(s) >= 2 && len(s) <= 50 && slugRe.MatchString(s)
		})
	})
	return validate
}

// ValidateStruct validates a request struct and flattens the field errors
// into a single human-readable string.
func ValidateStruct(v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}
