package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	NameMinLen  = 3
	NameMaxLen  = 16
	TitleMinLen = 3
	TitleMaxLen = 24
)

var (
	// ErrInvalidName is returned for display names outside the length or charset policy.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidTitle is returned for room titles outside the length or charset policy.
	ErrInvalidTitle = errors.New("invalid title")
)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_.~#-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("chatident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// NormalizeName trims surrounding whitespace from a display name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// ValidateName checks a display name: 3 to 16 characters from [A-Za-z0-9_.~#-].
func ValidateName(name string) error {
	return validateIdent(name, "name", NameMinLen, NameMaxLen, ErrInvalidName)
}

// ValidateTitle checks a room title: 3 to 24 characters from [A-Za-z0-9_.~#-].
func ValidateTitle(title string) error {
	return validateIdent(title, "title", TitleMinLen, TitleMaxLen, ErrInvalidTitle)
}

func validateIdent(value, field string, minLen, maxLen int, sentinel error) error {
	if err := validate.Var(value, fmt.Sprintf("min=%d,max=%d", minLen, maxLen)); err != nil {
		return fmt.Errorf("%w: %s should be between %d and %d characters long, found %d",
			sentinel, field, minLen, maxLen, utf8.RuneCountInString(value))
	}
	if err := validate.Var(value, "chatident"); err != nil {
		return fmt.Errorf("%w: %s is not valid", sentinel, field)
	}
	return nil
}

// Reason strips the sentinel prefix from a validation error so the remaining
// text can be shown to a user.
func Reason(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrInvalidName, ErrInvalidTitle} {
		if errors.Is(err, sentinel) {
			return strings.TrimPrefix(msg, sentinel.Error()+": ")
		}
	}
	return msg
}
