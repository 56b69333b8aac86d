package flows

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinPasswordLength is the shortest password the complexity policy accepts.
const MinPasswordLength = 8

// ValidateEmail applies the syntactic check done before any request that
// carries an email.
func ValidateEmail(email string) error {
	return validation.Validate(strings.TrimSpace(email), validation.Required, is.Email)
}

// ValidatePassword enforces the complexity policy: at least
// MinPasswordLength characters with an upper case letter, a lower case
// letter, a digit and a symbol.
func ValidatePassword(password string) error {
	return validation.Validate(password,
		validation.Required,
		validation.RuneLength(MinPasswordLength, 0),
		validation.By(passwordClasses),
	)
}

// ValidateConfirmation checks that the repeated password matches.
func ValidateConfirmation(password, confirm string) error {
	return validation.Validate(confirm, validation.Required, validation.By(stringEquals(password)))
}

func passwordClasses(value interface{}) error {
	s, _ := value.(string)
	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	var missing []string
	if !upper {
		missing = append(missing, "an uppercase letter")
	}
	if !lower {
		missing = append(missing, "a lowercase letter")
	}
	if !digit {
		missing = append(missing, "a digit")
	}
	if !symbol {
		missing = append(missing, "a symbol")
	}
	if len(missing) > 0 {
		return errors.New("must contain " + strings.Join(missing, ", "))
	}
	return nil
}

func stringEquals(str string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("passwords do not match")
		}
		return nil
	}
}
