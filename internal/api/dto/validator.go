package dto

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const minPasswordLength = 8

// Validator wraps go-playground/validator with the account rules.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the custom "password" rule. It panics if the rule
// cannot be registered.
func NewValidator() *Validator {
	v := validator.New()
	if err := registerRules(v, map[string]validator.Func{
		"password": func(fl validator.FieldLevel) bool {
			return PasswordProblem(fl.Field().String()) == ""
		},
	}); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

func registerRules(v *validator.Validate, rules map[string]validator.Func) error {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %q rule: %w", tag, err)
		}
	}
	return nil
}

// Validate returns nil or the field messages keyed by json field name.
func (val *Validator) Validate(i any) map[string]string {
	err := val.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[jsonName(fe.Field())] = fieldError(fe)
	}
	return out
}

// PasswordProblem describes the first policy rule password breaks, or "".
func PasswordProblem(password string) string {
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !lower:
		return "Password must contain at least one lowercase letter."
	case !upper:
		return "Password must contain at least one uppercase letter."
	case !digit:
		return "Password must contain at least one digit."
	case len(password) < minPasswordLength:
		return fmt.Sprintf("Password must be at least %d characters long.", minPasswordLength)
	}
	return ""
}

func fieldError(fe validator.FieldError) string {
	field := jsonName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Please provide a valid email address."
	case "eqfield":
		return "The passwords entered do not match."
	case "password":
		return PasswordProblem(fmt.Sprint(fe.Value()))
	case "e164|numeric":
		return field + " must be a phone number"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
