package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const passwordSpecialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*[a-zA-Z0-9]$`)

// CredentialValidator applies the registration policy. Login is not
// subject to it so that a policy change never locks existing users out.
type CredentialValidator struct {
	validate *validator.Validate
}

type registration struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,max=255,email"`
	Password string `json:"password" validate:"required,min=8,max=128,password"`
}

func NewCredentialValidator() *CredentialValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})
	return &CredentialValidator{validate: v}
}

// ValidateRegistration returns ErrValidation with one message per failing
// field in its details.
func (cv *CredentialValidator) ValidateRegistration(username, email, password string) error {
	err := cv.validate.Struct(registration{Username: username, Email: email, Password: password})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ErrValidation.WithCause(err)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, seen := details[fe.Field()]; !seen {
			details[fe.Field()] = fieldMessage(fe)
		}
	}
	return ErrValidation.WithDetails(details)
}

// ValidateLogin only checks presence.
func (cv *CredentialValidator) ValidateLogin(username, password string) error {
	details := map[string]any{}
	if username == "" {
		details["username"] = "is required"
	}
	if password == "" {
		details["password"] = "is required"
	}
	if len(details) > 0 {
		return ErrValidation.WithDetails(details)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "email":
		return "must be a valid email address"
	case "username":
		return "may contain only letters, digits, underscore and hyphen, and must start and end with a letter or digit"
	case "password":
		return "must contain an uppercase letter, a lowercase letter, a digit and a special character"
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

func isStrongPassword(value string) bool {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSpecialChars, r):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSpecial
}

// normalizeUsername only trims; usernames stay case-sensitive.
func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
