// Package validation checks user input before it is sent to the API. A
// failed check yields *Error and the request never reaches the network.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	otpPattern   = regexp.MustCompile(`^[0-9]{6}$`)
)

var disposableDomains = map[string]struct{}{
	"10minutemail.com":  {},
	"guerrillamail.com": {},
	"mailinator.com":    {},
	"tempmail.org":      {},
	"throwaway.email":   {},
	"temp-mail.org":     {},
	"getnada.com":       {},
	"maildrop.cc":       {},
	"yopmail.com":       {},
}

const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

// FieldError describes one rejected field, keyed by its JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the client-side ValidationError.
type Error struct {
	Fields []FieldError `json:"fields"`
}

func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return strings.Join(parts, "; ")
}

// Field returns the message recorded for field, if any.
func (e *Error) Field(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message, true
		}
	}
	return "", false
}

func IsValidationError(err error) bool {
	var vErr *Error
	return errors.As(err, &vErr)
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("emailfmt", func(fl validator.FieldLevel) bool {
		return EmailFormatProblem(fl.Field().String()) == ""
	})
	_ = v.RegisterValidation("nodisposable", func(fl validator.FieldLevel) bool {
		return !IsDisposableEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return PasswordProblem(fl.Field().String()) == ""
	})
	_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return otpPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})

	return &Validator{validate: v}
}

// Struct validates s against its `validate` tags. It returns nil or *Error.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	out := &Error{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

// Field builds a single-field *Error.
func Field(name string, msg string) *Error {
	return &Error{Fields: []FieldError{{Field: name, Message: msg}}}
}

func message(fe validator.FieldError) string {
	value := fmt.Sprint(fe.Value())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "emailfmt":
		return EmailFormatProblem(value)
	case "nodisposable":
		return "Disposable email addresses are not allowed"
	case "strongpassword":
		return PasswordProblem(value)
	case "otp":
		return "Verification code must be 6 digits"
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// EmailFormatProblem returns "" for a well-formed address.
func EmailFormatProblem(email string) string {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return "Invalid email format"
	}
	return ""
}

func IsDisposableEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	_, found := disposableDomains[strings.ToLower(strings.TrimSpace(email[at+1:]))]
	return found
}

// PasswordProblem returns the first unmet password rule, or "".
func PasswordProblem(password string) string {
	if len(password) < 8 {
		return "Password must be at least 8 characters long"
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	switch {
	case !upper:
		return "Password must contain at least one uppercase letter"
	case !lower:
		return "Password must contain at least one lowercase letter"
	case !digit:
		return "Password must contain at least one number"
	case !special:
		return "Password must contain at least one special character"
	}
	return ""
}
