// Package validation checks and normalizes request payloads before they reach
// the identity service. Every function is pure and reports all violated fields.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xhashpass/authworker/internal/model"
)

// Name length limits, counted in characters.
const (
	MinFullNameLength = 2
	MaxFullNameLength = 100
)

// FieldError describes a single violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is returned when one or more fields fail validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RegistrationInput is the payload for self-service registration and admin user creation.
type RegistrationInput struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	UserType string `json:"user_type" validate:"required,self_service_user_type"`
}

// newUserInput mirrors RegistrationInput but admits every user type.
type newUserInput struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	UserType string `json:"user_type" validate:"required,user_type"`
}

// LoginInput is the payload for credential login.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateInput carries the mutable user fields. Nil means unchanged.
type UpdateInput struct {
	FullName *string `json:"full_name"`
	UserType *string `json:"user_type"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("user_type", func(fl validator.FieldLevel) bool {
		return model.UserType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("self_service_user_type", func(fl validator.FieldLevel) bool {
		t := model.UserType(fl.Field().String())
		return t.IsValid() && t != model.UserTypeAdmin
	})
	_ = v.RegisterValidation("subscription_type", func(fl validator.FieldLevel) bool {
		return model.SubscriptionType(fl.Field().String()).IsValid()
	})

	return v
}

// ValidateRegistration normalizes and checks a self-service registration.
// Admin cannot be chosen here.
func ValidateRegistration(in RegistrationInput) (RegistrationInput, error) {
	in = normalizeRegistration(in)
	if err := validate.Struct(in); err != nil {
		return in, toError(err)
	}
	return in, nil
}

// ValidateNewUser checks a user created through the worker API. Any user type is allowed.
func ValidateNewUser(in RegistrationInput) (RegistrationInput, error) {
	in = normalizeRegistration(in)
	if err := validate.Struct(newUserInput(in)); err != nil {
		return in, toError(err)
	}
	return in, nil
}

// ValidateLogin normalizes the email and requires both fields.
func ValidateLogin(in LoginInput) (LoginInput, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return in, toError(err)
	}
	return in, nil
}

// ValidateUserUpdate checks that at least one field is present and every present field is valid.
func ValidateUserUpdate(in UpdateInput) (UpdateInput, error) {
	if in.FullName == nil && in.UserType == nil {
		return in, &Error{Fields: []FieldError{{
			Field:   "body",
			Rule:    "required_one",
			Message: "at least one of full_name, user_type must be provided",
		}}}
	}

	var fields []FieldError
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		in.FullName = &name
		fields = appendVar(fields, "full_name", name, "required,min=2,max=100")
	}
	if in.UserType != nil {
		ut := strings.TrimSpace(*in.UserType)
		in.UserType = &ut
		fields = appendVar(fields, "user_type", ut, "required,user_type")
	}

	if len(fields) > 0 {
		return in, &Error{Fields: fields}
	}
	return in, nil
}

// ValidateSubscription checks a subscription tier name.
func ValidateSubscription(tier string) (model.SubscriptionType, error) {
	tier = strings.TrimSpace(tier)
	if fields := appendVar(nil, "subscription_type", tier, "required,subscription_type"); len(fields) > 0 {
		return "", &Error{Fields: fields}
	}
	return model.SubscriptionType(tier), nil
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeRegistration(in RegistrationInput) RegistrationInput {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = NormalizeEmail(in.Email)
	in.UserType = strings.TrimSpace(in.UserType)
	return in
}

func appendVar(fields []FieldError, name string, value any, tag string) []FieldError {
	err := validate.Var(value, tag)
	if err == nil {
		return fields
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return append(fields, FieldError{Field: name, Rule: "invalid", Message: name + " is invalid"})
	}
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: name, Rule: fe.Tag(), Message: message(name, fe)})
	}
	return fields
}

func toError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe.Field(), fe),
		})
	}
	return out
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "user_type":
		return field + " must be one of " + joinTypes(model.UserTypes)
	case "self_service_user_type":
		return field + " must be one of " + joinTypes(model.SelfServiceUserTypes)
	case "subscription_type":
		return field + " must be one of " + joinTypes(model.SubscriptionTypes)
	default:
		return field + " is invalid"
	}
}

func joinTypes[T ~string](values []T) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return strings.Join(out, ", ")
}
