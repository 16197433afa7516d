package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/api-yamdb/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Messages for the custom tags, reused by callers that check the same rules by hand.
const (
	MsgRequired   = "This field is required."
	MsgUsername   = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	MsgDigitsOnly = "The code must contain only digits."
)

// RestrictedUsernames cannot be registered because they collide with routes.
var RestrictedUsernames = []string{"me"}

var (
	usernameRe = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)
	digitsRe   = regexp.MustCompile(`^[0-9]+$`)
)

// v is the package-level singleton validator. Custom tags are registered in
// init() before the first call to Struct.
var v = validator.New()

func init() {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	mustRegister("not_restricted", func(fl validator.FieldLevel) bool {
		return !IsRestricted(fl.Field().String())
	})
	mustRegister("numeric_code", func(fl validator.FieldLevel) bool {
		return digitsRe.MatchString(fl.Field().String())
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// IsRestricted reports whether username is reserved, ignoring case.
func IsRestricted(username string) bool {
	for _, r := range RestrictedUsernames {
		if strings.EqualFold(username, r) {
			return true
		}
	}
	return false
}

// Struct validates the given struct using its validate tags.
// Failures come back as domain.ValidationErrors keyed by JSON field name.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := domain.ValidationErrors{}
	for _, fe := range ve {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "username":
		return MsgUsername
	case "not_restricted":
		return fmt.Sprintf("Username '%v' is not allowed.", fe.Value())
	case "numeric_code":
		return MsgDigitsOnly
	case "oneof":
		return fmt.Sprintf("Value must be one of: %s.", fe.Param())
	default:
		return "Invalid value."
	}
}
