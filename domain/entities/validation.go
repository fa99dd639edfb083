package entities

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report YAML field names instead of Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("vlanname", validVLANName)
}

// validVLANName accepts names that render as a single CLI token: 1 to 32
// printable ASCII characters without spaces, help or bracket characters.
func validVLANName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || len(name) > MaxVLANNameLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c > '~' || c == '?' || c == '[' || c == ']' {
			return false
		}
	}
	return true
}

// Validator returns the shared validator so callers validate with the same tag names.
func Validator() *validator.Validate {
	return validate
}

// Validate checks the descriptor before any device traffic happens.
func (d DesiredState) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidDesiredState, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, FieldMessage(fe))
	}
	return fmt.Errorf("%w: vlan %d: %s", ErrInvalidDesiredState, d.VLANID, strings.Join(msgs, "; "))
}

// FieldMessage renders a validator failure in configuration terms.
func FieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		if fe.Field() == "vlan_id" {
			return fmt.Sprintf("vlan_id %v must be between %d and %d", fe.Value(), MinVLANID, MaxVLANID)
		}
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s %v must be one of: %s", fe.Field(), fe.Value(), fe.Param())
	case "vlanname":
		return fmt.Sprintf("%s %q must be 1 to %d printable characters without spaces, '?', '[' or ']'",
			fe.Field(), fe.Value(), MaxVLANNameLength)
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
