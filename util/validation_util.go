// util/validation_util.go

package util

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	echo_errors "github.com/dev-mohitbeniwal/echo/accessproxy/errors"
	"github.com/dev-mohitbeniwal/echo/accessproxy/model"
)

type ValidationUtil struct {
	validate *validator.Validate
}

func NewValidationUtil() *ValidationUtil {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Role is an int enum, so "required" would reject RoleAdmin (zero value).
	if err := v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		role, ok := fl.Field().Interface().(model.Role)
		return ok && role.IsValid()
	}); err != nil {
		panic(fmt.Sprintf("register role validation: %v", err))
	}
	return &ValidationUtil{validate: v}
}

func (v *ValidationUtil) ValidateActor(actor model.Actor) error {
	if err := v.validate.Struct(actor); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", echo_errors.ErrInvalidActorData, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", echo_errors.ErrInvalidActorData, err)
	}
	return nil
}
