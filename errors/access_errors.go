// errors/access_errors.go
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAccessDenied     = errors.New("access denied")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidActorData = errors.New("invalid actor data")
)

// AccessDeniedError names the actor and role that were refused.
type AccessDeniedError struct {
	Actor string
	Role  string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for user %s with role %s", e.Actor, e.Role)
}

func (e *AccessDeniedError) Unwrap() error {
	return ErrAccessDenied
}
