// model/access.go
package model

import (
	"fmt"
	"strings"

	echo_errors "github.com/dev-mohitbeniwal/echo/accessproxy/errors"
)

// Role is the closed set of actor roles.
type Role int

const (
	RoleAdmin Role = iota
	RoleUser
	RoleGuest
)

var roleNames = map[Role]string{
	RoleAdmin: "Admin",
	RoleUser:  "User",
	RoleGuest: "Guest",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) IsValid() bool {
	_, ok := roleNames[r]
	return ok
}

// IsEntitled reports whether the role may issue requests through the proxy.
// Admin and User are treated identically.
func (r Role) IsEntitled() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// ParseRole accepts a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	for role, name := range roleNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", echo_errors.ErrInvalidRole, s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", echo_errors.ErrInvalidRole, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}
