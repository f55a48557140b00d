package model

// Actor is the identity a proxy acts on behalf of.
type Actor struct {
	Name string `json:"name" validate:"required"`
	Role Role   `json:"role" validate:"role"`
}

func (a Actor) CanRequest() bool {
	return a.Role.IsEntitled()
}
