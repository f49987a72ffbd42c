package iam

import "fmt"

// Actor identifies who is making a request. Actors are created at
// session time and are immutable for the lifetime of the request.
type Actor struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
}

// NewActor builds an actor, defaulting the display name to the ID.
func NewActor(id string, role Role, displayName string) Actor {
	if displayName == "" {
		displayName = id
	}
	return Actor{ID: id, Role: role, DisplayName: displayName}
}

func (a Actor) String() string {
	return fmt.Sprintf("%s (%s)", a.ID, a.Role)
}
