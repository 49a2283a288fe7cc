package model

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleProvider Role = "provider"
	RoleClient   Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProvider, RoleClient:
		return true
	}
	return false
}

// Profile mirrors the identity provider's profile row. This service
// reads and updates display fields only; account provisioning happens
// upstream.
type Profile struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Role      Role
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}
