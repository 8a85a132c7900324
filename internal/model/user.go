package model

import "time"

type Role string

const (
	RoleHelper Role = "helper"
	RoleElder  Role = "elder"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleHelper || r == RoleElder
}

// Opposite returns the role on the other side of a request.
func (r Role) Opposite() Role {
	if r == RoleHelper {
		return RoleElder
	}
	return RoleHelper
}

type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Username   string     `json:"username"`
	Role       Role       `json:"role"`
	Phone      string     `json:"phone"`
	Address    string     `json:"address"`
	Birth      *time.Time `json:"birth,omitempty"`
	Image      string     `json:"image,omitempty"`
	Reputation float64    `json:"reputation"`
	Points     int        `json:"points"`
	Level      int        `json:"level"`
	JoinedAt   time.Time  `json:"joinedIn"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Party returns the contact snapshot copied into a request slot.
func (u *User) Party() Party {
	return Party{
		UserID:   u.ID,
		Username: u.Username,
		Address:  u.Address,
		Phone:    u.Phone,
	}
}

// NewUser carries the profile fields supplied at registration.
type NewUser struct {
	ID       string
	Email    string
	Username string
	Role     Role
	Phone    string
	Address  string
	Birth    *time.Time
	Image    string
}
