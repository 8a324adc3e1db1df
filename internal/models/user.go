package models

import "time"

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleBuyer    Role = "BUYER"
	RoleVendor   Role = "VENDOR"
	RoleReviewer Role = "REVIEWER"
)

func ValidRole(t Role) bool {
	switch t {
	case RoleAdmin, RoleBuyer, RoleVendor, RoleReviewer:
		return true
	default:
		return false
	}
}

type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserInactive  UserStatus = "INACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
)

func ValidUserStatus(t UserStatus) bool {
	switch t {
	case UserActive, UserInactive, UserSuspended:
		return true
	default:
		return false
	}
}

type User struct {
	Id             string     `json:"id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Name           string     `json:"name"`
	Role           Role       `json:"role"`
	Status         UserStatus `json:"status"`
	OrganizationId string     `json:"organizationId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (u User) Summary() UserSummary {
	return UserSummary{Id: u.Id, Name: u.Name, Email: u.Email, OrganizationId: u.OrganizationId}
}

type UserSummary struct {
	Id             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	OrganizationId string `json:"organizationId,omitempty"`
}

// Actor is the authenticated identity every core operation runs on behalf of.
// IP is the client address recorded in audit entries.
type Actor struct {
	Id             string `json:"id"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	OrganizationId string `json:"organizationId"`
	IP             string `json:"-"`
}

func (u User) Actor() Actor {
	return Actor{Id: u.Id, Email: u.Email, Role: u.Role, OrganizationId: u.OrganizationId}
}

type UserFilter struct {
	Role   Role
	Status UserStatus
	Limit  int
	Offset int
}

// UserUpdate carries the optional fields of a profile change. Nil means unchanged.
type UserUpdate struct {
	Name         *string
	Email        *string
	Password     *string
	PasswordHash *string
	Role         *Role
	Status       *UserStatus
}

type UserPage struct {
	Users      []User `json:"users"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"totalPages"`
}
