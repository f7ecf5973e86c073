package models

import "time"

// UserRole represents the role a user holds in the admin panel.
type UserRole string

const (
	// RoleAll is the sentinel meaning "no role filter".
	RoleAll     UserRole = "All"
	RoleAdmin   UserRole = "Admin"
	RoleManager UserRole = "Manager"
	RoleUser    UserRole = "User"
)

// Roles lists the selectable roles in display order, without the sentinel.
var Roles = []UserRole{RoleAdmin, RoleManager, RoleUser}

// Known reports whether the role is one of the fixed roles.
func (r UserRole) Known() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a row of the users table.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"fullName"`
	Role      UserRole  `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// UserPage is one filtered window of users plus the number of users matching the filter.
type UserPage struct {
	Items      []User `json:"items"`
	TotalCount int    `json:"totalCount"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Offset     int `json:"offset"`
	Limit      int `json:"limit"`
	TotalCount int `json:"total_count"`
}
