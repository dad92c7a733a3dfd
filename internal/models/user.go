package models

// UserRole represents the available roles for access control.
type UserRole string

const (
	RoleSuperAdmin UserRole = "superadmin"
	RoleAdmin      UserRole = "admin"
)

// User is an authenticated identity. Admin usernames double as counselor names.
type User struct {
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// IsSuperAdmin reports whether the user holds the superadmin role.
func (u User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}
