package entities

import (
	"time"
)

// Role is the kind of actor operating the system
type Role string

const (
	RoleStaff  Role = "STAFF"
	RoleDriver Role = "DRIVER"
	RoleSystem Role = "SYSTEM"
)

// Valid reports whether r is a role a principal may hold
func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleDriver
}

// User is a staff member or driver account. Drivers are linked to a resource through
// resources.driver_user_id, established when the account is provisioned.
type User struct {
	ID        string    `json:"id" db:"id"`
	Role      Role      `json:"role" db:"role"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Principal is the authenticated caller threaded into every command.
// ResourceID is resolved for drivers only.
type Principal struct {
	UserID     string `json:"user_id"`
	Role       Role   `json:"role"`
	ResourceID string `json:"resource_id,omitempty"`
}

// IsStaff reports whether the principal acts for the nursing station
func (p Principal) IsStaff() bool {
	return p.Role == RoleStaff
}

// IsDriver reports whether the principal is a driver bound to a resource
func (p Principal) IsDriver() bool {
	return p.Role == RoleDriver && p.ResourceID != ""
}
