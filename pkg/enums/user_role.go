package enums

import "fmt"

// UserRole represents a platform-level permissions role.
type UserRole string

const (
	UserRoleAdmin        UserRole = "admin"
	UserRoleDoctor       UserRole = "doctor"
	UserRoleReceptionist UserRole = "receptionist"
	UserRolePatient      UserRole = "patient"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleDoctor,
	UserRoleReceptionist,
	UserRolePatient,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role belongs to hospital staff.
func (r UserRole) IsStaff() bool {
	return r == UserRoleAdmin || r == UserRoleDoctor || r == UserRoleReceptionist
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
