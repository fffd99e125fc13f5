package enums

import (
	"fmt"
	"strings"
)

// Role identifies what an authenticated caller may do.
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleWarehouseManager Role = "warehouse_manager"
	RoleLogistics        Role = "logistics"
	RolePurchasing       Role = "purchasing"
	RoleClient           Role = "client"
)

var validRoles = []Role{
	RoleAdmin,
	RoleWarehouseManager,
	RoleLogistics,
	RolePurchasing,
	RoleClient,
}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role belongs to warehouse personnel rather than a client.
func (r Role) IsStaff() bool {
	return r.IsValid() && r != RoleClient
}

// ParseRole converts raw input into a Role, ignoring case and surrounding spaces.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
