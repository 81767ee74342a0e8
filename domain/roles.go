package domain

import "fmt"

// Role identifies which part of the platform a user belongs to.
type Role string

const (
	RoleFarmer           Role = "farmer"
	RoleAdopter          Role = "adopter"
	RoleExpert           Role = "expert"
	RoleAdmin            Role = "admin"
	RoleInvestor         Role = "investor"
	RoleBuyer            Role = "buyer"
	RoleLogisticsPartner Role = "logistics_partner"
)

// Roles lists every role the backend accepts, in registration-form order.
var Roles = []Role{
	RoleFarmer,
	RoleAdopter,
	RoleExpert,
	RoleAdmin,
	RoleInvestor,
	RoleBuyer,
	RoleLogisticsPartner,
}

// ParseRole converts a raw string into a Role, rejecting anything outside
// the fixed set.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsValid reports whether the role is one of the fixed platform roles.
func (r Role) IsValid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string { return string(r) }
