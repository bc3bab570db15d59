package tgauth

// roleRank orders roles for IsAtLeast comparisons.
func roleRank(r UserRole) int {
	switch r {
	case RoleUser:
		return 1
	case RoleBusinessOwner:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	return roleRank(r) > 0
}

// RoleIsAtLeast checks if role meets the minimum required role
func RoleIsAtLeast(r, min UserRole) bool {
	return roleRank(r) >= roleRank(min) && roleRank(r) > 0
}

// CanManageListings reports whether the role can create or edit business
// listings.
func CanManageListings(r UserRole) bool {
	switch r {
	case RoleBusinessOwner, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanModerate reports whether the role can moderate other users' content.
func CanModerate(r UserRole) bool {
	return r == RoleAdmin
}

// ParseRole returns the role if valid, along with a validity flag.
func ParseRole(s string) (UserRole, bool) {
	r := UserRole(s)
	return r, IsValidRole(r)
}
