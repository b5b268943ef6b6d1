package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleUser       = "user"
	RoleHost       = "host"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
	RoleSupport    = "support" // hidden role
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleSupport }

// IsStaff reports whether role may act on other users' wallets and payouts.
func IsStaff(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}

func IsKnownRole(role string) bool {
	switch role {
	case RoleUser, RoleHost, RoleAdmin, RoleSuperAdmin, RoleSupport:
		return true
	default:
		return false
	}
}
