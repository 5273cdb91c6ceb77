package auth

// Permission is a named capability on the admin API.
type Permission string

// Permission constants.
const (
	PermSessionRead     Permission = "session:read"
	PermSessionManage   Permission = "session:manage"
	PermIdentityRead    Permission = "identity:read"
	PermIdentityManage  Permission = "identity:manage"
	PermEventsSubscribe Permission = "events:subscribe"
	PermAuditRead       Permission = "audit:read"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermSessionRead,
		PermIdentityRead,
		PermEventsSubscribe,
	},
	RoleAdmin: {
		PermSessionRead,
		PermSessionManage,
		PermIdentityRead,
		PermIdentityManage,
		PermEventsSubscribe,
		PermAuditRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
