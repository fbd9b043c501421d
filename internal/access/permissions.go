package access

import "github.com/halcyonhq/authshell/internal/auth"

// Permission represents a named capability gating a surface or action.
type Permission string

// Permission constants.
const (
	PermChatAccess    Permission = "chat:access"
	PermMemoryRead    Permission = "memory:read"
	PermPluginUse     Permission = "plugin:use"
	PermAdminAccess   Permission = "admin:access"
	PermUserManage    Permission = "user:manage"
	PermPluginManage  Permission = "plugin:manage"
	PermTenantManage  Permission = "tenant:manage"
	PermSystemManage  Permission = "system:manage"
	PermAuditRead     Permission = "audit:read"
	PermSuperAdminAll Permission = "super_admin:all"
)

// rolePermissions maps each role to its granted permissions. This table is
// the single source of truth for the authorisation model; higher roles
// repeat lower roles' grants explicitly rather than relying on runtime
// inheritance.
var rolePermissions = map[auth.Role][]Permission{
	auth.RoleUser: {
		PermChatAccess,
		PermMemoryRead,
		PermPluginUse,
	},
	auth.RoleAdmin: {
		PermChatAccess,
		PermMemoryRead,
		PermPluginUse,
		PermAdminAccess,
		PermUserManage,
		PermPluginManage,
		PermTenantManage,
		PermAuditRead,
	},
	auth.RoleSuperAdmin: {
		PermChatAccess,
		PermMemoryRead,
		PermPluginUse,
		PermAdminAccess,
		PermUserManage,
		PermPluginManage,
		PermTenantManage,
		PermAuditRead,
		PermSystemManage,
		PermSuperAdminAll,
	},
}

// HasPermission reports whether any role in the set grants the permission.
func HasPermission(roles []auth.Role, perm Permission) bool {
	for _, role := range roles {
		for _, p := range rolePermissions[role] {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// PermissionsFor returns the union of permissions granted to a role set.
func PermissionsFor(roles []auth.Role) []Permission {
	seen := make(map[Permission]bool)
	var result []Permission
	for _, role := range roles {
		for _, p := range rolePermissions[role] {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}
	return result
}
