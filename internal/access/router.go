package access

import (
	"strings"

	"github.com/halcyonhq/authshell/internal/auth"
	"github.com/halcyonhq/authshell/internal/infrastructure/logging"
)

// Well-known paths.
const (
	// PathDefaultLanding is where every authenticated user can go.
	PathDefaultLanding = "/chat"

	// PathAdminRoot is the admin dashboard root.
	PathAdminRoot = "/admin"

	// PathSuperAdminRoot is the super-admin subtree root, nested under the
	// admin subtree.
	PathSuperAdminRoot = "/admin/super-admin"

	// PathUnauthorized is where permission-checked navigation lands when
	// the permission is absent.
	PathUnauthorized = "/unauthorized"

	// PathLogin is the login surface.
	PathLogin = "/login"
)

// AuthExemptPaths are reachable without authentication. The protected
// boundary consults this list before redirecting to the login surface so
// a redirect can never loop.
var AuthExemptPaths = []string{
	PathLogin,
	"/signup",
	"/reset-password",
	"/verify-email",
}

// IsAuthExempt reports whether the path is on the auth-exempt allow-list.
func IsAuthExempt(path string) bool {
	for _, exempt := range AuthExemptPaths {
		if path == exempt || strings.HasPrefix(path, exempt+"/") {
			return true
		}
	}
	return false
}

// inSubtree reports whether path is root itself or nested beneath it.
func inSubtree(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// DashboardPath returns the dashboard a role set lands on after login.
// The highest applicable rank wins; ranks are never summed.
func DashboardPath(roles []auth.Role) string {
	switch {
	case auth.HighestRank(roles) >= auth.RoleSuperAdmin.Rank():
		return PathSuperAdminRoot
	case auth.HighestRank(roles) >= auth.RoleAdmin.Rank():
		return PathAdminRoot
	default:
		return PathDefaultLanding
	}
}

// ResolveFallback rewrites a requested path that is outside the role set's
// authorised subtree to the nearest reachable dashboard. Paths outside any
// protected subtree pass through unchanged.
//
// The rewrite is idempotent: resolving an already-rewritten path yields
// the same path.
func ResolveFallback(path string, roles []auth.Role) string {
	rank := auth.HighestRank(roles)

	if inSubtree(path, PathSuperAdminRoot) {
		switch {
		case rank >= auth.RoleSuperAdmin.Rank():
			return path
		case rank >= auth.RoleAdmin.Rank():
			return PathAdminRoot
		default:
			return PathDefaultLanding
		}
	}

	if inSubtree(path, PathAdminRoot) {
		if rank >= auth.RoleAdmin.Rank() {
			return path
		}
		return PathDefaultLanding
	}

	return path
}

// IsPathAccessible reports whether the role set may reach the path.
// Pure projection of the subtree/rank rule — no side effects, no
// navigation.
func IsPathAccessible(path string, roles []auth.Role) bool {
	return ResolveFallback(path, roles) == path
}

// Navigator performs the actual navigation; the rendering layer supplies
// the implementation.
type Navigator interface {
	Navigate(path string)
}

// NavigateWithPermission routes to path after a permission check. A
// missing permission redirects to the unauthorized path and emits one
// diagnostic record; otherwise the fallback-aware rewrite applies.
func NavigateWithPermission(nav Navigator, logger *logging.Logger, path string, perm Permission, roles []auth.Role) {
	if perm != "" && !HasPermission(roles, perm) {
		logger.Warn("navigation denied",
			"path", path,
			"permission", perm,
		)
		nav.Navigate(PathUnauthorized)
		return
	}
	nav.Navigate(ResolveFallback(path, roles))
}
