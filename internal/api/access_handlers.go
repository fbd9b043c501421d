package api

import (
	"net/http"

	"github.com/halcyonhq/authshell/internal/access"
)

// accessCheckResponse is the payload of GET /access/check.
type accessCheckResponse struct {
	Path       string `json:"path"`
	Accessible bool   `json:"accessible"`
	Resolved   string `json:"resolved"`
	Dashboard  string `json:"dashboard"`
	AuthExempt bool   `json:"auth_exempt"`
}

// handleAccessCheck resolves a requested path against the current user's
// roles. Unauthenticated callers can still probe auth-exempt paths.
func (s *Server) handleAccessCheck(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeBadRequest(w, "path query parameter is required")
		return
	}

	state := s.ctrl.State()
	if !state.Authenticated() {
		if access.IsAuthExempt(path) {
			writeJSON(w, http.StatusOK, accessCheckResponse{
				Path:       path,
				Accessible: true,
				Resolved:   path,
				AuthExempt: true,
			})
			return
		}
		writeUnauthorized(w, "not authenticated")
		return
	}

	roles := state.User.Roles
	writeJSON(w, http.StatusOK, accessCheckResponse{
		Path:       path,
		Accessible: access.IsPathAccessible(path, roles),
		Resolved:   access.ResolveFallback(path, roles),
		Dashboard:  access.DashboardPath(roles),
		AuthExempt: access.IsAuthExempt(path),
	})
}

// handleBreadcrumbs builds a breadcrumb trail for a path.
func (s *Server) handleBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeBadRequest(w, "path query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   path,
		"crumbs": access.Breadcrumbs(path),
	})
}

// handlePermissions lists the permission union for the current user.
func (s *Server) handlePermissions(w http.ResponseWriter, _ *http.Request) {
	state := s.ctrl.State()
	if !state.Authenticated() {
		writeUnauthorized(w, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"roles":       state.User.Roles,
		"permissions": access.PermissionsFor(state.User.Roles),
	})
}
