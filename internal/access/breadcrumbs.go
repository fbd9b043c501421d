package access

import "strings"

// Crumb is one entry in a breadcrumb trail.
type Crumb struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Active bool   `json:"active"`
}

// segmentLabels maps known path segments to human labels. Unmapped
// segments fall back to title-casing.
var segmentLabels = map[string]string{
	"chat":        "Chat",
	"admin":       "Admin",
	"super-admin": "Super Admin",
	"settings":    "Settings",
	"profile":     "Profile",
	"memory":      "Memory",
	"plugins":     "Plugins",
	"users":       "Users",
	"tenants":     "Tenants",
	"system":      "System",
	"audit":       "Audit Log",
	"analytics":   "Analytics",
}

// Breadcrumbs builds a trail for a path. The last crumb is marked active.
// Arbitrary unmapped paths are handled via the title-case fallback; the
// function never panics.
func Breadcrumbs(path string) []Crumb {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []Crumb{{Label: "Home", Path: "/", Active: true}}
	}

	segments := strings.Split(trimmed, "/")
	crumbs := make([]Crumb, 0, len(segments))

	current := ""
	for i, seg := range segments {
		current += "/" + seg
		crumbs = append(crumbs, Crumb{
			Label:  labelFor(seg),
			Path:   current,
			Active: i == len(segments)-1,
		})
	}
	return crumbs
}

// labelFor resolves a segment to its display label.
func labelFor(segment string) string {
	if label, ok := segmentLabels[segment]; ok {
		return label
	}
	return titleCase(segment)
}

// titleCase turns "api-keys" into "Api Keys".
func titleCase(segment string) string {
	words := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
