// Package access computes where a role set may navigate.
//
// The model is two nested protected subtrees — /admin and
// /admin/super-admin — over a totally ordered role rank. ResolveFallback
// rewrites unreachable requests to the nearest reachable dashboard and is
// idempotent; IsPathAccessible is its pure boolean projection. Everything
// here is side-effect free except NavigateWithPermission, which delegates
// the actual move to a caller-supplied Navigator.
package access
