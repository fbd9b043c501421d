// Package boundary gates protected content on the auth state machine.
//
// A Boundary owns the mount-time session recovery handoff and turns the
// controller's phase into a render Decision: loading while unresolved,
// the children once authenticated and authorized, a login surface or a
// single redirect otherwise. Child rendering runs under a supervisor
// that distinguishes session-indicative failures (cleared and sent back
// to login) from ordinary ones (held as a retryable caught state).
package boundary
