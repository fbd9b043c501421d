// Package session is the durable client-side session vault.
//
// It persists exactly one opaque session reference — written on login
// success, deleted on logout and on confirmed-invalid recovery — plus an
// ordered, append-only event log scoped to that session. The reference is
// opaque to this core: its validity is decided by the external auth
// service, never inspected locally.
package session
