// Package auth owns the authentication core: the state machine, the
// failure taxonomy, and credential validation.
//
// # State machine
//
// AuthenticationState is a five-phase union (initial, checking,
// authenticated, unauthenticated, error) plus submit/attempt bookkeeping.
// The Controller is the only writer; every transition replaces the whole
// snapshot and is broadcast to subscribers. At most one login or refresh
// is in flight at a time — reentrant calls are rejected, never queued.
//
// # Error taxonomy
//
// Raw failures from the auth service are normalised exactly once, at the
// controller boundary, by Classify. Downstream code switches on the
// closed ErrorKind set and the data-driven Classification table; nothing
// inspects raw error shapes again.
//
// # Validation
//
// Field validation is advisory while typing (debounced per field) and
// authoritative before submit: ValidateForm failing means no network call
// is made. Validation errors are surfaced as field-level strings and never
// leave this package as Go errors.
package auth
