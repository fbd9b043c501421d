// Package recovery re-establishes an authenticated state from persisted
// session state at process start.
//
// Recovery is distinct from interactive login: it must complete before any
// protected surface renders, it resolves silently when no usable session
// exists (including backend-rejected references — no error flash on
// ordinary expiry), and it surfaces a distinct, retryable error only when
// the auth service cannot be reached at all.
package recovery
