package auth

import (
	"errors"
	"time"
)

// Role represents an authorisation tier. Roles are totally ordered:
// a higher role satisfies any requirement a lower role satisfies.
type Role string

const (
	// RoleUser is a standard account with access to the chat surfaces.
	RoleUser Role = "user"

	// RoleAdmin manages users, plugins, and tenant settings.
	RoleAdmin Role = "admin"

	// RoleSuperAdmin has full platform control including system settings.
	RoleSuperAdmin Role = "super_admin"
)

// roleRanks orders roles for "at least as privileged as" comparisons.
// Unknown roles rank 0 and satisfy nothing.
var roleRanks = map[Role]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// Rank returns the role's position in the privilege order.
func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether r is at least as privileged as other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank()
}

// HighestRank returns the highest rank present in a role set.
// Ranks are compared, never summed.
func HighestRank(roles []Role) int {
	highest := 0
	for _, r := range roles {
		if rank := r.Rank(); rank > highest {
			highest = rank
		}
	}
	return highest
}

// User represents an authenticated account as issued by the auth service.
// It is immutable for the lifetime of a session and replaced wholesale on
// refresh.
type User struct {
	ID               string         `json:"user_id"`
	Email            string         `json:"email"`
	Roles            []Role         `json:"roles"`
	TenantID         string         `json:"tenant_id"`
	TwoFactorEnabled bool           `json:"two_factor_enabled"`
	Preferences      map[string]any `json:"preferences,omitempty"`
}

// HasRoleAtLeast reports whether any of the user's roles satisfies the
// required role under the monotonic access rule.
func (u *User) HasRoleAtLeast(required Role) bool {
	return HighestRank(u.Roles) >= required.Rank()
}

// LoginCredentials is a transient credential set for a single submit
// attempt. Never persisted and never logged.
type LoginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// ErrorKind is the closed taxonomy of authentication failures.
type ErrorKind string

const (
	KindInvalidCredentials   ErrorKind = "invalid_credentials"
	KindNetworkError         ErrorKind = "network_error"
	KindRateLimit            ErrorKind = "rate_limit"
	KindSecurityBlock        ErrorKind = "security_block"
	KindVerificationRequired ErrorKind = "verification_required"
	KindAccountLocked        ErrorKind = "account_locked"
	KindAccountSuspended     ErrorKind = "account_suspended"
	KindTwoFactorRequired    ErrorKind = "two_factor_required"
	KindTwoFactorInvalid     ErrorKind = "two_factor_invalid"
	KindServerError          ErrorKind = "server_error"
	KindValidationError      ErrorKind = "validation_error"
	KindTimeoutError         ErrorKind = "timeout_error"
	KindUnknownError         ErrorKind = "unknown_error"
)

// Error is an immutable classified authentication failure. One Error is
// produced per failed attempt and superseded by the next attempt's
// outcome, never accumulated.
type Error struct {
	Kind      ErrorKind
	Message   string
	Timestamp time.Time

	// RequestID correlates the failure with logs. Generated locally even
	// when the backend supplies none.
	RequestID string

	// RetryAfter is an advisory wait carried by rate_limit errors.
	// Zero when the error carries no hint. Calling layers honour it by
	// disabling resubmission; nothing here auto-retries.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Sentinel errors for controller guard conditions. These are local
// rejections, not classified upstream failures.
var (
	// ErrLoginInFlight is returned when a login or refresh is invoked
	// while another is pending. The second call is rejected, not queued.
	ErrLoginInFlight = errors.New("a login or refresh is already in flight")

	// ErrNotAwaitingSecondFactor is returned when a TOTP submit arrives
	// without a preceding two_factor_required challenge.
	ErrNotAwaitingSecondFactor = errors.New("no second-factor challenge is pending")

	// ErrNotAuthenticated is returned when refresh is invoked without an
	// authenticated session.
	ErrNotAuthenticated = errors.New("not authenticated")
)
