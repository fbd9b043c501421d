package auth

// Phase identifies the active arm of the authentication state union.
// Exactly one phase is active at a time.
type Phase string

const (
	// PhaseInitial is the state before the boundary mounts.
	PhaseInitial Phase = "initial"

	// PhaseChecking covers session recovery and in-flight login/refresh.
	PhaseChecking Phase = "checking"

	// PhaseAuthenticated means a User is present and current.
	PhaseAuthenticated Phase = "authenticated"

	// PhaseUnauthenticated means no session exists. This is not an error:
	// ordinary expiry and logout both land here.
	PhaseUnauthenticated Phase = "unauthenticated"

	// PhaseError means the last attempt failed with a classified Error.
	PhaseError Phase = "error"
)

// State is a snapshot of the authentication state machine. Transitions
// replace the whole snapshot atomically; a late-arriving stale response
// can never partially mutate a newer state.
type State struct {
	Phase Phase

	// User is set exactly when Phase is PhaseAuthenticated.
	User *User

	// Err is set exactly when Phase is PhaseError.
	Err *Error

	// IsSubmitting guards the at-most-one-in-flight rule for login and
	// refresh.
	IsSubmitting bool

	// AttemptCount counts consecutive failed logins. Reset on success or
	// explicit form reset. Exposed so the UI layer can apply escalating
	// cooldowns.
	AttemptCount int
}

// Authenticated reports whether the snapshot carries a current user.
func (s State) Authenticated() bool {
	return s.Phase == PhaseAuthenticated && s.User != nil
}

// Resolved reports whether recovery has completed: protected content must
// not render while the state is still initial or checking.
func (s State) Resolved() bool {
	return s.Phase != PhaseInitial && s.Phase != PhaseChecking
}
