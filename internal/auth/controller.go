package auth

import (
	"context"
	"sync"
	"time"

	"github.com/halcyonhq/authshell/internal/infrastructure/logging"
)

// Auth event kinds recorded against the session vault.
const (
	EventLoginSucceeded      = "login_succeeded"
	EventLoginFailed         = "login_failed"
	EventTwoFactorChallenged = "two_factor_challenged"
	EventRefresh             = "refresh"
	EventLogout              = "logout"
)

// Service is the external authentication service as seen by the
// controller. Raised failures are opaque; the controller translates them
// via Classify before they touch application state.
type Service interface {
	// Login authenticates credentials and returns the user plus an opaque
	// session reference.
	Login(ctx context.Context, creds LoginCredentials) (*User, string, error)

	// CurrentUser resolves a session reference to its user ("who am I").
	CurrentUser(ctx context.Context, ref string) (*User, error)

	// Logout invalidates the session reference upstream.
	Logout(ctx context.Context, ref string) error
}

// ReferenceStore is the slice of the session vault the controller needs:
// persisting the opaque reference and appending auth events.
type ReferenceStore interface {
	SaveReference(ctx context.Context, ref string, attempts int) error
	ClearReference(ctx context.Context) error
	RecordEvent(ctx context.Context, kind, detail string) error
	TouchActivity(ctx context.Context) error
}

// subscriberBuffer sizes per-subscriber state channels. Slow consumers
// miss intermediate snapshots rather than blocking transitions.
const subscriberBuffer = 8

// Default escalating-cooldown tuning; see CooldownFor.
const (
	defaultCooldownBase = 5 * time.Second
	defaultCooldownMax  = 5 * time.Minute
	cooldownFreeAttempt = 3
)

// Controller owns the authentication state machine. All mutations funnel
// through it; every transition replaces the whole State snapshot and is
// broadcast to subscribers.
type Controller struct {
	mu      sync.Mutex
	svc     Service
	store   ReferenceStore
	logger  *logging.Logger
	state   State
	ref     string
	pending *LoginCredentials

	subscribers map[int]chan State
	nextSub     int

	cooldownBase time.Duration
	cooldownMax  time.Duration
}

// NewController creates a Controller in the initial phase.
func NewController(svc Service, store ReferenceStore, logger *logging.Logger) *Controller {
	return &Controller{
		svc:          svc,
		store:        store,
		logger:       logger.With("component", "auth"),
		state:        State{Phase: PhaseInitial},
		subscribers:  make(map[int]chan State),
		cooldownBase: defaultCooldownBase,
		cooldownMax:  defaultCooldownMax,
	}
}

// SetCooldown overrides the escalating-cooldown tuning.
func (c *Controller) SetCooldown(base, max time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldownBase = base
	c.cooldownMax = max
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a state-change listener. The returned cancel func
// must be called to release the subscription.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan State, subscriberBuffer)
	c.subscribers[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publishLocked broadcasts the current snapshot. Callers hold c.mu.
func (c *Controller) publishLocked() {
	for _, ch := range c.subscribers {
		select {
		case ch <- c.state:
		default:
			// Subscriber is behind; it will catch up on the next transition.
		}
	}
}

// BeginChecking moves initial → checking when the boundary mounts, before
// session recovery completes.
func (c *Controller) BeginChecking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseInitial {
		return
	}
	c.state = State{Phase: PhaseChecking}
	c.publishLocked()
}

// ResumeChecking moves error → checking so a failed recovery can be
// retried. No-op while a submit is in flight or outside the error phase.
func (c *Controller) ResumeChecking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseError || c.state.IsSubmitting {
		return
	}
	c.state = State{Phase: PhaseChecking, AttemptCount: c.state.AttemptCount}
	c.publishLocked()
}

// CompleteRecovery applies a successful session recovery.
func (c *Controller) CompleteRecovery(user *User, ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseChecking || c.state.IsSubmitting {
		return
	}
	c.ref = ref
	c.state = State{Phase: PhaseAuthenticated, User: user}
	c.publishLocked()
}

// CompleteRecoveryNoSession applies a recovery that found no valid
// session. This is the silent path: no error surfaces.
func (c *Controller) CompleteRecoveryNoSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseChecking || c.state.IsSubmitting {
		return
	}
	c.state = State{Phase: PhaseUnauthenticated}
	c.publishLocked()
}

// FailRecovery applies a recovery that could not complete (network
// unreachable). Distinct from no-session so the boundary can offer retry.
func (c *Controller) FailRecovery(e *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseChecking || c.state.IsSubmitting {
		return
	}
	c.state = State{Phase: PhaseError, Err: e}
	c.publishLocked()
}

// Login submits credentials to the auth service.
//
// Credentials must already have passed ValidateForm; the controller does
// not re-validate shape. Exactly one network call is made. On success the
// issued reference is persisted to the vault; on failure the returned
// error is always a classified *Error (or a local sentinel for guard
// rejections), never a raw transport error.
//
// A second Login or Refresh while one is in flight is rejected with
// ErrLoginInFlight before any network call.
func (c *Controller) Login(ctx context.Context, creds LoginCredentials) (*User, error) {
	c.mu.Lock()
	if c.state.IsSubmitting {
		c.mu.Unlock()
		return nil, ErrLoginInFlight
	}
	c.state = State{Phase: PhaseChecking, IsSubmitting: true, AttemptCount: c.state.AttemptCount}
	c.publishLocked()
	c.mu.Unlock()

	user, ref, err := c.svc.Login(ctx, creds)

	c.mu.Lock()
	if err != nil {
		authErr := Classify(err)
		attempts := c.state.AttemptCount + 1

		if authErr.Kind == KindTwoFactorRequired || authErr.Kind == KindTwoFactorInvalid {
			// Preserve the verified credential pair so the second submit
			// only needs to add the code.
			c.pending = &LoginCredentials{Email: creds.Email, Password: creds.Password}
		}

		c.state = State{Phase: PhaseError, Err: authErr, AttemptCount: attempts}
		c.publishLocked()
		c.mu.Unlock()

		c.logger.Warn("login failed",
			"kind", authErr.Kind,
			"request_id", authErr.RequestID,
			"attempts", attempts,
		)

		// Only lands in the vault when a prior session row exists; the
		// vault drops events with no session to attach to.
		event := EventLoginFailed
		if authErr.Kind == KindTwoFactorRequired {
			event = EventTwoFactorChallenged
		}
		if recordErr := c.store.RecordEvent(ctx, event, string(authErr.Kind)); recordErr != nil {
			c.logger.Warn("recording login event", "error", recordErr)
		}
		return nil, authErr
	}

	attempts := c.state.AttemptCount
	c.ref = ref
	c.pending = nil
	c.state = State{Phase: PhaseAuthenticated, User: user}
	c.publishLocked()
	c.mu.Unlock()

	c.persistSession(ctx, ref, user, attempts)
	return user, nil
}

// SubmitTwoFactor completes a pending second-factor challenge using the
// preserved email/password plus the given code.
func (c *Controller) SubmitTwoFactor(ctx context.Context, code string) (*User, error) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil, ErrNotAwaitingSecondFactor
	}
	creds := *c.pending
	c.mu.Unlock()

	creds.TOTPCode = code
	return c.Login(ctx, creds)
}

// AwaitingSecondFactor reports whether a two-factor challenge is pending.
// The state machine stays in the error phase during the challenge; this
// is the distinct feedback signal callers use to collect a code.
func (c *Controller) AwaitingSecondFactor() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Logout invalidates the session upstream (best effort), clears the
// persisted reference, and resets the state machine.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	ref := c.ref
	c.ref = ""
	c.pending = nil
	c.state = State{Phase: PhaseUnauthenticated}
	c.publishLocked()
	c.mu.Unlock()

	if err := c.store.RecordEvent(ctx, EventLogout, ""); err != nil {
		c.logger.Warn("recording logout event", "error", err)
	}
	if err := c.store.ClearReference(ctx); err != nil {
		c.logger.Warn("clearing session reference", "error", err)
	}

	if ref != "" {
		if err := c.svc.Logout(ctx, ref); err != nil {
			// The local session is already gone; upstream cleanup is
			// best effort.
			c.logger.Warn("upstream logout failed", "error", err)
		}
	}
	return nil
}

// Refresh re-resolves the current user, replacing it atomically. On
// failure the in-memory session drops to unauthenticated — a stale User
// is never left visible. The persisted reference is deleted only when
// the backend definitively rejected it; a transient failure leaves it
// in place so cold-start recovery can still succeed.
func (c *Controller) Refresh(ctx context.Context) (*User, error) {
	c.mu.Lock()
	if c.state.IsSubmitting {
		c.mu.Unlock()
		return nil, ErrLoginInFlight
	}
	if c.state.Phase != PhaseAuthenticated || c.ref == "" {
		c.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	ref := c.ref
	c.state = State{Phase: PhaseChecking, IsSubmitting: true, AttemptCount: c.state.AttemptCount}
	c.publishLocked()
	c.mu.Unlock()

	user, err := c.svc.CurrentUser(ctx, ref)

	c.mu.Lock()
	if err != nil {
		authErr := Classify(err)
		c.ref = ""
		c.state = State{Phase: PhaseUnauthenticated}
		c.publishLocked()
		c.mu.Unlock()

		if IsSessionRejection(authErr.Kind) {
			if clearErr := c.store.ClearReference(ctx); clearErr != nil {
				c.logger.Warn("clearing session reference after failed refresh", "error", clearErr)
			}
		}
		c.logger.Warn("refresh failed", "kind", authErr.Kind, "request_id", authErr.RequestID)
		return nil, authErr
	}

	c.state = State{Phase: PhaseAuthenticated, User: user}
	c.publishLocked()
	c.mu.Unlock()

	if err := c.store.RecordEvent(ctx, EventRefresh, ""); err != nil {
		c.logger.Warn("recording refresh event", "error", err)
	}
	if err := c.store.TouchActivity(ctx); err != nil {
		c.logger.Warn("touching session activity", "error", err)
	}
	return user, nil
}

// ClearSession drops the session synchronously without an upstream call.
// Used by the protected boundary when it intercepts an authentication-
// class failure: the session is presumed dead and must not be retried.
func (c *Controller) ClearSession(ctx context.Context) error {
	c.mu.Lock()
	c.ref = ""
	c.pending = nil
	c.state = State{Phase: PhaseUnauthenticated}
	c.publishLocked()
	c.mu.Unlock()

	if err := c.store.ClearReference(ctx); err != nil {
		c.logger.Warn("clearing session reference", "error", err)
		return err
	}
	return nil
}

// ResetForm clears the attempt counter and any pending challenge, moving
// an error state back to unauthenticated.
func (c *Controller) ResetForm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = nil
	if c.state.Phase == PhaseError {
		c.state = State{Phase: PhaseUnauthenticated}
	} else {
		c.state.AttemptCount = 0
	}
	c.publishLocked()
}

// CooldownFor returns the advisory resubmission cooldown for the current
// attempt count: zero for the first attempts, then doubling from the base,
// capped at the maximum. The controller never enforces it; the UI layer
// disables submission for the duration.
func (c *Controller) CooldownFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	attempts := c.state.AttemptCount
	if attempts < cooldownFreeAttempt {
		return 0
	}

	cooldown := c.cooldownBase
	for i := cooldownFreeAttempt; i < attempts; i++ {
		cooldown *= 2
		if cooldown >= c.cooldownMax {
			return c.cooldownMax
		}
	}
	return cooldown
}

// persistSession writes the issued reference and success event to the
// vault, recording how many failed attempts preceded the success. Vault
// failures degrade to in-memory session only.
func (c *Controller) persistSession(ctx context.Context, ref string, user *User, attempts int) {
	if err := c.store.SaveReference(ctx, ref, attempts); err != nil {
		c.logger.Error("persisting session reference", "error", err)
		return
	}
	if err := c.store.RecordEvent(ctx, EventLoginSucceeded, user.ID); err != nil {
		c.logger.Warn("recording login event", "error", err)
	}
	if err := c.store.TouchActivity(ctx); err != nil {
		c.logger.Warn("touching session activity", "error", err)
	}
}
