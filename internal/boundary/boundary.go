package boundary

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/halcyonhq/authshell/internal/access"
	"github.com/halcyonhq/authshell/internal/auth"
	"github.com/halcyonhq/authshell/internal/infrastructure/logging"
	"github.com/halcyonhq/authshell/internal/recovery"
)

// DecisionKind names what the boundary wants rendered.
type DecisionKind string

const (
	// DecisionLoading covers the unresolved phases (initial, checking).
	DecisionLoading DecisionKind = "loading"
	// DecisionChildren means the protected content may render.
	DecisionChildren DecisionKind = "children"
	// DecisionLogin renders the login surface in place. Only issued when
	// the current path is already auth-exempt, so it can never loop.
	DecisionLogin DecisionKind = "login"
	// DecisionRedirect carries a target path in RedirectTo.
	DecisionRedirect DecisionKind = "redirect"
	// DecisionRetryRecovery signals a failed session check with a retry
	// affordance. Err carries the classified failure.
	DecisionRetryRecovery DecisionKind = "retry_recovery"
	// DecisionCaught means the child content failed in a non-auth way and
	// may be retried via Retry.
	DecisionCaught DecisionKind = "caught"
)

// Decision is the boundary's render verdict for one request.
type Decision struct {
	Kind       DecisionKind
	RedirectTo string
	Err        *auth.Error
	Caught     *CaughtError
}

// CaughtError describes a supervised child failure held for retry.
type CaughtError struct {
	Message string
}

// RenderFunc produces the protected content. A panic inside it is
// converted into an error by the supervisor.
type RenderFunc func() error

// Request describes one protected render: the current path, the content
// to supervise, and optional role/permission requirements beyond plain
// authentication.
type Request struct {
	Path               string
	RequiredRole       auth.Role
	RequiredPermission access.Permission
	Children           RenderFunc
}

// Controller is the slice of the auth controller the boundary drives.
type Controller interface {
	State() auth.State
	BeginChecking()
	ResumeChecking()
	CompleteRecovery(user *auth.User, reference string)
	CompleteRecoveryNoSession()
	FailRecovery(failure *auth.Error)
	ClearSession(ctx context.Context) error
}

// Recoverer resolves a persisted session into an outcome.
type Recoverer interface {
	Recover(ctx context.Context) (recovery.Outcome, error)
}

// authIndicative substrings mark a child failure as an expired or
// rejected session rather than an ordinary rendering bug.
var authIndicative = []string{"401", "unauthorized", "token", "session"}

// Boundary gates protected content on the auth state machine. Mount
// kicks off session recovery, Render resolves one request against the
// current phase, and Unmount cancels anything still pending.
type Boundary struct {
	ctrl   Controller
	rec    Recoverer
	logger *logging.Logger

	mu     sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
	caught *CaughtError
}

// New builds a boundary around a controller and a recoverer.
func New(ctrl Controller, rec Recoverer, logger *logging.Logger) *Boundary {
	return &Boundary{ctrl: ctrl, rec: rec, logger: logger}
}

// Mount transitions the controller into checking and resolves recovery
// in the background. Mounting twice without an Unmount is a no-op.
func (b *Boundary) Mount(ctx context.Context) {
	b.mu.Lock()
	if b.cancel != nil {
		b.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.runCtx = runCtx
	b.cancel = cancel
	b.mu.Unlock()

	b.ctrl.BeginChecking()
	go b.runRecovery(runCtx)
}

// Unmount cancels any in-flight recovery, including retries. A result
// arriving after cancellation is discarded, never applied to the
// controller.
func (b *Boundary) Unmount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
		b.runCtx = nil
	}
}

// RetryRecovery re-runs a failed session check. Only meaningful while
// mounted with the controller in the error phase after FailRecovery.
// The rerun shares the mount's cancellation, so Unmount discards its
// result the same way.
func (b *Boundary) RetryRecovery() {
	b.mu.Lock()
	runCtx := b.runCtx
	b.mu.Unlock()
	if runCtx == nil {
		return
	}
	b.ctrl.ResumeChecking()
	go b.runRecovery(runCtx)
}

func (b *Boundary) runRecovery(ctx context.Context) {
	outcome, err := b.rec.Recover(ctx)
	if err != nil {
		// Cancelled or superseded. The controller keeps whatever phase
		// it is in; a later mount will resolve it.
		return
	}
	switch outcome.Kind {
	case recovery.OutcomeAuthenticated:
		b.ctrl.CompleteRecovery(outcome.User, outcome.Reference)
	case recovery.OutcomeNoSession:
		b.ctrl.CompleteRecoveryNoSession()
	case recovery.OutcomeError:
		b.ctrl.FailRecovery(outcome.Err)
	}
}

// Render resolves one protected request against the current auth state.
func (b *Boundary) Render(ctx context.Context, req Request) Decision {
	b.mu.Lock()
	caught := b.caught
	b.mu.Unlock()
	if caught != nil {
		return Decision{Kind: DecisionCaught, Caught: caught}
	}

	state := b.ctrl.State()
	if !state.Resolved() {
		return Decision{Kind: DecisionLoading}
	}

	if !state.Authenticated() {
		if state.Phase == auth.PhaseError {
			return Decision{Kind: DecisionRetryRecovery, Err: state.Err}
		}
		if access.IsAuthExempt(req.Path) {
			return Decision{Kind: DecisionLogin}
		}
		return Decision{Kind: DecisionRedirect, RedirectTo: access.PathLogin}
	}

	if !b.authorized(state.User, req) {
		return Decision{Kind: DecisionRedirect, RedirectTo: access.PathUnauthorized}
	}

	return b.supervise(ctx, req)
}

// Retry clears a caught child failure so the next Render attempts the
// children again. It never touches the session.
func (b *Boundary) Retry() {
	b.mu.Lock()
	b.caught = nil
	b.mu.Unlock()
}

func (b *Boundary) authorized(user *auth.User, req Request) bool {
	if user == nil {
		return false
	}
	if !access.IsPathAccessible(req.Path, user.Roles) {
		return false
	}
	if req.RequiredRole != "" && !user.HasRoleAtLeast(req.RequiredRole) {
		return false
	}
	if req.RequiredPermission != "" && !access.HasPermission(user.Roles, req.RequiredPermission) {
		return false
	}
	return true
}

// supervise runs the children under a panic guard. Auth-indicative
// failures clear the session synchronously and redirect to login with no
// retry path; everything else becomes a retryable caught state.
func (b *Boundary) supervise(ctx context.Context, req Request) Decision {
	err := runChildren(req.Children)
	if err == nil {
		return Decision{Kind: DecisionChildren}
	}

	msg := err.Error()
	if isAuthIndicative(msg) {
		b.logger.Warn("protected content failed with session-indicative error, clearing session",
			"path", req.Path)
		if clearErr := b.ctrl.ClearSession(ctx); clearErr != nil {
			b.logger.Error("session clear after child failure", "error", clearErr)
		}
		return Decision{Kind: DecisionRedirect, RedirectTo: access.PathLogin}
	}

	b.logger.Error("protected content failed", "path", req.Path, "error", msg)
	caught := &CaughtError{Message: msg}
	b.mu.Lock()
	b.caught = caught
	b.mu.Unlock()
	return Decision{Kind: DecisionCaught, Caught: caught}
}

func runChildren(fn RenderFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()
	if fn == nil {
		return nil
	}
	return fn()
}

func isAuthIndicative(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range authIndicative {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
