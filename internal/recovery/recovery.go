package recovery

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/halcyonhq/authshell/internal/auth"
	"github.com/halcyonhq/authshell/internal/infrastructure/logging"
	"github.com/halcyonhq/authshell/internal/session"
)

// OutcomeKind identifies how a recovery attempt resolved.
type OutcomeKind string

const (
	// OutcomeAuthenticated means the stored reference is valid and a User
	// was recovered.
	OutcomeAuthenticated OutcomeKind = "authenticated"

	// OutcomeNoSession means no usable session exists. Covers both "nothing
	// stored" and "stored but rejected by the backend" — the two are
	// deliberately indistinguishable so ordinary expiry never flashes an
	// error.
	OutcomeNoSession OutcomeKind = "no_session"

	// OutcomeError means recovery could not complete (service unreachable).
	// The stored reference is kept so a retry can succeed.
	OutcomeError OutcomeKind = "error"
)

// Outcome is the result of a recovery attempt.
type Outcome struct {
	Kind      OutcomeKind
	User      *auth.User
	Reference string
	Err       *auth.Error // set only for OutcomeError
}

// Vault is the slice of the session vault recovery needs.
type Vault interface {
	Current(ctx context.Context) (*session.Session, error)
	ClearReference(ctx context.Context) error
}

// UserResolver resolves a stored reference to its user — the auth
// service's "who am I" operation.
type UserResolver interface {
	CurrentUser(ctx context.Context, ref string) (*auth.User, error)
}

// Service attempts to restore a prior session at process start.
//
// Recovery runs once per process lifetime: concurrent callers coalesce
// into a single attempt, and a terminal outcome (authenticated or
// no-session) is cached. An error outcome is not cached, so the boundary's
// retry affordance can trigger a fresh attempt.
type Service struct {
	vault  Vault
	users  UserResolver
	logger *logging.Logger

	group singleflight.Group

	mu     sync.Mutex
	done   bool
	cached Outcome
}

// New creates a recovery Service.
func New(vault Vault, users UserResolver, logger *logging.Logger) *Service {
	return &Service{
		vault:  vault,
		users:  users,
		logger: logger.With("component", "recovery"),
	}
}

// Recover attempts to restore a session.
//
// The attempt itself runs detached from the caller's context: if ctx is
// cancelled (boundary unmounted) the caller stops waiting and receives
// ctx.Err(), and the shared attempt's eventual result cannot apply to the
// torn-down surface. Other waiters are unaffected.
func (s *Service) Recover(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.done {
		out := s.cached
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	ch := s.group.DoChan("recover", func() (any, error) {
		out := s.run(context.WithoutCancel(ctx))
		s.mu.Lock()
		if out.Kind != OutcomeError {
			s.done = true
			s.cached = out
		}
		s.mu.Unlock()
		return out, nil
	})

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case res := <-ch:
		return res.Val.(Outcome), nil
	}
}

// run performs one recovery attempt.
func (s *Service) run(ctx context.Context) Outcome {
	sess, err := s.vault.Current(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return Outcome{Kind: OutcomeNoSession}
		}
		// Corrupt vault state: clear it and surface the failure.
		s.logger.Error("session vault unreadable, clearing", "error", err)
		if clearErr := s.vault.ClearReference(ctx); clearErr != nil {
			s.logger.Error("clearing corrupt session", "error", clearErr)
		}
		return Outcome{Kind: OutcomeError, Err: auth.Classify(err)}
	}

	user, err := s.users.CurrentUser(ctx, sess.Reference)
	if err == nil {
		s.logger.Info("session recovered", "session_id", sess.ID)
		return Outcome{Kind: OutcomeAuthenticated, User: user, Reference: sess.Reference}
	}

	authErr := auth.Classify(err)
	if auth.IsSessionRejection(authErr.Kind) {
		// The backend looked at the reference and said no: ordinary expiry.
		// Clear it and resolve silently, exactly like the nothing-stored case.
		s.logger.Info("stored session rejected, clearing",
			"kind", authErr.Kind,
			"request_id", authErr.RequestID,
		)
		if clearErr := s.vault.ClearReference(ctx); clearErr != nil {
			s.logger.Error("clearing rejected session", "error", clearErr)
		}
		return Outcome{Kind: OutcomeNoSession}
	}

	// The backend never weighed in (network down, timing out, or erroring).
	// Keep the reference; a retry may still recover the session.
	s.logger.Warn("session recovery failed",
		"kind", authErr.Kind,
		"request_id", authErr.RequestID,
	)
	return Outcome{Kind: OutcomeError, Err: authErr}
}
