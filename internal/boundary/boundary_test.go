package boundary

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/halcyonhq/authshell/internal/access"
	"github.com/halcyonhq/authshell/internal/auth"
	"github.com/halcyonhq/authshell/internal/infrastructure/logging"
	"github.com/halcyonhq/authshell/internal/recovery"
)

type fakeCtrl struct {
	mu      sync.Mutex
	state   auth.State
	cleared int
	applied chan string
}

func newFakeCtrl(state auth.State) *fakeCtrl {
	return &fakeCtrl{state: state, applied: make(chan string, 4)}
}

func (f *fakeCtrl) State() auth.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeCtrl) setState(s auth.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeCtrl) BeginChecking() {
	f.setState(auth.State{Phase: auth.PhaseChecking})
	f.applied <- "begin"
}

func (f *fakeCtrl) ResumeChecking() {
	f.setState(auth.State{Phase: auth.PhaseChecking})
	f.applied <- "resume"
}

func (f *fakeCtrl) CompleteRecovery(user *auth.User, reference string) {
	f.setState(auth.State{Phase: auth.PhaseAuthenticated, User: user})
	f.applied <- "recovered"
}

func (f *fakeCtrl) CompleteRecoveryNoSession() {
	f.setState(auth.State{Phase: auth.PhaseUnauthenticated})
	f.applied <- "no_session"
}

func (f *fakeCtrl) FailRecovery(failure *auth.Error) {
	f.setState(auth.State{Phase: auth.PhaseError, Err: failure})
	f.applied <- "failed"
}

func (f *fakeCtrl) ClearSession(ctx context.Context) error {
	f.mu.Lock()
	f.cleared++
	f.state = auth.State{Phase: auth.PhaseUnauthenticated}
	f.mu.Unlock()
	return nil
}

type fakeRecoverer struct {
	mu      sync.Mutex
	outcome recovery.Outcome
	block   bool
}

func (f *fakeRecoverer) set(outcome recovery.Outcome, block bool) {
	f.mu.Lock()
	f.outcome = outcome
	f.block = block
	f.mu.Unlock()
}

func (f *fakeRecoverer) Recover(ctx context.Context) (recovery.Outcome, error) {
	f.mu.Lock()
	outcome, block := f.outcome, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return recovery.Outcome{}, ctx.Err()
	}
	return outcome, nil
}

func regularUser() *auth.User {
	return &auth.User{ID: "u-1", Email: "person@example.com", Roles: []auth.Role{auth.RoleUser}}
}

func awaitApplied(t *testing.T, ctrl *fakeCtrl, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ctrl.applied:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestRender_LoadingWhileUnresolved(t *testing.T) {
	for _, phase := range []auth.Phase{auth.PhaseInitial, auth.PhaseChecking} {
		ctrl := newFakeCtrl(auth.State{Phase: phase})
		b := New(ctrl, &fakeRecoverer{}, logging.Default())
		d := b.Render(context.Background(), Request{Path: "/chat"})
		if d.Kind != DecisionLoading {
			t.Errorf("phase %s: kind = %s, want loading", phase, d.Kind)
		}
	}
}

func TestRender_AuthenticatedRendersChildren(t *testing.T) {
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseAuthenticated, User: regularUser()})
	b := New(ctrl, &fakeRecoverer{}, logging.Default())

	ran := false
	d := b.Render(context.Background(), Request{Path: "/chat", Children: func() error {
		ran = true
		return nil
	}})
	if d.Kind != DecisionChildren {
		t.Fatalf("kind = %s, want children", d.Kind)
	}
	if !ran {
		t.Error("children did not run")
	}
}

func TestRender_UnauthenticatedRedirectsOnce(t *testing.T) {
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseUnauthenticated})
	b := New(ctrl, &fakeRecoverer{}, logging.Default())

	d := b.Render(context.Background(), Request{Path: "/chat"})
	if d.Kind != DecisionRedirect || d.RedirectTo != access.PathLogin {
		t.Fatalf("got %+v, want redirect to %s", d, access.PathLogin)
	}

	// Already on an auth-exempt path: render the login surface in place
	// instead of redirecting again.
	d = b.Render(context.Background(), Request{Path: access.PathLogin})
	if d.Kind != DecisionLogin {
		t.Fatalf("on %s got kind %s, want login", access.PathLogin, d.Kind)
	}
}

func TestRender_InsufficientRoleRedirectsUnauthorized(t *testing.T) {
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseAuthenticated, User: regularUser()})
	b := New(ctrl, &fakeRecoverer{}, logging.Default())

	d := b.Render(context.Background(), Request{Path: "/admin/users"})
	if d.Kind != DecisionRedirect || d.RedirectTo != access.PathUnauthorized {
		t.Fatalf("got %+v, want redirect to %s", d, access.PathUnauthorized)
	}
}

func TestRender_PermissionRequirement(t *testing.T) {
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseAuthenticated, User: regularUser()})
	b := New(ctrl, &fakeRecoverer{}, logging.Default())

	d := b.Render(context.Background(), Request{
		Path:               "/chat",
		RequiredPermission: access.PermUserManage,
	})
	if d.Kind != DecisionRedirect || d.RedirectTo != access.PathUnauthorized {
		t.Fatalf("got %+v, want redirect to %s", d, access.PathUnauthorized)
	}
}

func TestRender_RecoveryErrorOffersRetry(t *testing.T) {
	failure := &auth.Error{Kind: auth.KindNetworkError, Message: "upstream unreachable"}
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseError, Err: failure})
	b := New(ctrl, &fakeRecoverer{}, logging.Default())

	d := b.Render(context.Background(), Request{Path: "/chat"})
	if d.Kind != DecisionRetryRecovery {
		t.Fatalf("kind = %s, want retry_recovery", d.Kind)
	}
	if d.Err != failure {
		t.Error("decision should carry the recovery failure")
	}
}

func TestSupervise_AuthIndicativeFailureClearsSession(t *testing.T) {
	for _, msg := range []string{
		"request failed with 401",
		"Unauthorized",
		"token expired",
		"stale SESSION reference",
	} {
		ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseAuthenticated, User: regularUser()})
		b := New(ctrl, &fakeRecoverer{}, logging.Default())

		d := b.Render(context.Background(), Request{Path: "/chat", Children: func() error {
			return errors.New(msg)
		}})
		if d.Kind != DecisionRedirect || d.RedirectTo != access.PathLogin {
			t.Errorf("%q: got %+v, want redirect to login", msg, d)
		}
		if ctrl.cleared != 1 {
			t.Errorf("%q: session cleared %d times, want 1", msg, ctrl.cleared)
		}
		if d.Caught != nil {
			t.Errorf("%q: auth-indicative failure must not be retryable", msg)
		}
	}
}

func TestSupervise_OrdinaryFailureIsRetryable(t *testing.T) {
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseAuthenticated, User: regularUser()})
	b := New(ctrl, &fakeRecoverer{}, logging.Default())

	runs := 0
	req := Request{Path: "/chat", Children: func() error {
		runs++
		if runs == 1 {
			return errors.New("widget layout failed")
		}
		return nil
	}}

	d := b.Render(context.Background(), req)
	if d.Kind != DecisionCaught || d.Caught == nil {
		t.Fatalf("got %+v, want caught", d)
	}
	if ctrl.cleared != 0 {
		t.Error("ordinary failure must not clear the session")
	}

	// Caught state is sticky: rendering again does not re-run children.
	d = b.Render(context.Background(), req)
	if d.Kind != DecisionCaught || runs != 1 {
		t.Fatalf("sticky caught violated: kind=%s runs=%d", d.Kind, runs)
	}

	b.Retry()
	d = b.Render(context.Background(), req)
	if d.Kind != DecisionChildren || runs != 2 {
		t.Fatalf("after retry: kind=%s runs=%d", d.Kind, runs)
	}
}

func TestSupervise_PanicIsCaught(t *testing.T) {
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseAuthenticated, User: regularUser()})
	b := New(ctrl, &fakeRecoverer{}, logging.Default())

	d := b.Render(context.Background(), Request{Path: "/chat", Children: func() error {
		panic("nil map write")
	}})
	if d.Kind != DecisionCaught || d.Caught == nil {
		t.Fatalf("got %+v, want caught", d)
	}
}

func TestMount_AppliesRecoveryOutcome(t *testing.T) {
	tests := []struct {
		name    string
		outcome recovery.Outcome
		want    string
	}{
		{"authenticated", recovery.Outcome{Kind: recovery.OutcomeAuthenticated, User: regularUser(), Reference: "sess-abc"}, "recovered"},
		{"no session", recovery.Outcome{Kind: recovery.OutcomeNoSession}, "no_session"},
		{"error", recovery.Outcome{Kind: recovery.OutcomeError, Err: &auth.Error{Kind: auth.KindTimeoutError}}, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseInitial})
			b := New(ctrl, &fakeRecoverer{outcome: tt.outcome}, logging.Default())

			b.Mount(context.Background())
			awaitApplied(t, ctrl, "begin")
			awaitApplied(t, ctrl, tt.want)
		})
	}
}

func TestUnmount_CancelsPendingRecovery(t *testing.T) {
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseInitial})
	b := New(ctrl, &fakeRecoverer{block: true}, logging.Default())

	b.Mount(context.Background())
	awaitApplied(t, ctrl, "begin")
	b.Unmount()

	// The blocked recovery returns ctx.Err(), which must be discarded.
	select {
	case got := <-ctrl.applied:
		t.Fatalf("controller received %q after unmount", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRetryRecovery_ResumesAndApplies(t *testing.T) {
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseInitial})
	rec := &fakeRecoverer{outcome: recovery.Outcome{Kind: recovery.OutcomeError, Err: &auth.Error{Kind: auth.KindNetworkError}}}
	b := New(ctrl, rec, logging.Default())

	b.Mount(context.Background())
	awaitApplied(t, ctrl, "begin")
	awaitApplied(t, ctrl, "failed")

	rec.set(recovery.Outcome{Kind: recovery.OutcomeAuthenticated, User: regularUser(), Reference: "sess-abc"}, false)
	b.RetryRecovery()
	awaitApplied(t, ctrl, "resume")
	awaitApplied(t, ctrl, "recovered")
}

func TestRetryRecovery_NoopWhenUnmounted(t *testing.T) {
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseError, Err: &auth.Error{Kind: auth.KindNetworkError}})
	b := New(ctrl, &fakeRecoverer{}, logging.Default())

	b.RetryRecovery()

	select {
	case got := <-ctrl.applied:
		t.Fatalf("controller received %q without a mount", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnmount_CancelsPendingRetry(t *testing.T) {
	ctrl := newFakeCtrl(auth.State{Phase: auth.PhaseInitial})
	rec := &fakeRecoverer{outcome: recovery.Outcome{Kind: recovery.OutcomeError, Err: &auth.Error{Kind: auth.KindNetworkError}}}
	b := New(ctrl, rec, logging.Default())

	b.Mount(context.Background())
	awaitApplied(t, ctrl, "begin")
	awaitApplied(t, ctrl, "failed")

	rec.set(recovery.Outcome{}, true)
	b.RetryRecovery()
	awaitApplied(t, ctrl, "resume")
	b.Unmount()

	// The retry shares the mount's cancellation; its late result must be
	// discarded like the original attempt's.
	select {
	case got := <-ctrl.applied:
		t.Fatalf("controller received %q after unmount", got)
	case <-time.After(100 * time.Millisecond):
	}
}
