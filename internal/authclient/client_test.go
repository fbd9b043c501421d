package authclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/halcyonhq/authshell/internal/auth"
	"github.com/halcyonhq/authshell/internal/infrastructure/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second, logging.Default())
}

func TestLogin_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck // test handler
		w.Write([]byte(`{
			"user": {"user_id":"u-1","email":"test@example.com","roles":["user"]},
			"session_reference": "ref-xyz"
		}`))
	})

	user, ref, err := c.Login(context.Background(), auth.LoginCredentials{
		Email:    "test@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != "u-1" || ref != "ref-xyz" {
		t.Errorf("user.ID = %q, ref = %q", user.ID, ref)
	}
}

func TestLogin_ErrorCarriesStatusAndBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Two-factor authentication required")) //nolint:errcheck
	})

	_, _, err := c.Login(context.Background(), auth.LoginCredentials{})
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("error is %T, want *ServiceError", err)
	}
	if se.HTTPStatus() != http.StatusUnauthorized {
		t.Errorf("status = %d", se.HTTPStatus())
	}
	if se.ResponseBody() != "Two-factor authentication required" {
		t.Errorf("body = %q", se.ResponseBody())
	}

	// The classifier must see the two-factor signal through this error.
	if kind := auth.Classify(err).Kind; kind != auth.KindTwoFactorRequired {
		t.Errorf("classified kind = %s", kind)
	}
}

func TestLogin_TransportFailure(t *testing.T) {
	// Point at a closed port.
	c := New("http://127.0.0.1:1", time.Second, logging.Default())

	_, _, err := c.Login(context.Background(), auth.LoginCredentials{})
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("error is %T, want *ServiceError", err)
	}
	if se.HTTPStatus() != 0 {
		t.Errorf("status = %d, want 0 for transport failure", se.HTTPStatus())
	}
	if kind := auth.Classify(err).Kind; kind != auth.KindNetworkError {
		t.Errorf("classified kind = %s", kind)
	}
}

func TestLogin_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	c.http.Timeout = 20 * time.Millisecond

	_, _, err := c.Login(context.Background(), auth.LoginCredentials{})
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("error is %T, want *ServiceError", err)
	}
	if !se.TimedOut() {
		t.Error("timeout flag not set")
	}
	if kind := auth.Classify(err).Kind; kind != auth.KindTimeoutError {
		t.Errorf("classified kind = %s", kind)
	}
}

func TestCurrentUser_SendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ref-abc" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"u-1","email":"test@example.com","roles":["admin"]}`)) //nolint:errcheck
	})

	user, err := c.CurrentUser(context.Background(), "ref-abc")
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user.ID != "u-1" {
		t.Errorf("user.ID = %q", user.ID)
	}
}

func TestLogout(t *testing.T) {
	var called bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.URL.Path != "/api/auth/logout" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.Logout(context.Background(), "ref-abc"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !called {
		t.Error("logout endpoint not called")
	}
}
