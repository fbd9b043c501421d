// authstub - development stand-in for the upstream authentication service
//
// authstub speaks the small slice of the upstream API that authshell
// consumes: POST /api/auth/login, GET /api/auth/me, POST /api/auth/logout.
// It holds a fixed set of development accounts, enforces TOTP for accounts
// with two-factor enabled, and rate-limits repeated failures per email so
// the full error taxonomy can be exercised locally.
//
// Session references are short-lived HS256 JWTs signed with a per-process
// random secret; restarting the stub invalidates all sessions, which is
// exactly what session recovery needs to be tested against.
package main

import (
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/halcyonhq/authshell/internal/infrastructure/config"
	"github.com/halcyonhq/authshell/internal/infrastructure/logging"
)

// failureLimit is the number of consecutive failed logins per email
// before the stub starts answering 429.
const failureLimit = 5

// lockoutWindow is how long the 429 answer persists after the limit.
const lockoutWindow = 5 * time.Minute

// tokenLifetime bounds issued session references.
const tokenLifetime = 12 * time.Hour

// account is one development login.
type account struct {
	UserID           string
	Email            string
	Password         string
	TOTPCode         string
	Roles            []string
	TenantID         string
	TwoFactorEnabled bool
}

// devAccounts covers every role rank plus a two-factor account.
var devAccounts = []account{
	{UserID: uuid.NewString(), Email: "user@example.com", Password: "password123", Roles: []string{"user"}, TenantID: "default"},
	{UserID: uuid.NewString(), Email: "admin@example.com", Password: "password123", Roles: []string{"user", "admin"}, TenantID: "default"},
	{UserID: uuid.NewString(), Email: "root@example.com", Password: "password123", Roles: []string{"user", "admin", "super_admin"}, TenantID: "default"},
	{UserID: uuid.NewString(), Email: "totp@example.com", Password: "password123", TOTPCode: "123456", Roles: []string{"user"}, TenantID: "default", TwoFactorEnabled: true},
}

// userPayload is the wire form of a user, matching what authshell parses.
type userPayload struct {
	UserID           string         `json:"user_id"`
	Email            string         `json:"email"`
	Roles            []string       `json:"roles"`
	TenantID         string         `json:"tenant_id"`
	TwoFactorEnabled bool           `json:"two_factor_enabled"`
	Preferences      map[string]any `json:"preferences,omitempty"`
}

func payloadFor(a *account) userPayload {
	return userPayload{
		UserID:           a.UserID,
		Email:            a.Email,
		Roles:            a.Roles,
		TenantID:         a.TenantID,
		TwoFactorEnabled: a.TwoFactorEnabled,
	}
}

// stub is the in-memory upstream.
type stub struct {
	logger *logging.Logger
	secret []byte

	mu       sync.Mutex
	failures map[string]int
	lockedAt map[string]time.Time
	revoked  map[string]bool
}

func newStub(logger *logging.Logger) *stub {
	secret := make([]byte, 32)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(secret)
	return &stub{
		logger:   logger,
		secret:   secret,
		failures: make(map[string]int),
		lockedAt: make(map[string]time.Time),
		revoked:  make(map[string]bool),
	}
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8620", "listen address")
	flag.Parse()

	logger := logging.New(config.LoggingConfig{Level: "debug", Format: "text", Output: "stdout"}, "authstub")
	s := newStub(logger)

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/me", s.handleMe)
		r.Post("/logout", s.handleLogout)
	})

	logger.Info("authstub listening", "addr", *addr)
	for _, a := range devAccounts {
		logger.Info("development account", "email", a.Email, "roles", strings.Join(a.Roles, ","), "two_factor", a.TwoFactorEnabled)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

func (s *stub) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		detail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if s.rateLimited(email) {
		detail(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 5 minutes")
		return
	}

	acct := findAccount(email)
	if acct == nil || acct.Password != req.Password {
		s.recordFailure(email)
		detail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if acct.TwoFactorEnabled {
		if req.TOTPCode == "" {
			// Credentials were correct; the challenge itself is not a
			// counted failure.
			detail(w, http.StatusUnauthorized, "two_factor_required")
			return
		}
		if req.TOTPCode != acct.TOTPCode {
			s.recordFailure(email)
			detail(w, http.StatusUnauthorized, "Invalid two_factor code")
			return
		}
	}

	s.clearFailures(email)

	ref, err := s.issueToken(acct)
	if err != nil {
		detail(w, http.StatusInternalServerError, "token issuance failed")
		return
	}

	s.logger.Info("login succeeded", "email", acct.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":              payloadFor(acct),
		"session_reference": ref,
	})
}

func (s *stub) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticate(r)
	if !ok {
		detail(w, http.StatusUnauthorized, "Invalid or expired session")
		return
	}
	// The whoami response is the bare user object.
	writeJSON(w, http.StatusOK, payloadFor(acct))
}

func (s *stub) handleLogout(w http.ResponseWriter, r *http.Request) {
	ref := bearerToken(r)
	if ref != "" {
		s.mu.Lock()
		s.revoked[ref] = true
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// issueToken mints a session reference for an account.
func (s *stub) issueToken(a *account) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   a.UserID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		Issuer:    "authstub",
	})
	return token.SignedString(s.secret)
}

// authenticate resolves the bearer token to an account.
func (s *stub) authenticate(r *http.Request) (*account, bool) {
	ref := bearerToken(r)
	if ref == "" {
		return nil, false
	}

	s.mu.Lock()
	revoked := s.revoked[ref]
	s.mu.Unlock()
	if revoked {
		return nil, false
	}

	token, err := jwt.ParseWithClaims(ref, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, false
	}
	for i := range devAccounts {
		if devAccounts[i].UserID == claims.Subject {
			return &devAccounts[i], true
		}
	}
	return nil, false
}

func (s *stub) rateLimited(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lockedAt, locked := s.lockedAt[email]
	if !locked {
		return false
	}
	if time.Since(lockedAt) > lockoutWindow {
		delete(s.lockedAt, email)
		delete(s.failures, email)
		return false
	}
	return true
}

func (s *stub) recordFailure(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[email]++
	if s.failures[email] >= failureLimit {
		s.lockedAt[email] = time.Now()
		s.logger.Warn("account rate limited", "email", email)
	}
}

func (s *stub) clearFailures(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, email)
	delete(s.lockedAt, email)
}

func findAccount(email string) *account {
	for i := range devAccounts {
		if devAccounts[i].Email == email {
			return &devAccounts[i]
		}
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(v)
}
