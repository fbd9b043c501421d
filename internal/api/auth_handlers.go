package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/halcyonhq/authshell/internal/auth"
	"github.com/halcyonhq/authshell/internal/recovery"
)

// stateResponse is the wire form of an auth state snapshot. It is the
// payload of GET /auth/state, of every mutating auth endpoint, and of the
// WebSocket state stream.
type stateResponse struct {
	Phase                string      `json:"phase"`
	User                 *auth.User  `json:"user,omitempty"`
	Error                *auth.Error `json:"error,omitempty"`
	IsSubmitting         bool        `json:"is_submitting"`
	AttemptCount         int         `json:"attempt_count"`
	CooldownSeconds      int         `json:"cooldown_seconds"`
	AwaitingSecondFactor bool        `json:"awaiting_second_factor"`
}

func (s *Server) stateResponse(state auth.State) stateResponse {
	return stateResponse{
		Phase:                string(state.Phase),
		User:                 state.User,
		Error:                state.Err,
		IsSubmitting:         state.IsSubmitting,
		AttemptCount:         state.AttemptCount,
		CooldownSeconds:      int(s.ctrl.CooldownFor().Seconds()),
		AwaitingSecondFactor: s.ctrl.AwaitingSecondFactor(),
	}
}

func (s *Server) writeState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, s.stateResponse(s.ctrl.State()))
}

// handleAuthState returns the current auth state snapshot.
func (s *Server) handleAuthState(w http.ResponseWriter, _ *http.Request) {
	s.writeState(w)
}

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// handleLogin validates the submitted form and drives a login attempt.
// Classified failures land in the returned state, not in the HTTP status;
// only malformed requests and the in-flight guard get error statuses.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	creds := auth.LoginCredentials{
		Email:    req.Email,
		Password: req.Password,
		TOTPCode: req.TOTPCode,
	}
	if validation := auth.ValidateForm(creds, false); !validation.IsValid {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":       ErrCodeValidation,
			"validation": validation,
		})
		return
	}

	if _, err := s.ctrl.Login(r.Context(), creds); err != nil {
		if errors.Is(err, auth.ErrLoginInFlight) {
			writeConflict(w, "a login attempt is already in flight")
			return
		}
		// Classified failure: already folded into the state machine.
		s.writeState(w)
		return
	}
	s.writeState(w)
}

// twoFactorRequest is the body of POST /auth/two-factor.
type twoFactorRequest struct {
	Code string `json:"code"`
}

// handleTwoFactor resubmits the preserved credentials with a one-time code.
func (s *Server) handleTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if msg := auth.ValidateField(auth.FieldTOTPCode, req.Code, true); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":       ErrCodeValidation,
			"validation": auth.FormValidation{Errors: map[string]string{auth.FieldTOTPCode: msg}, FirstErrorField: auth.FieldTOTPCode},
		})
		return
	}

	if _, err := s.ctrl.SubmitTwoFactor(r.Context(), req.Code); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotAwaitingSecondFactor):
			writeConflict(w, "no second-factor challenge is pending")
		case errors.Is(err, auth.ErrLoginInFlight):
			writeConflict(w, "a login attempt is already in flight")
		default:
			s.writeState(w)
		}
		return
	}
	s.writeState(w)
}

// handleLogout clears local state first, then notifies upstream best-effort.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Logout(r.Context()); err != nil {
		s.logger.Warn("logout cleanup", "error", err)
	}
	s.writeState(w)
}

// handleRefresh revalidates the current session against upstream.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ctrl.Refresh(r.Context()); err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			writeConflict(w, "no authenticated session to refresh")
			return
		}
		s.writeState(w)
		return
	}
	s.writeState(w)
}

// handleRecover runs session recovery and folds the outcome into the
// state machine. Safe to call repeatedly; concurrent calls coalesce.
func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	if s.rec == nil {
		writeInternalError(w, "session recovery is not configured")
		return
	}

	state := s.ctrl.State()
	switch state.Phase {
	case auth.PhaseInitial:
		s.ctrl.BeginChecking()
	case auth.PhaseError:
		s.ctrl.ResumeChecking()
	case auth.PhaseChecking:
		// A recovery is already resolving; fall through and coalesce.
	default:
		s.writeState(w)
		return
	}

	outcome, err := s.rec.Recover(r.Context())
	if err != nil {
		writeInternalError(w, "session recovery interrupted")
		return
	}
	switch outcome.Kind {
	case recovery.OutcomeAuthenticated:
		s.ctrl.CompleteRecovery(outcome.User, outcome.Reference)
	case recovery.OutcomeNoSession:
		s.ctrl.CompleteRecoveryNoSession()
	case recovery.OutcomeError:
		s.ctrl.FailRecovery(outcome.Err)
	}
	s.writeState(w)
}

// handleResetForm returns an error or unauthenticated state to a clean form.
func (s *Server) handleResetForm(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.ResetForm()
	s.writeState(w)
}

// validateRequest is the body of POST /auth/validate.
type validateRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	TOTPCode         string `json:"totp_code,omitempty"`
	RequireTwoFactor bool   `json:"require_two_factor,omitempty"`
}

// handleValidate runs form validation without touching the state machine.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	validation := auth.ValidateForm(auth.LoginCredentials{
		Email:    req.Email,
		Password: req.Password,
		TOTPCode: req.TOTPCode,
	}, req.RequireTwoFactor)
	writeJSON(w, http.StatusOK, validation)
}
