package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeFailure implements ServiceFailure for classifier tests.
type fakeFailure struct {
	status  int
	body    string
	timeout bool
}

func (f *fakeFailure) Error() string        { return fmt.Sprintf("auth service: status %d", f.status) }
func (f *fakeFailure) HTTPStatus() int      { return f.status }
func (f *fakeFailure) ResponseBody() string { return f.body }
func (f *fakeFailure) TimedOut() bool       { return f.timeout }

// fakeNetError simulates a transport failure outside the client wrapper.
type fakeNetError struct{ timeout bool }

func (f *fakeNetError) Error() string   { return "dial tcp: connection refused" }
func (f *fakeNetError) Timeout() bool   { return f.timeout }
func (f *fakeNetError) Temporary() bool { return true }

func TestClassify_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		raw  error
		want ErrorKind
	}{
		{"transport failure", &fakeFailure{status: 0}, KindNetworkError},
		{"plain 401", &fakeFailure{status: 401, body: "Invalid email or password"}, KindInvalidCredentials},
		{"401 two-factor", &fakeFailure{status: 401, body: "Two-factor authentication required"}, KindTwoFactorRequired},
		{"401 totp", &fakeFailure{status: 401, body: "TOTP code required"}, KindTwoFactorRequired},
		{"401 invalid totp", &fakeFailure{status: 401, body: "Invalid TOTP code"}, KindTwoFactorInvalid},
		// Underscore phrasings, as emitted by backends speaking snake_case
		// details (authstub included).
		{"401 underscore challenge", &fakeFailure{status: 401, body: `{"detail":"two_factor_required"}`}, KindTwoFactorRequired},
		{"401 underscore invalid", &fakeFailure{status: 401, body: `{"detail":"Invalid two_factor code"}`}, KindTwoFactorInvalid},
		{"401 verification", &fakeFailure{status: 401, body: "Email verification required"}, KindVerificationRequired},
		{"403", &fakeFailure{status: 403, body: "Access denied by security policy"}, KindSecurityBlock},
		{"429", &fakeFailure{status: 429, body: "Too many requests"}, KindRateLimit},
		{"423", &fakeFailure{status: 423, body: "Account locked"}, KindAccountLocked},
		{"423 suspended", &fakeFailure{status: 423, body: "Account suspended pending review"}, KindAccountSuspended},
		{"500", &fakeFailure{status: 500, body: "internal server error"}, KindServerError},
		{"503", &fakeFailure{status: 503}, KindServerError},
		{"timeout flag", &fakeFailure{status: 0, timeout: true}, KindTimeoutError},
		{"unmatched status", &fakeFailure{status: 418, body: "teapot"}, KindUnknownError},
		{"bare net error", &fakeNetError{}, KindNetworkError},
		{"net timeout", &fakeNetError{timeout: true}, KindTimeoutError},
		{"arbitrary error", errors.New("something odd"), KindUnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.raw)
			if got.Kind != tt.want {
				t.Errorf("Classify(%v).Kind = %s, want %s", tt.raw, got.Kind, tt.want)
			}
			if got.RequestID == "" {
				t.Error("RequestID should be generated locally")
			}
			if got.Timestamp.IsZero() {
				t.Error("Timestamp should be set")
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) should return nil")
	}
}

func TestClassify_Pure(t *testing.T) {
	raw := &fakeFailure{status: 429, body: "Too many requests. Try again in 5 minutes"}
	first := Classify(raw)
	second := Classify(raw)

	if first.Kind != second.Kind {
		t.Errorf("Classify not pure over Kind: %s vs %s", first.Kind, second.Kind)
	}
	if first.RetryAfter != second.RetryAfter {
		t.Errorf("Classify not pure over RetryAfter: %v vs %v", first.RetryAfter, second.RetryAfter)
	}
}

func TestClassify_RetryAfter(t *testing.T) {
	tests := []struct {
		body string
		want time.Duration
	}{
		{"Too many requests. Try again in 5 minutes", 5 * time.Minute},
		{"rate limited, retry in 30 seconds", 30 * time.Second},
		{"Try again in 1 minute", time.Minute},
		{"Too many requests", defaultRetryAfter},
		{"", defaultRetryAfter},
	}

	for _, tt := range tests {
		e := Classify(&fakeFailure{status: 429, body: tt.body})
		if e.Kind != KindRateLimit {
			t.Errorf("body %q: kind = %s", tt.body, e.Kind)
		}
		if e.RetryAfter != tt.want {
			t.Errorf("body %q: RetryAfter = %v, want %v", tt.body, e.RetryAfter, tt.want)
		}
	}
}

func TestIsRetryable_Table(t *testing.T) {
	retryable := map[ErrorKind]bool{
		KindNetworkError: true,
		KindServerError:  true,
		KindTimeoutError: true,
		KindRateLimit:    true,
	}

	allKinds := []ErrorKind{
		KindInvalidCredentials, KindNetworkError, KindRateLimit,
		KindSecurityBlock, KindVerificationRequired, KindAccountLocked,
		KindAccountSuspended, KindTwoFactorRequired, KindTwoFactorInvalid,
		KindServerError, KindValidationError, KindTimeoutError,
		KindUnknownError,
	}

	for _, kind := range allKinds {
		got := IsRetryable(&Error{Kind: kind})
		if got != retryable[kind] {
			t.Errorf("IsRetryable(%s) = %v, want %v", kind, got, retryable[kind])
		}
	}

	if IsRetryable(nil) {
		t.Error("IsRetryable(nil) should be false")
	}
}

func TestNeedsAdditionalInput(t *testing.T) {
	if !NeedsAdditionalInput(&Error{Kind: KindTwoFactorRequired}) {
		t.Error("two_factor_required needs input")
	}
	if !NeedsAdditionalInput(&Error{Kind: KindTwoFactorInvalid}) {
		t.Error("two_factor_invalid needs input")
	}
	if NeedsAdditionalInput(&Error{Kind: KindNetworkError}) {
		t.Error("network_error should not need input")
	}
	// Two-factor kinds are never blindly retryable.
	if IsRetryable(&Error{Kind: KindTwoFactorRequired}) {
		t.Error("two_factor_required must not be blindly retryable")
	}
}

func TestIsSessionRejection(t *testing.T) {
	rejecting := map[ErrorKind]bool{
		KindInvalidCredentials:   true,
		KindSecurityBlock:        true,
		KindAccountLocked:        true,
		KindAccountSuspended:     true,
		KindVerificationRequired: true,
		KindTwoFactorRequired:    true,
		KindTwoFactorInvalid:     true,
	}

	allKinds := []ErrorKind{
		KindInvalidCredentials, KindNetworkError, KindRateLimit,
		KindSecurityBlock, KindVerificationRequired, KindAccountLocked,
		KindAccountSuspended, KindTwoFactorRequired, KindTwoFactorInvalid,
		KindServerError, KindValidationError, KindTimeoutError,
		KindUnknownError,
	}

	for _, kind := range allKinds {
		if got := IsSessionRejection(kind); got != rejecting[kind] {
			t.Errorf("IsSessionRejection(%s) = %v, want %v", kind, got, rejecting[kind])
		}
	}
}

func TestClassifyKind_Unknown(t *testing.T) {
	c := ClassifyKind(ErrorKind("made_up"))
	if c.Retryable {
		t.Error("unknown kinds must not be retryable")
	}
}
