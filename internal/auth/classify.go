package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ServiceFailure is implemented by raw failures from the auth service
// client. The classifier is the only code that inspects it; everything
// downstream sees the closed ErrorKind set.
type ServiceFailure interface {
	error

	// HTTPStatus returns the response status, or 0 when no response was
	// received (transport-level failure).
	HTTPStatus() int

	// ResponseBody returns the raw response body, possibly truncated.
	ResponseBody() string

	// TimedOut reports whether the request exceeded its deadline.
	TimedOut() bool
}

// defaultRetryAfter applies to rate-limit responses that carry no parsable
// "retry in N" hint.
const defaultRetryAfter = 60 * time.Second

// retryAfterPattern matches advisory wait hints like "Try again in 5
// minutes" or "retry in 30 seconds".
var retryAfterPattern = regexp.MustCompile(`(?i)(?:re)?try(?: again)? in (\d+)\s*(minute|min|second|sec)`)

// Classify maps a raw failure into an immutable authentication Error.
//
// It is pure up to the generated timestamp and request ID: the same raw
// error always yields the same Kind. Matching runs in priority order —
// transport failures first, then status-specific rules, then timeout,
// then unknown.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	e := &Error{
		Kind:      KindUnknownError,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: uuid.NewString(),
	}

	var sf ServiceFailure
	if errors.As(err, &sf) {
		classifyServiceFailure(sf, e)
		return e
	}

	// Failures that never reached the client wrapper.
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindTimeoutError
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Kind = KindTimeoutError
	case errors.As(err, &netErr):
		e.Kind = KindNetworkError
	}
	return e
}

// classifyServiceFailure applies the status-code matching rules in
// priority order.
func classifyServiceFailure(sf ServiceFailure, e *Error) {
	if body := sf.ResponseBody(); body != "" {
		e.Message = body
	}

	if sf.TimedOut() {
		e.Kind = KindTimeoutError
		return
	}

	status := sf.HTTPStatus()
	body := strings.ToLower(sf.ResponseBody())

	switch {
	case status == 0:
		// No response received at all.
		e.Kind = KindNetworkError

	case status == http.StatusUnauthorized:
		e.Kind = classifyUnauthorized(body)

	case status == http.StatusForbidden:
		e.Kind = KindSecurityBlock

	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter = parseRetryAfter(body)

	case status == http.StatusLocked:
		if strings.Contains(body, "suspended") {
			e.Kind = KindAccountSuspended
		} else {
			e.Kind = KindAccountLocked
		}

	case status >= 500:
		e.Kind = KindServerError

	default:
		e.Kind = KindUnknownError
	}
}

// classifyUnauthorized splits 401 responses between plain credential
// rejection and second-factor flows based on the response body.
func classifyUnauthorized(body string) ErrorKind {
	if strings.Contains(body, "two-factor") || strings.Contains(body, "two factor") ||
		strings.Contains(body, "two_factor") || strings.Contains(body, "totp") {
		if strings.Contains(body, "invalid") || strings.Contains(body, "incorrect") {
			return KindTwoFactorInvalid
		}
		return KindTwoFactorRequired
	}
	if strings.Contains(body, "verification required") || strings.Contains(body, "verify your") {
		return KindVerificationRequired
	}
	return KindInvalidCredentials
}

// parseRetryAfter extracts a "retry in N minutes/seconds" hint from a
// rate-limit message. Defaults to 60s when no hint is present.
func parseRetryAfter(body string) time.Duration {
	m := retryAfterPattern.FindStringSubmatch(body)
	if m == nil {
		return defaultRetryAfter
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return defaultRetryAfter
	}

	if strings.HasPrefix(m[2], "min") {
		return time.Duration(n) * time.Minute
	}
	return time.Duration(n) * time.Second
}

// Classification describes how callers should react to an ErrorKind.
type Classification struct {
	// Category groups kinds for presentation.
	Category string

	// Retryable means the same request may be resubmitted unchanged.
	Retryable bool

	// NeedsInput means retry is permitted only after collecting additional
	// input (a second-factor code); blind resubmission is not.
	NeedsInput bool

	// SupportContact suggests surfacing a support link alongside the error.
	SupportContact bool
}

// classifications is the single source of truth for retry policy.
// IsRetryable and NeedsAdditionalInput project this table and must not
// special-case beyond it.
var classifications = map[ErrorKind]Classification{
	KindInvalidCredentials:   {Category: "credentials", Retryable: false},
	KindNetworkError:         {Category: "transient", Retryable: true},
	KindRateLimit:            {Category: "transient", Retryable: true},
	KindSecurityBlock:        {Category: "blocked", Retryable: false, SupportContact: true},
	KindVerificationRequired: {Category: "account", Retryable: false},
	KindAccountLocked:        {Category: "blocked", Retryable: false, SupportContact: true},
	KindAccountSuspended:     {Category: "blocked", Retryable: false, SupportContact: true},
	KindTwoFactorRequired:    {Category: "second_factor", Retryable: false, NeedsInput: true},
	KindTwoFactorInvalid:     {Category: "second_factor", Retryable: false, NeedsInput: true},
	KindServerError:          {Category: "transient", Retryable: true},
	KindValidationError:      {Category: "input", Retryable: false},
	KindTimeoutError:         {Category: "transient", Retryable: true},
	KindUnknownError:         {Category: "unknown", Retryable: false, SupportContact: true},
}

// ClassifyKind returns the reaction policy for an error kind.
// Unknown kinds map to the unknown_error policy.
func ClassifyKind(kind ErrorKind) Classification {
	if c, ok := classifications[kind]; ok {
		return c
	}
	return classifications[KindUnknownError]
}

// IsRetryable reports whether the error may be resubmitted unchanged.
func IsRetryable(e *Error) bool {
	if e == nil {
		return false
	}
	return ClassifyKind(e.Kind).Retryable
}

// NeedsAdditionalInput reports whether retry requires collecting more
// input first (second-factor flows).
func NeedsAdditionalInput(e *Error) bool {
	if e == nil {
		return false
	}
	return ClassifyKind(e.Kind).NeedsInput
}

// IsSessionRejection reports whether the kind means the backend examined
// the credentials or session and definitively rejected them, as opposed
// to being unable to answer at all. Only rejections justify discarding a
// persisted session reference.
func IsSessionRejection(kind ErrorKind) bool {
	switch kind {
	case KindInvalidCredentials, KindSecurityBlock,
		KindAccountLocked, KindAccountSuspended,
		KindVerificationRequired, KindTwoFactorRequired,
		KindTwoFactorInvalid:
		return true
	}
	return false
}
