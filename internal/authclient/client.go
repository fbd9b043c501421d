package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/halcyonhq/authshell/internal/auth"
	"github.com/halcyonhq/authshell/internal/infrastructure/logging"
)

// maxErrorBodySize caps how much of an upstream error body is retained for
// classification.
const maxErrorBodySize = 4 * 1024

// ServiceError is a raw failure from the auth service. It satisfies
// auth.ServiceFailure; only the classifier inspects it.
type ServiceError struct {
	// Status is the HTTP status, or 0 when no response was received.
	Status int

	// Body is the (truncated) response body, or the transport error text.
	Body string

	// IsTimeout marks requests that exceeded their deadline.
	IsTimeout bool
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("auth service unreachable: %s", e.Body)
	}
	return fmt.Sprintf("auth service returned %d: %s", e.Status, e.Body)
}

// HTTPStatus implements auth.ServiceFailure.
func (e *ServiceError) HTTPStatus() int { return e.Status }

// ResponseBody implements auth.ServiceFailure.
func (e *ServiceError) ResponseBody() string { return e.Body }

// TimedOut implements auth.ServiceFailure.
func (e *ServiceError) TimedOut() bool { return e.IsTimeout }

// Client talks to the external authentication service. It implements
// auth.Service. All failures are returned as *ServiceError so the
// classifier has status and body to work with; raw transport errors never
// escape this package.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// New creates a Client for the service at baseURL.
func New(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "authclient"),
	}
}

// loginResponse is the wire shape of a successful login.
type loginResponse struct {
	User             *auth.User `json:"user"`
	SessionReference string     `json:"session_reference"`
}

// Login implements auth.Service.
func (c *Client) Login(ctx context.Context, creds auth.LoginCredentials) (*auth.User, string, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, "", fmt.Errorf("encoding credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	var result loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "", fmt.Errorf("decoding login response: %w", err)
	}
	if result.User == nil || result.SessionReference == "" {
		return nil, "", fmt.Errorf("login response missing user or session reference")
	}
	return result.User, result.SessionReference, nil
}

// CurrentUser implements auth.Service ("who am I").
func (c *Client) CurrentUser(ctx context.Context, ref string) (*auth.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("building whoami request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ref)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	var user auth.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding whoami response: %w", err)
	}
	return &user, nil
}

// Logout implements auth.Service.
func (c *Client) Logout(ctx context.Context, ref string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/auth/logout", nil)
	if err != nil {
		return fmt.Errorf("building logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ref)

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close() //nolint:errcheck // no body expected
	return nil
}

// do executes the request and shapes every failure into *ServiceError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, shapeTransportError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize)) //nolint:errcheck // best-effort body capture
	resp.Body.Close()                                                  //nolint:errcheck // already failing

	c.logger.Debug("auth service error response",
		"status", resp.StatusCode,
		"path", req.URL.Path,
	)

	return nil, &ServiceError{
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

// shapeTransportError converts request-level failures (no response
// received) into *ServiceError with the timeout flag set where the
// transport says so.
func shapeTransportError(err error) *ServiceError {
	se := &ServiceError{Body: err.Error()}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		se.IsTimeout = true
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		se.IsTimeout = true
		return se
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		se.IsTimeout = true
	}
	return se
}
