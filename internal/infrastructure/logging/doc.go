// Package logging provides structured logging for authshell.
//
// It wraps log/slog with consistent defaults: JSON output for production,
// text for development, level-based filtering, and service/version fields
// on every entry.
//
// Never log credentials, session references, or one-time codes. When a
// value must be correlated, log a request ID or a truncated prefix instead.
package logging
