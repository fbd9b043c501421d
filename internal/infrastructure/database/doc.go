// Package database provides SQLite persistence for the authshell session
// vault.
//
// It wraps database/sql with SQLite-specific setup (WAL mode, busy
// timeout, foreign keys, restrictive file permissions) and a minimal
// embedded-migration runner. Schema files live in the top-level
// migrations/ directory and are registered via database.MigrationsFS.
//
// The vault is a single-writer store: the connection pool is capped at one
// connection, which matches SQLite's locking model and keeps writes
// serialised without app-level locking.
package database
