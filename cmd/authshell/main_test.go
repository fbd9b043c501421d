package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("AUTHSHELL_CONFIG")
	defer os.Setenv("AUTHSHELL_CONFIG", originalEnv)

	os.Setenv("AUTHSHELL_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
auth_service:
  base_url: "http://127.0.0.1:18620"
  timeout: 5

database:
  path: ""
  wal_mode: true
  busy_timeout: 5

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18610
  timeouts:
    read: 30
    write: 30
    idle: 60
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("AUTHSHELL_CONFIG")
	defer os.Setenv("AUTHSHELL_CONFIG", originalEnv)
	os.Setenv("AUTHSHELL_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("AUTHSHELL_CONFIG")
	defer os.Setenv("AUTHSHELL_CONFIG", originalEnv)

	os.Unsetenv("AUTHSHELL_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("AUTHSHELL_CONFIG")
	defer os.Setenv("AUTHSHELL_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("AUTHSHELL_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupAndShutdown starts the daemon against an unreachable
// upstream and shuts it down via context timeout. Recovery resolves to
// no-session on an empty vault, so the missing upstream is never hit.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
auth_service:
  base_url: "http://127.0.0.1:18620"
  timeout: 5

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18611
  timeouts:
    read: 30
    write: 30
    idle: 60
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("AUTHSHELL_CONFIG")
	defer os.Setenv("AUTHSHELL_CONFIG", originalEnv)
	os.Setenv("AUTHSHELL_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() = %v, want clean shutdown", err)
	}
}
