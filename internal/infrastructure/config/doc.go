// Package config loads and validates authshell configuration.
//
// Configuration is read from a YAML file, merged over built-in defaults,
// and finally overridden by AUTHSHELL_* environment variables. The loaded
// Config is treated as immutable for the lifetime of the process.
//
// # Sections
//
//	auth_service:  upstream authentication service endpoint and timeout
//	database:      SQLite session-vault location and pragmas
//	api:           local HTTP surface for the rendering layer
//	websocket:     state-stream settings
//	logging:       level, format, output
//	security:      login cooldown tuning
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
