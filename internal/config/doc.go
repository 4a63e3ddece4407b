// Package config provides configuration parsing for Parley projects.
//
// The configuration is stored in parley.yaml at the project root.
// This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	name: support-chat
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	  trustProxyHeaders: true
//	  heartbeatInterval: 25s
//
//	session:
//	  idleTimeout: 5m
//	  maxSessions: 1000
//	  maxSessionsPerIP: 10
//
//	transfer:
//	  enabled: true
//	  dir: ./spool
//	  maxFileSize: 10485760
//
//	metrics:
//	  enabled: true
//	  path: /metrics
//
//	log:
//	  level: info
//	  format: json
//
// Duration fields use Go syntax ("30s", "5m", "1h"). Missing fields
// fall back to defaults, so an empty file is a valid configuration.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    errors.PrintError(err)
//	    os.Exit(1)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
