// Package config loads runtime configuration for the jtrack agent.
//
// Sources & precedence
//
//  1. Built-in defaults (see Defaults).
//  2. Optional JSON or YAML file selected with -c/--config or
//     JTRACK_AGENT_CONFIG.
//  3. JTRACK_AGENT_* environment variables, after loading a dotenv file
//     (--env-file, ".env" by default, missing file ignored).
//  4. Command-line flags, only those set explicitly.
//
// # File schema
//
// Intervals use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	server_address: 127.0.0.1:50051
//	token: eyJhbGciOi...
//	user_id: u-42
//	location_id: depot-north
//	role: Technician
//	db_path: jtrack-agent/replica.db
//	sync_interval: 1m
//	online_check_interval: 15s
//	page_size: 500
//	log_level: info
//	log_format: text
//
// An empty token is not an error here; the agent prompts for it.
package config
