// Package config loads runtime configuration for the tokenkeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "5m" or integer
// nanoseconds:
//
//	{
//	  "server_url": "https://api.example.com",
//	  "store_backend": "sqlite",
//	  "db_path": "tokenkeeper.db",
//	  "refresh_threshold": "5m",
//	  "request_timeout": "15s",
//	  "graceful_paths": ["/equipment-types", "/document-types"],
//	  "log_format": "zerolog"
//	}
//
// The graceful paths are the allow-list of endpoint fragments for which an
// unrecoverable 401 is reported to the caller instead of ending the session.
package config
