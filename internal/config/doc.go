// Package config handles configuration loading for coven-mailbox.
//
// # Configuration File
//
// The server reads one file, located by (in order):
//
//  1. Path from COVEN_MAILBOX_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/mailbox.yaml
//  3. ~/.config/coven/mailbox.yaml
//
// Files ending in .toml are decoded as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${COVEN_MAILBOX_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Example
//
//	server:
//	  http_addr: "localhost:8470"
//	  socket_path: "/run/coven/mailbox.sock"
//
//	mailbox:
//	  capacity: 64
//	  visibility: "unread_only"   # or include_read
//	  reject_unknown_recipients: false
//
//	identity:
//	  source: "system"            # static, system, sqlite
//	  cache_ttl: "5m"
//	  cache_size: 1024
//	  users:                      # static only
//	    - uid: 1000
//	      name: "alice"
//
//	database:
//	  path: "/var/lib/coven/mailbox.db"
//
//	auth:
//	  jwt_secret: "${COVEN_MAILBOX_JWT_SECRET}"
//	  token_ttl: "720h"
//
//	logging:
//	  level: "info"               # debug, info, warn, error
//	  format: "text"              # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Duration values use time.ParseDuration syntax.
package config
