// Package config handles configuration loading for famlink.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FAMLINK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/famlink/famlink.yaml
//  3. ~/.config/famlink/famlink.yaml
//
// Files ending in .toml are decoded as TOML; anything else is YAML. Both
// formats use the same keys.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${FAMLINK_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	  request_timeout: "30s"
//
//	backend:
//	  kind: "google"                # google, sqlite, memory
//	  spreadsheet_id: "1AbC..."
//	  credentials_file: "/etc/famlink/sa.json"
//	  remote_timeout: "10s"
//
//	database:                       # sqlite backend
//	  path: "/var/lib/famlink/workbook.db"
//	  driver: "sqlite"              # sqlite (modernc) or sqlite3 (cgo)
//
//	blob:
//	  kind: "gcs"                   # gcs, memory
//	  bucket: "famlink-photos"
//	  prefix: "photos"
//
//	tailscale:
//	  enabled: false
//	  hostname: "famlink"
//	  auth_key: "${TS_AUTHKEY}"
//
//	cors:
//	  allowed_origins: ["https://family.example.com"]
//
//	logging:
//	  level: "info"                 # debug, info, warn, error
//	  format: "text"                # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Validation
//
// Load applies defaults and then validates:
//
//   - JWT secret minimum length (32 bytes)
//   - backend and blob kinds and their required fields
//   - duration format validity
//   - logging level values
package config
