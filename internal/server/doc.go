// Package server assembles and runs the famlink HTTP server.
//
// New builds the workbook backend selected by backend.kind (Google Sheets,
// a SQLite workbook file or an in-memory grid), wraps it with per-call
// timeouts and metrics, picks the photo store, and mounts the API router.
// Run listens on server.http_addr, or on the tailnet when tailscale is
// enabled, and shuts down gracefully when its context is canceled.
package server
