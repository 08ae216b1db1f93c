// ABOUTME: Package metrics exposes Prometheus collectors for the server
// ABOUTME: Backend call latency, HTTP traffic and reconcile outcomes

// Package metrics owns a private Prometheus registry. Registry.Observer
// plugs into sheet.Instrument, Registry.Middleware wraps the chi router and
// Registry.Handler serves the scrape endpoint.
package metrics
