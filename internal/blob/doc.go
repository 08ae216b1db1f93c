// ABOUTME: Package blob stores photo bytes outside the workbook
// ABOUTME: Google Cloud Storage in production, memory for tests

// Package blob stores binary attachments. The workbook only ever holds the
// opaque file id returned by Upload.
package blob
