// Package sheet is the spreadsheet layer underneath the record store.
//
// # Architecture
//
//   - Backend: the remote document API (list tabs, read/update/append values,
//     structural row delete). Implemented by GoogleBackend (Google Sheets v4),
//     SQLiteBackend (local workbook file) and MemoryBackend (tests).
//   - Instrument: decorator adding a per-call timeout, error classification
//     (ErrRemoteTimeout / ErrRemoteFailure) and call observation for metrics.
//   - Resolver: maps a logical table name and tenant key onto a live tab.
//   - Workbook: reads whole tabs into a Matrix and writes single rows back.
//
// # Tab Resolution
//
// For tenant "smith" and table "People" the resolver tries, in order:
//
//	smith__People
//	People
//
// The default tenant only tries the bare name. Matching is case-insensitive.
//
// # Consistency
//
// Nothing is cached between calls: every Read goes to the backend. Writes
// address rows by position, so callers that mutate must hold the tab's
// writer lock (Workbook.Lock) and re-check the row they are about to
// overwrite. The record store does this for every update and delete.
//
// # Ranges
//
// Range values select whole rows using 1-based sheet row numbers. The header
// is sheet row 1, so data row index i lives at sheet row i+2:
//
//	AllRows()   // A1:ZZ
//	Row(5)      // A5:ZZ5
//
// DeleteRowRange uses the 0-based, half-open indices of the Sheets
// batchUpdate API instead.
package sheet
