// ABOUTME: Package family implements the person directory and relationship graph
// ABOUTME: Reconciles parent/child edges and spouse family units on the record store

// Package family implements the person directory and the relationship
// graph on top of records.Store.
//
// # Graph
//
// Relationships are directed parent edges (parent -> child). Family units
// pair two partners and are undirected. Both carry deterministic ids from
// the keys package, so Reconcile can upsert by id and re-running it with
// the same input leaves the graph unchanged.
//
// Reconcile reads both tabs before it mutates anything. A spouse that is
// already paired with someone else is reported as *SpouseUnavailableError
// and no family unit row is touched; edge changes still commit.
//
// # Partial failure
//
// Deletes and upserts within a phase run concurrently with a small limit.
// There is no rollback: failures are collected into the result and
// returned as *BatchError while successful writes stand.
//
// # Legacy columns
//
// Rows are read through column aliases (rel_id, relationship_id, id, ...)
// so older workbooks keep working. Writes target whichever alias the tab
// actually has.
package family
