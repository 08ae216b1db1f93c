// ABOUTME: Package keys derives deterministic record identifiers
// ABOUTME: Content-addressed ids for edges and family units, slug ids for people

// Package keys derives the identifiers the graph engine and person
// directory write into the workbook.
//
// Relationship edges and family units are content addressed: the id is a
// SHA-256 over a domain-separated, NFC-normalized, NUL-joined canonical
// tuple, so resubmitting the same logical edge always targets the same row.
// Family unit ids sort the partner pair first, making argument order
// irrelevant.
//
// Person ids are human readable (YYYYMMDD-name-slug). Attribute ids are
// random.
package keys
