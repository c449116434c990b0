// Package core imports and reconciles registry records from uploaded sheets.
//
// The package holds the domain logic with no transport attached. The HTTP
// server, the CLI and the tests all drive the same [Importer].
//
// # Record kinds
//
// Three kinds are registered at init time with [Register]:
//
//   - entities: upserted by entity_uid, optionally linked to an entity file
//   - affiliations: addresses attributed to an entity, appended to a folder
//   - incidents: dated reports about an address, appended to an incident file
//
// Each [KindDefinition] carries the column layout used by templates and
// exports and the row handler the executor calls.
//
// # Import call
//
// [Importer.Import] takes one [ImportRequest] through these steps:
//
//  1. Request checks: kind, target container, file format. Failures here are
//     request-level and match [ErrInvalidRequest].
//  2. One [Snapshot] of every dictionary and of the known entity ids.
//  3. Rows in file order: validate, resolve the entity reference, write.
//  4. The [ImportResult] with ok, skipped, per-row errors and unknown ids.
//
// A dry run follows the same path with a sink that discards writes, so its
// report matches what a commit would do up to unknown references, which a
// dry run only reports.
//
// # Unknown references
//
// A committing import decides per identifier with a [Policy]: create a
// placeholder entity, point the row at the UNKNOWN sentinel, or skip the
// row. Identifiers without a policy fail their rows.
//
// # Error handling
//
// Technical errors are mapped to coded user messages with [MapError]:
//
//   - DB001-DB008: store constraints and connectivity
//   - IMP001-IMP007: import request and lifecycle
//   - VAL001-VAL004: validation surfaced outside row results
//   - FILE001-FILE005: upload and file structure
//   - RATE001: throttling
package core
