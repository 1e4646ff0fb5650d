// Package store provides an indexed row store for tabular management
// objects addressed by dotted numeric OIDs.
//
// A Store is built over a loaded schema set and keeps four kinds of state:
//
//   - table instances: dynamically created rows keyed by table OID and
//     instance string
//   - scalar overrides keyed by dotted OID
//   - deletion markers suppressing schema-baseline rows across reloads
//   - operator-created value links
//
// Rows added to a parent table are mirrored into its augmented children
// (tables whose index is inherited from the parent), and cell writes fan
// out across bidirectional value links with a loop-safe in-flight guard.
// Every surviving mutation is persisted synchronously into a single JSON
// state document; legacy split state files are folded in on first load.
//
// All public operations are serialized by a single mutex. Validation runs
// before any mutation, so a failed operation leaves prior state untouched.
package store
