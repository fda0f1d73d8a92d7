// Package store provides the SQLite run journal.
//
// The journal is append-only. Each simulation run gets one row in runs and
// then, per Report, rows in:
//   - samples: the published plant state of every tick
//   - alerts: every alert appended to the log, including ones later cleared
//     by an acknowledgement
//   - commands: every operator command with its outcome
//
// The journal is an audit trail, not a restore point: the simulator never
// reads it back.
//
// # Ordering
//
// All queries order by tick then by the per-run alert id or command seq, so
// reads are deterministic regardless of wall time.
//
// # Schema
//
// The schema version lives in PRAGMA user_version. Open applies each newer
// migration in its own transaction and refuses journals from a newer binary.
// Connection settings (WAL, synchronous=NORMAL, a 5s busy timeout, foreign
// keys, immediate transactions) are DSN parameters, so every connection
// go-sqlite3 opens carries them.
package store
