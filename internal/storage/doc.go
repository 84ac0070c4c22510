// Package storage keeps the lifecycle journal: an append-only record of what
// happened to timers and transitions (ended, cancelled, swept, ...).
//
// The journal is an audit trail. Handles are never restored from it.
//
// Drivers:
//   - "file": JSON Lines, dependency-free
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
package storage
