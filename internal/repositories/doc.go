// Package repositories implements durable [session.Storage] backends.
//
// Key Implementations:
//   - [SQLiteStorage] : session snapshots in the session_snapshots table (default)
//   - [FileStorage] : a 0600 JSON file, for machines without a writable database path
//   - [RedisStorage] : a single redis key, for sharing a session between processes
//
// All backends store exactly one snapshot per slot. [Open] selects a backend from
// the [shared.Config] storage section.
package repositories
