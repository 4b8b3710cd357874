// Package journal provides the SQLite-backed dispatch journal.
//
// # Overview
//
// Every dispatch outcome is appended as one row: the dispatch identifier,
// resolution reason and category, the serving model, success flag, latency,
// and the full attempt log serialized as JSON. The journal is diagnostic
// storage; writes never fail a dispatch, and read queries back the status
// CLI and the HTTP status endpoint.
//
// The database runs in WAL mode with a single writer connection. Retention
// pruning deletes rows older than a configurable age and is scheduled by
// the supervisor.
package journal
