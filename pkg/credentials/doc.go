// Package credentials provides the per-provider credential pool.
//
// # Overview
//
// The pool groups API keys by provider and selects the least-recently-used
// credential that is not cooling down. Selection is a pure read: the caller
// reports the attempt outcome back to the health cache, which is also where
// last-used ordering comes from. Multiple credentials per provider exist to
// spread rate-limit exposure, so cooldown is tracked per credential rather
// than per provider.
//
// Credentials are identified in health records by a short digest of the
// secret, never the secret itself.
//
// A Watcher can reload the pool from a JSON credential file when it changes
// on disk, so key rotation does not require a restart.
package credentials
