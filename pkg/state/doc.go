// Package state provides atomic JSON file persistence for engine state.
//
// # Overview
//
// The state package implements the shared persistence primitive used by the
// health cache and the override store. State is written to a temporary file
// in the same directory and renamed over the target, so concurrent readers
// (a CLI invocation racing the background supervisor) never observe a
// half-written file. No advisory locks are used; cross-process safety relies
// entirely on rename-on-write semantics.
//
// # Cold Start
//
// A missing or corrupt state file is never an error on the read path. Load
// reports ErrNotExist or a CorruptStateError so callers can fall back to
// zero-value state, which is exactly the "cold start" behavior the dispatch
// engine requires.
//
// # Usage
//
//	store := state.NewFileStore(filepath.Join(dir, "health.json"))
//
//	var snapshot healthFile
//	err := store.Load(&snapshot)
//	if errors.Is(err, state.ErrNotExist) {
//	    // cold start, use zero value
//	}
//
//	err = store.Save(&snapshot)
package state
