// Package override provides the persisted manual model override.
//
// # Overview
//
// An override pins dispatch to one model for a limited time. It stays
// active until its TTL elapses (default 24h), it accumulates three
// consecutive dispatch failures, or the user clears it. Expiry and failure
// exhaustion are self-healing: Get performs a clearing write when it
// observes an invalid override, so stale state is never returned and never
// lingers in the state file. Clearing is idempotent.
package override
