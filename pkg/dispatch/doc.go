// Package dispatch implements the dispatch and failover engine.
//
// # Overview
//
// A Dispatch call resolves which model family to target (manual profile,
// active override, classified free text, or the default fallback), builds
// an ordered candidate list across the primary, secondary, and emergency
// pools, and walks it sequentially until one provider succeeds. Candidates
// are never tried in parallel, so a request costs at most one successful
// paid call; latency is bounded by a short preflight probe per candidate.
//
// Every attempt outcome feeds the health cache: successes update the
// latency average, rate limits start a 10 minute credential cooldown, and
// repeated failures cool the credential briefly to avoid thrashing on a
// broken key. The only terminal failure is ExhaustedError, returned when
// every candidate across all pools has failed or been skipped; per-attempt
// errors are absorbed into the attempt log.
//
// # Precedence
//
// An explicit category from the caller wins and cancels any pinned
// override. Otherwise an active override wins over classification, free
// text is classified, and an empty request falls back to the default
// category. A pinned override leads the candidate list but keeps the
// pools behind it, so a failing pin still falls through to a healthy
// provider.
package dispatch
