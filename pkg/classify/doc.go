// Package classify provides task category classification for dispatch.
//
// # Overview
//
// Classification maps a free-text task description to a task category via
// weighted keyword matching. Keyword tables cover English and Chinese
// phrases; matching is case-insensitive substring search, so the classifier
// is deterministic and side-effect free. Scores are summed per category and
// ties are broken by a fixed priority order. Empty input or no match yields
// CategoryDefault.
//
// This is a best-effort heuristic: it decides which pool to try first, and
// the failover cascade corrects for misclassification.
package classify
