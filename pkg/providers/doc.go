// Package providers implements the provider invocation capability.
//
// # Overview
//
// An Invoker sends a completion request to one LLM provider and normalizes
// the response and errors. Three wire protocols are supported: the
// OpenAI-compatible chat completions API (also used by aggregators and
// most compatible vendors), the Anthropic messages API, and the Google
// generateContent API. The invoker for a provider is selected by its
// configured type, never by branching on provider name strings.
//
// Credentials are passed per call so the credential pool can rotate keys
// between attempts. Preflight sends a bounded liveness probe (a GET on the
// provider's models endpoint) before the dispatcher commits to a full call.
//
// Errors are typed (AuthError, RateLimitError, TimeoutError, ...) and
// classified via Classify into the health cache's error kinds.
package providers
