// Package server exposes the dispatch engine over HTTP.
//
// # Overview
//
// The server is a thin translation layer: it parses an OpenAI-style chat
// completion request, hands it to the dispatch engine, and renders the
// winning provider response back in OpenAI wire format. Model selection,
// failover, and health accounting all live in the engine; the server only
// maps HTTP to engine calls.
//
// # Routes
//
//   - POST /v1/chat/completions - dispatch a completion
//   - GET  /healthz             - liveness probe (always 200 once serving)
//   - GET  /v1/status           - override, credential health, and journal stats
//   - GET  <metrics path>       - Prometheus metrics, when enabled
//
// # Usage
//
//	srv := server.New(cfg.Server, engine, server.Options{
//	    Journal: jour,
//	    Metrics: metricsHandler,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until the context is cancelled or a SIGTERM/SIGINT arrives,
// then drains in-flight requests within the configured shutdown timeout.
package server
