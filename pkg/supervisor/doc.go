// Package supervisor runs the engine's scheduled background work.
//
// # Overview
//
// Two cron-driven jobs keep the daemon healthy over long runs:
//
//   - warm probes: a lightweight pre-flight against each provider's
//     least-recently-used credential, so the health cache reflects current
//     endpoint reachability instead of going stale between dispatches;
//   - journal pruning: deletes dispatch journal rows older than the
//     configured retention window.
//
// Both schedules come from configuration and accept standard cron
// expressions plus descriptors like "@every 5m". An empty schedule
// disables the corresponding job.
//
// # Usage
//
//	sup := supervisor.New(cfg.Supervisor, supervisor.Deps{
//	    Catalog:  cat,
//	    Pool:     pool,
//	    Health:   cache,
//	    Invokers: invokers,
//	    Journal:  jour,
//	})
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package supervisor
