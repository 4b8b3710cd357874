// Oppilot is a dispatch and failover engine for LLM API traffic.
//
// It classifies a task, picks the best-suited model from configured
// provider pools, and cascades through fallbacks when providers fail,
// rate-limit, or time out:
//   - Weighted keyword task classification (English and Chinese)
//   - Manual override pinning with TTL and failure budget
//   - Credential rotation with per-key health tracking and cooldowns
//   - Primary, secondary, and emergency provider pools
//   - SQLite dispatch journal and Prometheus metrics
//
// Usage:
//
//	# Dispatch a task from the command line
//	oppilot dispatch "write a quicksort in rust"
//
//	# Force a task profile
//	oppilot dispatch --profile fast "what time is it in UTC"
//
//	# Pin every dispatch to one model for a day
//	oppilot override set anthropic/claude-sonnet-4-5 --ttl 24h
//
//	# Start the HTTP daemon
//	oppilot run --config /etc/oppilot/config.yaml
//
//	# Inspect credential health and the active override
//	oppilot status
package main

func main() {
	Execute()
}
