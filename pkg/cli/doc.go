// Package cli provides shared helpers for the oppilot command line:
// typed command errors, output formatting, and shutdown signal handling.
package cli
