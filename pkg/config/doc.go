// Package config provides configuration loading and validation for Oppilot.
//
// # Overview
//
// Configuration is loaded from a YAML file, with defaults applied for any
// omitted values and validation performed before the config is handed to
// the engine. Environment variables can override file-based settings using
// the OPPILOT_SECTION_FIELD naming convention.
//
// Provider credentials are never required to live in the YAML file: the
// loader also reads <PROVIDER>_API_KEYS environment variables (space- or
// comma-separated for multiple keys) and an optional JSON credential file,
// so secrets can stay out of checked-in configuration.
//
// # Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Loading Sequence
//
//  1. Parse YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
package config
