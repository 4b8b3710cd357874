// Package catalog provides the model catalog built from configuration.
//
// # Overview
//
// The catalog resolves "provider/model" references into provider and model
// metadata and exposes the three failover pools (primary, secondary,
// emergency) in configured order. Candidate assembly, capability filtering,
// and health-based ordering live in the dispatch engine; the catalog only
// answers what exists and in which tier.
//
// # Usage
//
//	cat, err := catalog.New(cfg)
//	if err != nil {
//	    return err
//	}
//	refs := cat.Pool(catalog.TierPrimary)
package catalog
