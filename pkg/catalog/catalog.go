package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oppilot/oppilot/pkg/config"
)

// ErrUnknownModel is returned when a model reference does not resolve to a
// configured provider and model.
var ErrUnknownModel = errors.New("unknown model")

// Tier identifies a failover pool.
type Tier string

// Failover pool tiers in cascade order.
const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierEmergency Tier = "emergency"
)

// Tiers lists the pools in the order the cascade walks them.
var Tiers = []Tier{TierPrimary, TierSecondary, TierEmergency}

// Ref identifies a model as a "provider/model" pair.
type Ref struct {
	// Provider is the provider name, e.g. "openai".
	Provider string

	// Model is the provider-side model identifier, e.g. "gpt-4o".
	Model string
}

// ParseRef parses a "provider/model" reference. The model part may itself
// contain slashes (aggregators namespace their model IDs).
func ParseRef(s string) (Ref, error) {
	provider, model, ok := strings.Cut(s, "/")
	if !ok || provider == "" || model == "" {
		return Ref{}, fmt.Errorf("invalid model reference %q (expected provider/model)", s)
	}
	return Ref{Provider: provider, Model: model}, nil
}

// String returns the "provider/model" form of the reference.
func (r Ref) String() string {
	return r.Provider + "/" + r.Model
}

// Model is a catalog entry for a single model.
type Model struct {
	// Ref identifies the model.
	Ref Ref

	// Capabilities lists the task categories this model serves.
	Capabilities []string
}

// Supports reports whether the model is tagged for the given category.
func (m Model) Supports(category string) bool {
	for _, c := range m.Capabilities {
		if c == category {
			return true
		}
	}
	return false
}

// Provider is a catalog entry for a configured provider.
type Provider struct {
	// Name is the provider name used in references and credentials.
	Name string

	// BaseURL is the API endpoint base URL.
	BaseURL string

	// Type is the wire protocol ("openai", "anthropic", "google").
	Type string

	// CostTier is "free" or "paid".
	CostTier string

	// Language tags a language-specialized provider (e.g. "zh").
	Language string

	// Timeout bounds full completion requests.
	Timeout time.Duration

	// Models lists the provider's catalog entries.
	Models []Model
}

// Catalog resolves model references and assembles failover candidates.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	providers map[string]Provider
	pools     map[Tier][]Ref
}

// New builds a catalog from configuration. Pool references must resolve to
// configured providers and models; config validation guarantees this, so an
// error here indicates the catalog was built from an unvalidated config.
func New(cfg *config.Config) (*Catalog, error) {
	c := &Catalog{
		providers: make(map[string]Provider, len(cfg.Providers)),
		pools:     make(map[Tier][]Ref, len(Tiers)),
	}

	for name, pc := range cfg.Providers {
		p := Provider{
			Name:     name,
			BaseURL:  pc.BaseURL,
			Type:     pc.Type,
			CostTier: pc.CostTier,
			Language: pc.Language,
			Timeout:  pc.Timeout,
			Models:   make([]Model, 0, len(pc.Models)),
		}
		for _, mc := range pc.Models {
			p.Models = append(p.Models, Model{
				Ref:          Ref{Provider: name, Model: mc.ID},
				Capabilities: mc.Capabilities,
			})
		}
		c.providers[name] = p
	}

	entries := map[Tier][]string{
		TierPrimary:   cfg.Pools.Primary,
		TierSecondary: cfg.Pools.Secondary,
		TierEmergency: cfg.Pools.Emergency,
	}
	for tier, raw := range entries {
		refs := make([]Ref, 0, len(raw))
		for _, s := range raw {
			ref, err := ParseRef(s)
			if err != nil {
				return nil, fmt.Errorf("pool %s: %w", tier, err)
			}
			if _, err := c.resolve(ref); err != nil {
				return nil, fmt.Errorf("pool %s: %w", tier, err)
			}
			refs = append(refs, ref)
		}
		c.pools[tier] = refs
	}

	return c, nil
}

// Provider returns the catalog entry for a provider name.
func (c *Catalog) Provider(name string) (Provider, bool) {
	p, ok := c.providers[name]
	return p, ok
}

// Providers returns all catalog providers.
func (c *Catalog) Providers() []Provider {
	out := make([]Provider, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p)
	}
	return out
}

// Model resolves a reference to its catalog entry.
func (c *Catalog) Model(ref Ref) (Model, error) {
	return c.resolve(ref)
}

// Pool returns the references in a tier, in configured order.
func (c *Catalog) Pool(tier Tier) []Ref {
	return c.pools[tier]
}

func (c *Catalog) resolve(ref Ref) (Model, error) {
	p, ok := c.providers[ref.Provider]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, ref)
	}
	for _, m := range p.Models {
		if m.Ref.Model == ref.Model {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, ref)
}
