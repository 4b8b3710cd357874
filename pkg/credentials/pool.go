package credentials

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/oppilot/oppilot/pkg/health"
)

// ErrNotAvailable is returned when a provider has no selectable credential.
var ErrNotAvailable = errors.New("no credential available")

// NotAvailableError reports why a provider has no selectable credential.
// It matches ErrNotAvailable via errors.Is().
type NotAvailableError struct {
	// Provider is the provider that had no credential.
	Provider string

	// CoolingDown is the number of configured credentials excluded by an
	// active cooldown. Zero with a non-available result means the provider
	// has no credentials configured at all.
	CoolingDown int
}

// Error implements the error interface.
func (e *NotAvailableError) Error() string {
	if e.CoolingDown == 0 {
		return fmt.Sprintf("provider %q has no credentials configured", e.Provider)
	}
	return fmt.Sprintf("provider %q has no available credentials (%d cooling down)", e.Provider, e.CoolingDown)
}

// Is implements error matching for errors.Is().
func (e *NotAvailableError) Is(target error) bool {
	return target == ErrNotAvailable
}

// Credential is one API key owned by a provider.
type Credential struct {
	// Provider is the owning provider's name.
	Provider string

	// ID is a short digest of the secret, used as the health cache key.
	ID string

	// Secret is the raw API key.
	Secret string
}

// HealthView is the read side of the health cache consulted during
// selection.
type HealthView interface {
	IsAvailable(provider, credentialID string) bool
	Get(provider, credentialID string) (health.Record, bool)
}

// Pool holds credentials grouped by provider. Safe for concurrent use;
// Replace swaps a provider's credentials wholesale for key rotation.
type Pool struct {
	mu         sync.RWMutex
	byProvider map[string][]Credential
}

// NewPool builds a pool from provider name to raw key lists.
func NewPool(keys map[string][]string) *Pool {
	p := &Pool{byProvider: make(map[string][]Credential, len(keys))}
	for provider, list := range keys {
		p.byProvider[provider] = buildCredentials(provider, list)
	}
	return p
}

// CredentialID returns the non-secret identifier for a raw key.
func CredentialID(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}

func buildCredentials(provider string, secrets []string) []Credential {
	creds := make([]Credential, 0, len(secrets))
	for _, s := range secrets {
		creds = append(creds, Credential{
			Provider: provider,
			ID:       CredentialID(s),
			Secret:   s,
		})
	}
	return creds
}

// NextCredential selects the least-recently-used credential for the
// provider that is not cooling down. Configuration order breaks last-used
// ties, so fresh pools rotate through keys in order. Selection has no side
// effects; the caller reports the outcome to the health cache.
//
// Returns a NotAvailableError when the provider has no credentials or all
// of them are cooling down.
func (p *Pool) NextCredential(provider string, view HealthView) (Credential, error) {
	p.mu.RLock()
	creds := p.byProvider[provider]
	p.mu.RUnlock()

	var (
		best     Credential
		found    bool
		cooling  int
		bestUsed = int64(0)
	)

	for _, c := range creds {
		if !view.IsAvailable(provider, c.ID) {
			cooling++
			continue
		}

		var used int64
		if r, ok := view.Get(provider, c.ID); ok && !r.LastUsed.IsZero() {
			used = r.LastUsed.UnixNano()
		}

		if !found || used < bestUsed {
			best = c
			bestUsed = used
			found = true
		}
	}

	if !found {
		return Credential{}, &NotAvailableError{Provider: provider, CoolingDown: cooling}
	}
	return best, nil
}

// Credentials returns the provider's credentials in configured order.
func (p *Pool) Credentials(provider string) []Credential {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Credential, len(p.byProvider[provider]))
	copy(out, p.byProvider[provider])
	return out
}

// Providers returns the names of providers with at least one credential.
func (p *Pool) Providers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, 0, len(p.byProvider))
	for provider, creds := range p.byProvider {
		if len(creds) > 0 {
			out = append(out, provider)
		}
	}
	return out
}

// Replace swaps in a new key set for the given providers. Providers absent
// from keys keep their current credentials.
func (p *Pool) Replace(keys map[string][]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for provider, list := range keys {
		p.byProvider[provider] = buildCredentials(provider, list)
	}
}
