package providers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/oppilot/oppilot/pkg/catalog"
)

// NewInvoker builds the invoker for a catalog provider, selected by its
// configured wire protocol type. A nil client gets a dedicated client with
// the provider's timeout.
func NewInvoker(p catalog.Provider, client *http.Client) (Invoker, error) {
	if client == nil {
		timeout := p.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	switch p.Type {
	case "openai":
		return NewOpenAIInvoker(p.Name, p.BaseURL, client), nil
	case "anthropic":
		return NewAnthropicInvoker(p.Name, p.BaseURL, client), nil
	case "google":
		return NewGoogleInvoker(p.Name, p.BaseURL, client), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %q", p.Type, p.Name)
	}
}

// NewInvokers builds invokers for every provider in the catalog, keyed by
// provider name.
func NewInvokers(cat *catalog.Catalog) (map[string]Invoker, error) {
	invokers := make(map[string]Invoker)
	for _, p := range cat.Providers() {
		inv, err := NewInvoker(p, nil)
		if err != nil {
			return nil, err
		}
		invokers[p.Name] = inv
	}
	return invokers, nil
}
