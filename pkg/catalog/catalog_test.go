package catalog

import (
	"errors"
	"testing"

	"github.com/oppilot/oppilot/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai": {
				BaseURL: "https://api.openai.com/v1",
				Type:    "openai",
				Models: []config.ModelConfig{
					{ID: "gpt-4o", Capabilities: []string{"coding", "research"}},
					{ID: "gpt-4o-mini", Capabilities: []string{"fast"}},
				},
			},
			"anthropic": {
				BaseURL: "https://api.anthropic.com",
				Type:    "anthropic",
				Models: []config.ModelConfig{
					{ID: "claude-sonnet-4-20250514", Capabilities: []string{"coding", "writing"}},
				},
			},
			"openrouter": {
				BaseURL: "https://openrouter.ai/api/v1",
				Type:    "openai",
				Models: []config.ModelConfig{
					{ID: "meta-llama/llama-3.3-70b-instruct", Capabilities: []string{"default"}},
				},
			},
		},
		Pools: config.PoolsConfig{
			Primary:   []string{"openai/gpt-4o"},
			Secondary: []string{"anthropic/claude-sonnet-4-20250514", "openai/gpt-4o-mini"},
			Emergency: []string{"openrouter/meta-llama/llama-3.3-70b-instruct"},
		},
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Ref
		wantErr bool
	}{
		{"simple", "openai/gpt-4o", Ref{"openai", "gpt-4o"}, false},
		{"nested model id", "openrouter/meta-llama/llama-3.3-70b-instruct", Ref{"openrouter", "meta-llama/llama-3.3-70b-instruct"}, false},
		{"no slash", "gpt-4o", Ref{}, true},
		{"empty provider", "/gpt-4o", Ref{}, true},
		{"empty model", "openai/", Ref{}, true},
		{"empty", "", Ref{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRef(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRef(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRef(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRef_String(t *testing.T) {
	ref := Ref{Provider: "openai", Model: "gpt-4o"}
	if got := ref.String(); got != "openai/gpt-4o" {
		t.Errorf("String() = %q", got)
	}
}

func TestNew_ResolvesPools(t *testing.T) {
	cat, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := cat.Pool(TierPrimary); len(got) != 1 || got[0].String() != "openai/gpt-4o" {
		t.Errorf("Pool(primary) = %v", got)
	}
	if got := cat.Pool(TierSecondary); len(got) != 2 {
		t.Errorf("Pool(secondary) = %v", got)
	}

	p, ok := cat.Provider("anthropic")
	if !ok {
		t.Fatal("Provider(anthropic) not found")
	}
	if p.Type != "anthropic" {
		t.Errorf("provider type = %q", p.Type)
	}
}

func TestNew_UnknownPoolEntry(t *testing.T) {
	cfg := testConfig()
	cfg.Pools.Primary = append(cfg.Pools.Primary, "missing/model-x")

	_, err := New(cfg)
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("New() error = %v, want ErrUnknownModel", err)
	}
}

func TestCatalog_Model(t *testing.T) {
	cat, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	m, err := cat.Model(Ref{Provider: "openai", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}
	if !m.Supports("coding") {
		t.Error("gpt-4o should support coding")
	}
	if m.Supports("fast") {
		t.Error("gpt-4o should not support fast")
	}

	if _, err := cat.Model(Ref{Provider: "openai", Model: "nope"}); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Model() error = %v, want ErrUnknownModel", err)
	}
}

func TestTiers_Order(t *testing.T) {
	want := []Tier{TierPrimary, TierSecondary, TierEmergency}
	if len(Tiers) != len(want) {
		t.Fatalf("Tiers = %v", Tiers)
	}
	for i := range want {
		if Tiers[i] != want[i] {
			t.Errorf("Tiers[%d] = %v, want %v", i, Tiers[i], want[i])
		}
	}
}
