package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testYAML = `
providers:
  openai:
    base_url: https://api.openai.com/v1
    models:
      - id: gpt-4o
        capabilities: [coding, research]
      - id: gpt-4o-mini
        capabilities: [fast]
  anthropic:
    base_url: https://api.anthropic.com
    type: anthropic
    models:
      - id: claude-sonnet-4-20250514
        capabilities: [coding, writing]

pools:
  primary:
    - openai/gpt-4o
  secondary:
    - anthropic/claude-sonnet-4-20250514
  emergency:
    - openai/gpt-4o-mini
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEYS", "sk-test-1")

	cfg, err := LoadConfig(writeConfigFile(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if len(cfg.Providers) != 2 {
		t.Errorf("len(Providers) = %d, want 2", len(cfg.Providers))
	}
	if got := cfg.Providers["openai"].Type; got != "openai" {
		t.Errorf("openai type = %q, want default %q", got, "openai")
	}
	if got := cfg.Providers["anthropic"].Type; got != "anthropic" {
		t.Errorf("anthropic type = %q, want %q", got, "anthropic")
	}
	if got := cfg.Dispatch.PreflightTimeout; got != DefaultPreflightTimeout {
		t.Errorf("PreflightTimeout = %v, want %v", got, DefaultPreflightTimeout)
	}
	if got := cfg.Override.DefaultTTL; got != 24*time.Hour {
		t.Errorf("Override.DefaultTTL = %v, want 24h", got)
	}
	if got := cfg.Pools.Primary; len(got) != 1 || got[0] != "openai/gpt-4o" {
		t.Errorf("Pools.Primary = %v", got)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() expected error for missing file")
	}
}

func TestLoadConfig_NoCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEYS", "")
	t.Setenv("ANTHROPIC_API_KEYS", "")

	_, err := LoadConfig(writeConfigFile(t, testYAML))
	if err == nil {
		t.Fatal("LoadConfig() expected validation error with zero credentials")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if !strings.Contains(err.Error(), "no provider credentials") {
		t.Errorf("error = %v, want credential message", err)
	}
}

func TestLoadConfig_EnvCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEYS", "sk-a sk-b,sk-c")
	t.Setenv("ANTHROPIC_API_KEYS", "ak-1")

	cfg, err := LoadConfig(writeConfigFile(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	got := cfg.Providers["openai"].APIKeys
	want := []string{"sk-a", "sk-b", "sk-c"}
	if len(got) != len(want) {
		t.Fatalf("openai keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("openai keys[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if keys := cfg.Providers["anthropic"].APIKeys; len(keys) != 1 || keys[0] != "ak-1" {
		t.Errorf("anthropic keys = %v, want [ak-1]", keys)
	}
}

func TestLoadConfig_CredentialFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEYS", "sk-env")
	t.Setenv("ANTHROPIC_API_KEYS", "")

	credPath := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(credPath, []byte(`{"openai": ["sk-env", "sk-file"], "anthropic": ["ak-file"]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	yaml := testYAML + "\nstate:\n  credential_file: " + credPath + "\n"
	cfg, err := LoadConfig(writeConfigFile(t, yaml))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	// Env key first, file key appended, duplicate dropped.
	got := cfg.Providers["openai"].APIKeys
	if len(got) != 2 || got[0] != "sk-env" || got[1] != "sk-file" {
		t.Errorf("openai keys = %v, want [sk-env sk-file]", got)
	}
	if keys := cfg.Providers["anthropic"].APIKeys; len(keys) != 1 || keys[0] != "ak-file" {
		t.Errorf("anthropic keys = %v, want [ak-file]", keys)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEYS", "sk-test")
	t.Setenv("OPPILOT_SERVER_LISTEN_ADDRESS", "0.0.0.0:9000")
	t.Setenv("OPPILOT_DISPATCH_PREFLIGHT_TIMEOUT", "3s")
	t.Setenv("OPPILOT_DISPATCH_FAILURE_THRESHOLD", "7")
	t.Setenv("OPPILOT_PROVIDERS_OPENAI_BASE_URL", "https://proxy.internal/v1")

	cfg, err := LoadConfigWithEnvOverrides(writeConfigFile(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if got := cfg.Server.ListenAddress; got != "0.0.0.0:9000" {
		t.Errorf("ListenAddress = %q, want override", got)
	}
	if got := cfg.Dispatch.PreflightTimeout; got != 3*time.Second {
		t.Errorf("PreflightTimeout = %v, want 3s", got)
	}
	if got := cfg.Dispatch.FailureThreshold; got != 7 {
		t.Errorf("FailureThreshold = %d, want 7", got)
	}
	if got := cfg.Providers["openai"].BaseURL; got != "https://proxy.internal/v1" {
		t.Errorf("openai base URL = %q, want override", got)
	}
}

func TestParseKeyList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "sk-1", []string{"sk-1"}},
		{"spaces", "sk-1 sk-2", []string{"sk-1", "sk-2"}},
		{"commas", "sk-1,sk-2", []string{"sk-1", "sk-2"}},
		{"mixed", "sk-1, sk-2  sk-3", []string{"sk-1", "sk-2", "sk-3"}},
		{"trailing comma", "sk-1,", []string{"sk-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseKeyList(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseKeyList(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("ParseKeyList(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidate_PoolReferences(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantErr string
	}{
		{"bad format", "gpt-4o", "invalid model reference"},
		{"unknown provider", "mystery/gpt-4o", "unknown provider"},
		{"unknown model", "openai/gpt-99", "does not offer model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Providers: map[string]ProviderConfig{
					"openai": {
						BaseURL: "https://api.openai.com/v1",
						APIKeys: []string{"sk-test"},
						Models:  []ModelConfig{{ID: "gpt-4o"}},
					},
				},
				Pools: PoolsConfig{Primary: []string{tt.ref}},
			}
			ApplyDefaults(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_UnknownProviderType(t *testing.T) {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"weird": {
				BaseURL: "https://example.com",
				Type:    "grpc",
				APIKeys: []string{"k"},
				Models:  []ModelConfig{{ID: "m"}},
			},
		},
		Pools: PoolsConfig{Primary: []string{"weird/m"}},
	}
	ApplyDefaults(cfg)

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "unknown provider type") {
		t.Errorf("Validate() error = %v, want unknown provider type", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Dispatch.RateLimitCooldown != 10*time.Minute {
		t.Errorf("RateLimitCooldown = %v, want 10m", cfg.Dispatch.RateLimitCooldown)
	}
	if cfg.Dispatch.FailureCooldown != 2*time.Minute {
		t.Errorf("FailureCooldown = %v, want 2m", cfg.Dispatch.FailureCooldown)
	}
	if cfg.Dispatch.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.Dispatch.FailureThreshold)
	}
	if cfg.Dispatch.PreflightTimeout != 1500*time.Millisecond {
		t.Errorf("PreflightTimeout = %v, want 1.5s", cfg.Dispatch.PreflightTimeout)
	}
	if cfg.State.Dir == "" {
		t.Error("State.Dir not defaulted")
	}
	if cfg.State.JournalPath != filepath.Join(cfg.State.Dir, "journal.db") {
		t.Errorf("JournalPath = %q", cfg.State.JournalPath)
	}
	if cfg.HealthPath() != filepath.Join(cfg.State.Dir, "health.json") {
		t.Errorf("HealthPath() = %q", cfg.HealthPath())
	}
	if cfg.OverridePath() != filepath.Join(cfg.State.Dir, "override.json") {
		t.Errorf("OverridePath() = %q", cfg.OverridePath())
	}
}
