package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mockKeychain is a test double for the keychain interface, keyed by
// account name.
type mockKeychain struct {
	values map[string]string
	err    error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[account], nil
}

// clearEnv blanks every config env var so values from the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
}

func tempBackend(t *testing.T, content string) ConfigBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return newFileBackend(path)
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(tempBackend(t, `{}`), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mochi.BaseURL != "https://app.mochi.cards/api" {
		t.Errorf("Mochi.BaseURL = %q", cfg.Mochi.BaseURL)
	}
	if cfg.Provider.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("Provider.BaseURL = %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.EmbedModel != "openai/text-embedding-3-small" {
		t.Errorf("Provider.EmbedModel = %q", cfg.Provider.EmbedModel)
	}
	if cfg.Provider.ChatModel != "google/gemini-2.5-flash" {
		t.Errorf("Provider.ChatModel = %q", cfg.Provider.ChatModel)
	}
	if cfg.Dedupe.Threshold != 0.85 {
		t.Errorf("Dedupe.Threshold = %v, want 0.85", cfg.Dedupe.Threshold)
	}
	if cfg.Dedupe.Window != 10 {
		t.Errorf("Dedupe.Window = %d, want 10", cfg.Dedupe.Window)
	}
	if cfg.Curate.MinScore != 6 {
		t.Errorf("Curate.MinScore = %d, want 6", cfg.Curate.MinScore)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.HTTP.TimeoutSeconds != 30 {
		t.Errorf("HTTP.TimeoutSeconds = %d, want 30", cfg.HTTP.TimeoutSeconds)
	}
	if cfg.Mochi.APIKey != "" || cfg.Provider.APIKey != "" {
		t.Error("API keys should stay empty when nothing provides them")
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)

	b := tempBackend(t, `{
		"mochi.base_url": "https://example.test/api",
		"provider.chat_model": "openai/gpt-4o",
		"dedupe.threshold": 0.9,
		"dedupe.window": 25,
		"curate.min_score": 8,
		"http.timeout_seconds": 5,
		"log.level": "debug"
	}`)

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mochi.BaseURL != "https://example.test/api" {
		t.Errorf("Mochi.BaseURL = %q", cfg.Mochi.BaseURL)
	}
	if cfg.Provider.ChatModel != "openai/gpt-4o" {
		t.Errorf("Provider.ChatModel = %q", cfg.Provider.ChatModel)
	}
	if cfg.Dedupe.Threshold != 0.9 {
		t.Errorf("Dedupe.Threshold = %v, want 0.9", cfg.Dedupe.Threshold)
	}
	if cfg.Dedupe.Window != 25 {
		t.Errorf("Dedupe.Window = %d, want 25", cfg.Dedupe.Window)
	}
	if cfg.Curate.MinScore != 8 {
		t.Errorf("Curate.MinScore = %d, want 8", cfg.Curate.MinScore)
	}
	if cfg.HTTP.TimeoutSeconds != 5 {
		t.Errorf("HTTP.TimeoutSeconds = %d, want 5", cfg.HTTP.TimeoutSeconds)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOCHI_BASE_URL", "https://env.test/api")
	t.Setenv("MOCHI_DEDUPE_THRESHOLD", "0.7")
	t.Setenv("MOCHI_CURATE_MIN_SCORE", "9")

	b := tempBackend(t, `{
		"mochi.base_url": "https://file.test/api",
		"dedupe.threshold": 0.95,
		"curate.min_score": 3
	}`)

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mochi.BaseURL != "https://env.test/api" {
		t.Errorf("Mochi.BaseURL = %q, want env value", cfg.Mochi.BaseURL)
	}
	if cfg.Dedupe.Threshold != 0.7 {
		t.Errorf("Dedupe.Threshold = %v, want 0.7", cfg.Dedupe.Threshold)
	}
	if cfg.Curate.MinScore != 9 {
		t.Errorf("Curate.MinScore = %d, want 9", cfg.Curate.MinScore)
	}
}

func TestSecretsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOCHI_API_KEY", "env-mochi-key")
	t.Setenv("OPENROUTER_API_KEY", "env-provider-key")

	cfg, err := loadWith(tempBackend(t, `{}`), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mochi.APIKey != "env-mochi-key" {
		t.Errorf("Mochi.APIKey = %q", cfg.Mochi.APIKey)
	}
	if cfg.Provider.APIKey != "env-provider-key" {
		t.Errorf("Provider.APIKey = %q", cfg.Provider.APIKey)
	}
}

func TestKeychainFallback(t *testing.T) {
	clearEnv(t)

	kc := mockKeychain{values: map[string]string{
		"mochi_api_key":      "kc-mochi-key",
		"openrouter_api_key": "kc-provider-key",
	}}
	cfg, err := loadWith(tempBackend(t, `{}`), kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mochi.APIKey != "kc-mochi-key" {
		t.Errorf("Mochi.APIKey = %q, want keychain value", cfg.Mochi.APIKey)
	}
	if cfg.Provider.APIKey != "kc-provider-key" {
		t.Errorf("Provider.APIKey = %q, want keychain value", cfg.Provider.APIKey)
	}
}

func TestEnvBeatsKeychain(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOCHI_API_KEY", "env-key")

	kc := mockKeychain{values: map[string]string{"mochi_api_key": "kc-key"}}
	cfg, err := loadWith(tempBackend(t, `{}`), kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mochi.APIKey != "env-key" {
		t.Errorf("Mochi.APIKey = %q, want env to win", cfg.Mochi.APIKey)
	}
}

func TestShowAllRedactsSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Mochi.APIKey = "super-secret-value"

	for _, info := range ShowAll(cfg) {
		if strings.Contains(info.Value, "super-secret-value") {
			t.Fatalf("ShowAll leaked a secret: %s = %s", info.Key, info.Value)
		}
		switch info.Key {
		case "mochi.api_key":
			if info.Value != "(set)" {
				t.Errorf("mochi.api_key shown as %q, want (set)", info.Value)
			}
		case "provider.api_key":
			if info.Value != "(unset)" {
				t.Errorf("provider.api_key shown as %q, want (unset)", info.Value)
			}
		}
	}
}

func TestSetKeyRejectsUnknown(t *testing.T) {
	err := SetKey("no.such_key", "value")
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("error = %q", err)
	}
}

func TestSetKeyValidatesNumbers(t *testing.T) {
	if err := SetKey("dedupe.window", "not-a-number"); err == nil {
		t.Error("expected error for bad integer, got nil")
	}
	if err := SetKey("dedupe.threshold", "not-a-number"); err == nil {
		t.Error("expected error for bad float, got nil")
	}
}

func TestValidKeysCoverAllSpecs(t *testing.T) {
	keys := ValidKeys()
	if len(keys) != len(specs) {
		t.Fatalf("ValidKeys returned %d keys, want %d", len(keys), len(specs))
	}
	seen := make(map[string]bool)
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
	if !seen["mochi.api_key"] || !seen["dedupe.threshold"] {
		t.Errorf("expected well-known keys in %v", keys)
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	b := newFileBackend(path)

	if err := b.SetString("mochi.base_url", "https://example.test"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := b.SetInt("dedupe.window", 42); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	// Re-open to prove the values were persisted, not just cached.
	b2 := newFileBackend(path)
	s, ok, err := b2.GetString("mochi.base_url")
	if err != nil || !ok || s != "https://example.test" {
		t.Errorf("GetString = %q, %v, %v", s, ok, err)
	}
	i, ok, err := b2.GetInt("dedupe.window")
	if err != nil || !ok || i != 42 {
		t.Errorf("GetInt = %d, %v, %v", i, ok, err)
	}
	if _, ok, _ := b2.GetString("missing.key"); ok {
		t.Error("GetString reported a missing key as present")
	}
}
