package config

import (
	"strings"
	"time"
)

type Config struct {
	Mochi    MochiConfig
	Provider ProviderConfig
	Dedupe   DedupeConfig
	Curate   CurateConfig
	Cache    CacheConfig
	Data     DataConfig
	Log      LogConfig
	HTTP     HTTPConfig
}

type MochiConfig struct {
	APIKey  string
	BaseURL string
}

type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	ChatModel  string
}

type DedupeConfig struct {
	Threshold float64
	Window    int
}

type CurateConfig struct {
	MinScore int
}

type CacheConfig struct {
	Dir string
}

type DataConfig struct {
	Dir string
}

type LogConfig struct {
	Level string
}

type HTTPConfig struct {
	TimeoutSeconds int
}

// Timeout returns the configured HTTP timeout as a duration.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

func defaults() Config {
	return Config{
		Mochi: MochiConfig{
			BaseURL: "https://app.mochi.cards/api",
		},
		Provider: ProviderConfig{
			BaseURL:    "https://openrouter.ai/api/v1",
			EmbedModel: "openai/text-embedding-3-small",
			ChatModel:  "google/gemini-2.5-flash",
		},
		Dedupe: DedupeConfig{
			Threshold: 0.85,
			Window:    10,
		},
		Curate: CurateConfig{
			MinScore: 6,
		},
		Cache: CacheConfig{
			Dir: defaultCacheDir(),
		},
		Data: DataConfig{
			Dir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "warn",
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 30,
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.mochi.app) and secrets
// fall back to macOS Keychain. On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/mochi/config.json and secrets fall back to a 0600
// secrets file under the data dir.
//
// Environment variables override backend values on all platforms. API keys
// are not required to load: commands that need the card service or the
// model provider check for their key and fail with instructions.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// LoadFile reads configuration from an explicit JSON config file instead of
// the platform backend (the --config flag). Environment and secret store
// still apply.
func LoadFile(path string) (Config, error) {
	return loadWith(newFileBackend(path), keychainReader{})
}

// secretService is the secret store service name all secrets live under.
const secretService = "mochi"

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for secrets still empty.
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if v, _ := s.extract(cfg).(string); v != "" {
			continue
		}
		if key, err := kc.Get(secretService, s.account); err == nil && key != "" {
			s.apply(&cfg, key)
		}
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
