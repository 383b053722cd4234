package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // secret store account name, set only when secret
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "mochi.api_key", typ: kString, env: "MOCHI_API_KEY",
		secret: true, account: "mochi_api_key",
		apply:   func(cfg *Config, v any) { cfg.Mochi.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Mochi.APIKey },
	},
	{
		key: "mochi.base_url", typ: kString, env: "MOCHI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Mochi.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Mochi.BaseURL },
	},
	{
		key: "provider.api_key", typ: kString, env: "OPENROUTER_API_KEY",
		secret: true, account: "openrouter_api_key",
		apply:   func(cfg *Config, v any) { cfg.Provider.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.APIKey },
	},
	{
		key: "provider.base_url", typ: kString, env: "OPENROUTER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Provider.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.BaseURL },
	},
	{
		key: "provider.embed_model", typ: kString, env: "MOCHI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Provider.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.EmbedModel },
	},
	{
		key: "provider.chat_model", typ: kString, env: "MOCHI_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Provider.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.ChatModel },
	},
	{
		key: "dedupe.threshold", typ: kFloat, env: "MOCHI_DEDUPE_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Dedupe.Threshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Dedupe.Threshold },
	},
	{
		key: "dedupe.window", typ: kInt, env: "MOCHI_DEDUPE_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.Dedupe.Window = v.(int) },
		extract: func(cfg Config) any { return cfg.Dedupe.Window },
	},
	{
		key: "curate.min_score", typ: kInt, env: "MOCHI_CURATE_MIN_SCORE",
		apply:   func(cfg *Config, v any) { cfg.Curate.MinScore = v.(int) },
		extract: func(cfg Config) any { return cfg.Curate.MinScore },
	},
	{
		key: "cache.dir", typ: kString, env: "MOCHI_CACHE_DIR",
		apply:   func(cfg *Config, v any) { cfg.Cache.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.Dir },
	},
	{
		key: "data.dir", typ: kString, env: "MOCHI_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Data.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Data.Dir },
	},
	{
		key: "log.level", typ: kString, env: "MOCHI_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "http.timeout_seconds", typ: kInt, env: "MOCHI_HTTP_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.HTTP.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.HTTP.TimeoutSeconds },
	},
}

// applyBackend copies non-secret values present in the backend onto cfg.
// Secrets never live in the plain config backend.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
