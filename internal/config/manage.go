package config

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
// Secret values are redacted; only their presence is reported.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		value := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret {
			if value == "" {
				value = "(unset)"
			} else {
				value = "(set)"
			}
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  value,
		})
	}
	return result
}

// SetKey persists one config key. Non-secret keys go to the platform
// backend; secrets go to the platform secret store and never touch the
// plain config file.
func SetKey(key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return keychainSet(secretService, s.account, value)
		}
		switch s.typ {
		case kString:
			return newPlatformBackend().SetString(key, value)
		case kInt:
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
			return newPlatformBackend().SetInt(key, i)
		case kFloat:
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				return fmt.Errorf("invalid number value for %s: %w", key, err)
			}
			return newPlatformBackend().SetString(key, value)
		}
	}

	return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(ValidKeys(), ", "))
}

// ValidKeys returns the list of recognized config key names.
func ValidKeys() []string {
	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = s.key
	}
	return keys
}

// MissingKeyError builds the instruction error a command returns when a
// required secret is not configured anywhere.
func MissingKeyError(key string) error {
	for _, s := range specs {
		if s.key == key && s.secret {
			return fmt.Errorf("missing required config: %s. Set it via environment variable %s or `mochi config set %s <value>`%s",
				s.key, s.env, s.key, apiKeyHint(s.account))
		}
	}
	return fmt.Errorf("missing required config: %s", key)
}
