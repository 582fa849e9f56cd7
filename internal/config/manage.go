package config

import (
	"fmt"
	"strconv"
)

// KeyInfo is one row of `wordsync config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists the effective value of every non-secret key in table order.
func ShowAll(cfg Config) []KeyInfo {
	rows := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		if s.secret {
			continue
		}
		rows = append(rows, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.extract(cfg))})
	}
	return rows
}

// ValidKeys lists the keys accepted by SetKey and UnsetKey.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// SetKey parses value according to the key's type and persists it.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), key, value)
}

// UnsetKey drops a persisted value so the default (or env override) applies.
func UnsetKey(key string) error {
	s, err := writableSpec(key)
	if err != nil {
		return err
	}
	return newPlatformBackend().Delete(s.key)
}

func setKeyWith(b ConfigBackend, key, value string) error {
	s, err := writableSpec(key)
	if err != nil {
		return err
	}
	switch s.typ {
	case kInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s expects an integer: %w", key, err)
		}
		return b.SetInt(key, n)
	case kBool:
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s expects true or false: %w", key, err)
		}
		return b.SetBool(key, on)
	default:
		return b.SetString(key, value)
	}
}

// writableSpec resolves a key that may be stored in the backend. Secrets
// such as anki.key only come from the environment.
func writableSpec(key string) (keySpec, error) {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return keySpec{}, fmt.Errorf("%s is secret; set it with %s instead", key, s.env)
		}
		return s, nil
	}
	return keySpec{}, fmt.Errorf("unknown config key %q", key)
}
