//go:build !darwin

package config

import (
	"os"
	"path/filepath"
)

// xdgDir returns $<env>/wordsync, falling back to ~/<fallback>/wordsync and
// then to local, for a missing home directory.
func xdgDir(env, fallback, local string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return local
		}
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(dir, "wordsync")
}

func defaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"), "wordsync-data")
}

func configFilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config", "wordsync"), "config.json")
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}
