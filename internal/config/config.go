package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Anki       AnkiConfig
	Sync       SyncConfig
	Enrichment EnrichmentConfig
	Storage    StorageConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
}

// AnkiConfig addresses the AnkiConnect server and the deck/note type notes
// are written to.
type AnkiConfig struct {
	Host          string
	Port          int
	Key           string
	Deck          string
	NoteType      string
	Tags          string
	EscapeContext bool
	EscapeTrans   bool
	EscapeNote    bool
	SyncServer    bool
}

type SyncConfig struct {
	Concurrency int
	Bootstrap   bool
	// Auto makes the server sync newly captured words on its own, polling
	// the notebook every Interval.
	Auto     bool
	Interval string
}

type EnrichmentConfig struct {
	BaseURL string
	Timeout string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Anki: AnkiConfig{
			Host:          "127.0.0.1",
			Port:          8765,
			Deck:          "英语",
			NoteType:      "单词",
			EscapeContext: true,
			EscapeTrans:   true,
			EscapeNote:    true,
		},
		Sync: SyncConfig{
			Concurrency: 4,
			Bootstrap:   true,
			Interval:    "30s",
		},
		Enrichment: EnrichmentConfig{
			BaseURL: "https://dict.youdao.com/w/",
			Timeout: "10s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.wordsync.app) and the
// AnkiConnect key falls back to the macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/wordsync/config.json
// and the key falls back to $XDG_DATA_HOME/wordsync/secrets.json.
//
// Environment variables (WORDSYNC_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret store reads for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// The AnkiConnect key is optional; only servers with apiKey set need it.
	if cfg.Anki.Key == "" {
		if key, err := kc.Get(secretService, ankiKeyAccount); err == nil && key != "" {
			cfg.Anki.Key = key
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Anki.Port < 1 || c.Anki.Port > 65535 {
		return fmt.Errorf("invalid config: anki.port %d out of range", c.Anki.Port)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Anki.Deck) == "" {
		return fmt.Errorf("invalid config: anki.deck must not be empty")
	}
	if strings.TrimSpace(c.Anki.NoteType) == "" {
		return fmt.Errorf("invalid config: anki.note_type must not be empty")
	}
	if c.Sync.Concurrency < 1 || c.Sync.Concurrency > 8 {
		return fmt.Errorf("invalid config: sync.concurrency must be between 1 and 8, got %d", c.Sync.Concurrency)
	}
	if d, err := time.ParseDuration(c.Sync.Interval); err != nil || d <= 0 {
		return fmt.Errorf("invalid config: sync.interval must be a positive duration, got %q", c.Sync.Interval)
	}
	return nil
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
