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
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "WORDSYNC_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "anki.host", typ: kString, env: "WORDSYNC_ANKI_HOST",
		apply:   func(cfg *Config, v any) { cfg.Anki.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Anki.Host },
	},
	{
		key: "anki.port", typ: kInt, env: "WORDSYNC_ANKI_PORT",
		apply:   func(cfg *Config, v any) { cfg.Anki.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Anki.Port },
	},
	{
		key: "anki.key", typ: kString, env: "WORDSYNC_ANKI_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Anki.Key = v.(string) },
		extract: func(cfg Config) any { return cfg.Anki.Key },
	},
	{
		key: "anki.deck", typ: kString, env: "WORDSYNC_ANKI_DECK",
		apply:   func(cfg *Config, v any) { cfg.Anki.Deck = v.(string) },
		extract: func(cfg Config) any { return cfg.Anki.Deck },
	},
	{
		key: "anki.note_type", typ: kString, env: "WORDSYNC_ANKI_NOTE_TYPE",
		apply:   func(cfg *Config, v any) { cfg.Anki.NoteType = v.(string) },
		extract: func(cfg Config) any { return cfg.Anki.NoteType },
	},
	{
		key: "anki.tags", typ: kString, env: "WORDSYNC_ANKI_TAGS",
		apply:   func(cfg *Config, v any) { cfg.Anki.Tags = v.(string) },
		extract: func(cfg Config) any { return cfg.Anki.Tags },
	},
	{
		key: "anki.escape_context", typ: kBool, env: "WORDSYNC_ANKI_ESCAPE_CONTEXT",
		apply:   func(cfg *Config, v any) { cfg.Anki.EscapeContext = v.(bool) },
		extract: func(cfg Config) any { return cfg.Anki.EscapeContext },
	},
	{
		key: "anki.escape_trans", typ: kBool, env: "WORDSYNC_ANKI_ESCAPE_TRANS",
		apply:   func(cfg *Config, v any) { cfg.Anki.EscapeTrans = v.(bool) },
		extract: func(cfg Config) any { return cfg.Anki.EscapeTrans },
	},
	{
		key: "anki.escape_note", typ: kBool, env: "WORDSYNC_ANKI_ESCAPE_NOTE",
		apply:   func(cfg *Config, v any) { cfg.Anki.EscapeNote = v.(bool) },
		extract: func(cfg Config) any { return cfg.Anki.EscapeNote },
	},
	{
		key: "anki.sync_server", typ: kBool, env: "WORDSYNC_ANKI_SYNC_SERVER",
		apply:   func(cfg *Config, v any) { cfg.Anki.SyncServer = v.(bool) },
		extract: func(cfg Config) any { return cfg.Anki.SyncServer },
	},
	{
		key: "sync.concurrency", typ: kInt, env: "WORDSYNC_SYNC_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Sync.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Sync.Concurrency },
	},
	{
		key: "sync.bootstrap", typ: kBool, env: "WORDSYNC_SYNC_BOOTSTRAP",
		apply:   func(cfg *Config, v any) { cfg.Sync.Bootstrap = v.(bool) },
		extract: func(cfg Config) any { return cfg.Sync.Bootstrap },
	},
	{
		key: "sync.auto", typ: kBool, env: "WORDSYNC_SYNC_AUTO",
		apply:   func(cfg *Config, v any) { cfg.Sync.Auto = v.(bool) },
		extract: func(cfg Config) any { return cfg.Sync.Auto },
	},
	{
		key: "sync.interval", typ: kString, env: "WORDSYNC_SYNC_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Sync.Interval = v.(string) },
		extract: func(cfg Config) any { return cfg.Sync.Interval },
	},
	{
		key: "enrichment.base_url", typ: kString, env: "WORDSYNC_ENRICHMENT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Enrichment.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Enrichment.BaseURL },
	},
	{
		key: "enrichment.timeout", typ: kString, env: "WORDSYNC_ENRICHMENT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Enrichment.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Enrichment.Timeout },
	},
	{
		key: "storage.data_dir", typ: kString, env: "WORDSYNC_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "WORDSYNC_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

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
		case kBool:
			v, ok, err := b.GetBool(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
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
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
