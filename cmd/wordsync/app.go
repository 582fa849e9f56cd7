package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kalambet/wordsync/internal/ankiconnect"
	"github.com/kalambet/wordsync/internal/bootstrap"
	"github.com/kalambet/wordsync/internal/config"
	"github.com/kalambet/wordsync/internal/enrichment"
	"github.com/kalambet/wordsync/internal/fields"
	"github.com/kalambet/wordsync/internal/notebook"
	"github.com/kalambet/wordsync/internal/schema"
	"github.com/kalambet/wordsync/internal/syncer"
)

// app holds the components shared by serve and the in-process commands.
type app struct {
	cfg      config.Config
	anki     *ankiconnect.Client
	store    *notebook.Store
	fetcher  *enrichment.HTTPFetcher
	enricher *enrichment.Client
	boot     *bootstrap.Bootstrapper
	syncer   *syncer.Orchestrator
}

// newApp wires the components for cfg. Bootstrap progress is written to out.
func newApp(cfg config.Config, out io.Writer) (*app, error) {
	store, err := notebook.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening notebook: %w", err)
	}

	timeout, err := time.ParseDuration(cfg.Enrichment.Timeout)
	if err != nil {
		slog.Warn("invalid enrichment timeout, using default 10s", "value", cfg.Enrichment.Timeout, "error", err)
		timeout = 10 * time.Second
	}
	fetcher := enrichment.NewHTTPFetcher(timeout)
	enricher := enrichment.NewClientWithURL(cfg.Enrichment.BaseURL, fetcher, slog.Default())

	anki := ankiconnect.New(cfg.Anki.Host, cfg.Anki.Port, cfg.Anki.Key)
	session := schema.NewSession(cfg.Anki.NoteType, anki)
	boot := bootstrap.New(anki, session, out)

	orch := syncer.New(anki, enricher, store, session, syncer.Config{
		Deck:     cfg.Anki.Deck,
		NoteType: cfg.Anki.NoteType,
		Tags:     cfg.Anki.Tags,
		Escape: fields.Escape{
			Context:     cfg.Anki.EscapeContext,
			Translation: cfg.Anki.EscapeTrans,
			Note:        cfg.Anki.EscapeNote,
		},
		SyncServer:  cfg.Anki.SyncServer,
		Concurrency: cfg.Sync.Concurrency,
	})
	orch.SetRunRecorder(store)
	orch.SetTemplateUpdater(boot)

	return &app{
		cfg:      cfg,
		anki:     anki,
		store:    store,
		fetcher:  fetcher,
		enricher: enricher,
		boot:     boot,
		syncer:   orch,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// loadApp loads config, installs logging and wires the app.
func loadApp(out io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)
	return newApp(cfg, out)
}
