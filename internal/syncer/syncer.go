// Package syncer pushes captured words into Anki, creating a note for every
// word that does not have one yet.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/wordsync/internal/ankiconnect"
	"github.com/kalambet/wordsync/internal/enrichment"
	"github.com/kalambet/wordsync/internal/fields"
	"github.com/kalambet/wordsync/internal/notebook"
	"github.com/kalambet/wordsync/internal/schema"
)

const (
	DefaultConcurrency = 4
	MaxConcurrency     = 8

	// audioSkipHash is the MD5 of the placeholder clip the dictionary serves
	// for words it has no recording of; AnkiConnect drops matching downloads.
	audioSkipHash = "7e2c2f954ef6051373ba916f000168dc"
)

// ErrNotEnriched is returned by AddWord when no dictionary data exists for
// the word. No note is created in that case.
var ErrNotEnriched = errors.New("no enrichment for word")

// Anki is the subset of the AnkiConnect client the orchestrator needs.
type Anki interface {
	Version(ctx context.Context) (int, error)
	FindNotes(ctx context.Context, query string) ([]int64, error)
	AddNote(ctx context.Context, n ankiconnect.Note) (int64, error)
	UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error
	Sync(ctx context.Context) error
}

// Enricher looks up dictionary data for a headword.
type Enricher interface {
	Lookup(ctx context.Context, headword string) (*enrichment.Result, error)
}

// Notebook supplies the full set of captured words for a forced reload.
type Notebook interface {
	GetAllCapturedWords(ctx context.Context) ([]notebook.Word, error)
}

// RunRecorder persists a summary of each sync pass.
type RunRecorder interface {
	SaveSyncRun(ctx context.Context, r notebook.SyncRun) error
}

// TemplateUpdater rewrites the card templates when field names change.
type TemplateUpdater interface {
	UpdateTemplates(ctx context.Context, noteType string, f schema.Fields) error
}

// Config holds the per-deployment sync settings.
type Config struct {
	Deck        string
	NoteType    string
	Tags        string
	Escape      fields.Escape
	SyncServer  bool
	Concurrency int
}

// Options modifies a single Sync call.
type Options struct {
	// ForceReload replaces the given words with every captured word.
	ForceReload bool
}

// Report summarizes one sync pass.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Created    int       `json:"created"`
	Existing   int       `json:"existing"`
	Unenriched int       `json:"unenriched"`
	Failed     int       `json:"failed"`
}

// Orchestrator decides, per word, between skipping and creating a note.
type Orchestrator struct {
	anki      Anki
	enricher  Enricher
	notebook  Notebook
	session   *schema.Session
	cfg       Config
	runs      RunRecorder
	templates TemplateUpdater
	logger    *slog.Logger

	// mu serializes Sync calls.
	mu sync.Mutex
}

// New creates an Orchestrator. The field session is owned by the
// orchestrator and refreshed at the start of every pass.
func New(anki Anki, enricher Enricher, nb Notebook, session *schema.Session, cfg Config) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency > MaxConcurrency {
		cfg.Concurrency = MaxConcurrency
	}
	return &Orchestrator{
		anki:     anki,
		enricher: enricher,
		notebook: nb,
		session:  session,
		cfg:      cfg,
		logger:   slog.Default().With("component", "syncer"),
	}
}

// SetRunRecorder enables persisting a SyncRun after each pass.
func (o *Orchestrator) SetRunRecorder(r RunRecorder) {
	o.runs = r
}

// SetTemplateUpdater enables template regeneration when the resolved field
// names change between passes.
func (o *Orchestrator) SetTemplateUpdater(t TemplateUpdater) {
	o.templates = t
}

type wordKey struct {
	date int64
	text string
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeExisting
	outcomeUnenriched
	outcomeFailed
)

// Sync creates notes for every word that has none. Words whose note lookup
// finds an existing note are skipped; words without dictionary data are
// skipped silently. Failures to create a note do not stop the other words
// and are returned together as an *AddFailedError once the pass ends.
func (o *Orchestrator) Sync(ctx context.Context, words []notebook.Word, opts Options) (Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	report := Report{RunID: uuid.New().String(), StartedAt: time.Now().UTC()}

	if _, err := o.anki.Version(ctx); err != nil {
		if !errors.Is(err, ankiconnect.ErrUnreachable) {
			err = fmt.Errorf("%w: %w", ankiconnect.ErrUnreachable, err)
		}
		return report, fmt.Errorf("checking server: %w", err)
	}

	if opts.ForceReload {
		all, err := o.notebook.GetAllCapturedWords(ctx)
		if err != nil {
			return report, fmt.Errorf("loading notebook: %w", err)
		}
		words = all
	}

	words = uniqueWords(words)
	report.Total = len(words)
	if len(words) == 0 {
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	o.refreshFields(ctx)

	existing := o.lookupAll(ctx, words)

	outcomes := make([]outcome, len(words))
	errs := make([]error, len(words))

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, w := range words {
		if existing[wordKey{w.Date, w.Text}] {
			outcomes[i] = outcomeExisting
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i], errs[i] = outcomeFailed, err
				return nil
			}
			_, err := o.AddWord(ctx, w)
			switch {
			case err == nil:
				outcomes[i] = outcomeCreated
			case errors.Is(err, ErrNotEnriched):
				o.logger.Debug("no enrichment, skipping", "word", w.Text)
				outcomes[i] = outcomeUnenriched
			default:
				o.logger.Debug("add failed", "word", w.Text, "error", err)
				outcomes[i], errs[i] = outcomeFailed, err
			}
			return nil
		})
	}
	_ = g.Wait()

	var failures []WordFailure
	for i, oc := range outcomes {
		switch oc {
		case outcomeCreated:
			report.Created++
		case outcomeExisting:
			report.Existing++
		case outcomeUnenriched:
			report.Unenriched++
		case outcomeFailed:
			report.Failed++
			failures = append(failures, WordFailure{Word: words[i], Err: errs[i]})
		}
	}

	if o.cfg.SyncServer {
		if err := o.anki.Sync(ctx); err != nil {
			o.logger.Warn("cloud sync failed", "error", err)
		}
	}

	report.FinishedAt = time.Now().UTC()

	var err error
	if len(failures) > 0 {
		err = &AddFailedError{Failures: failures, Total: report.Total}
	}
	o.recordRun(ctx, report, err)

	o.logger.Info("sync complete",
		"run_id", report.RunID,
		"total", report.Total,
		"created", report.Created,
		"existing", report.Existing,
		"unenriched", report.Unenriched,
		"failed", report.Failed,
	)
	return report, err
}

// lookupAll finds the existing note of every word. Lookups finish before
// any note is created, so the answer does not depend on creation order.
func (o *Orchestrator) lookupAll(ctx context.Context, words []notebook.Word) map[wordKey]bool {
	var (
		mu    sync.Mutex
		found = make(map[wordKey]bool)
	)

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for _, w := range words {
		g.Go(func() error {
			if o.hasNote(ctx, w) {
				mu.Lock()
				found[wordKey{w.Date, w.Text}] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return found
}

// hasNote reports whether a note exists for w. Identity is the capture date
// together with the headword, so words sharing a timestamp each get a note
// whether they arrive in one pass or several. Lookup errors fail open.
func (o *Orchestrator) hasNote(ctx context.Context, w notebook.Word) bool {
	f := o.session.Fields(ctx)
	query := fmt.Sprintf("%s %s:%d %s", deckTerm(o.cfg.Deck), f.Name(schema.Date), w.Date, fieldTerm(f.Name(schema.Text), w.Text))

	ids, err := o.anki.FindNotes(ctx, query)
	if err != nil {
		o.logger.Debug("note lookup failed", "query", query, "error", err)
		return false
	}
	return len(ids) > 0
}

func (o *Orchestrator) refreshFields(ctx context.Context) {
	f, changed := o.session.Refresh(ctx)
	if !changed || o.templates == nil {
		return
	}
	if err := o.templates.UpdateTemplates(ctx, o.cfg.NoteType, f); err != nil {
		o.logger.Warn("template update failed", "note_type", o.cfg.NoteType, "error", err)
	}
}

func (o *Orchestrator) recordRun(ctx context.Context, r Report, runErr error) {
	if o.runs == nil {
		return
	}
	run := notebook.SyncRun{
		ID:         r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Total:      r.Total,
		Created:    r.Created,
		Existing:   r.Existing,
		Unenriched: r.Unenriched,
		Failed:     r.Failed,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := o.runs.SaveSyncRun(ctx, run); err != nil {
		o.logger.Warn("saving sync run failed", "run_id", r.RunID, "error", err)
	}
}

// FindNote returns the id of the note captured at date, if any. Lookup
// errors are logged and reported as not found, so a failing query can lead
// to a duplicate note rather than a skipped word.
func (o *Orchestrator) FindNote(ctx context.Context, date int64) (int64, bool) {
	f := o.session.Fields(ctx)
	query := fmt.Sprintf("%s %s:%d", deckTerm(o.cfg.Deck), f.Name(schema.Date), date)

	ids, err := o.anki.FindNotes(ctx, query)
	if err != nil {
		o.logger.Debug("note lookup failed", "query", query, "error", err)
		return 0, false
	}
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// UpdateWord rewrites the word-derived fields of an existing note.
func (o *Orchestrator) UpdateWord(ctx context.Context, noteID int64, w notebook.Word) error {
	f := o.session.Fields(ctx)
	if err := o.anki.UpdateNoteFields(ctx, noteID, fields.UpdateFields(w, f, o.cfg.Escape)); err != nil {
		return fmt.Errorf("updating note %d: %w", noteID, err)
	}
	return nil
}

// AddWord enriches w and creates its note. It returns ErrNotEnriched when
// the dictionary has nothing for the word.
func (o *Orchestrator) AddWord(ctx context.Context, w notebook.Word) (int64, error) {
	enr, err := o.enricher.Lookup(ctx, w.Text)
	if err != nil || enr == nil {
		return 0, ErrNotEnriched
	}
	// A "no result" page parses without error but carries nothing to learn from.
	if len(enr.Definitions) == 0 && len(enr.Pronunciations) == 0 {
		return 0, ErrNotEnriched
	}

	note := ankiconnect.Note{
		DeckName:  o.cfg.Deck,
		ModelName: o.cfg.NoteType,
		Fields:    fields.Map(w, enr, o.session.Fields(ctx), o.cfg.Escape),
		Options: ankiconnect.NoteOptions{
			AllowDuplicate: false,
			DuplicateScope: "deck",
		},
		Tags: fields.Tags(o.cfg.Tags),
	}
	if url := enr.FirstAudioURL(); url != "" {
		note.Audio = []ankiconnect.Media{{
			URL:      url,
			Filename: fields.SoundFilename(w),
			SkipHash: audioSkipHash,
			Fields:   []string{},
		}}
	}

	id, err := o.anki.AddNote(ctx, note)
	if err != nil {
		return 0, fmt.Errorf("adding note for %q: %w", w.Text, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("adding note for %q: server returned no id", w.Text)
	}
	return id, nil
}

// uniqueWords drops repeated (date, text) pairs, keeping first occurrences.
func uniqueWords(words []notebook.Word) []notebook.Word {
	seen := make(map[wordKey]bool, len(words))
	out := make([]notebook.Word, 0, len(words))
	for _, w := range words {
		k := wordKey{w.Date, w.Text}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, w)
	}
	return out
}

var searchEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `*`, `\*`, `_`, `\_`)

// fieldTerm is an exact-match search term for one field, quoted so that
// spaces and wildcards in value are taken literally.
func fieldTerm(field, value string) string {
	return `"` + searchEscaper.Replace(field+":"+value) + `"`
}

func deckTerm(deck string) string {
	if strings.ContainsAny(deck, " \t") {
		return fmt.Sprintf("%q", "deck:"+deck)
	}
	return "deck:" + deck
}
