// Package bootstrap makes sure the target deck and note type exist before
// any note traffic.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/kalambet/wordsync/internal/ankiconnect"
	"github.com/kalambet/wordsync/internal/schema"
)

// Kind classifies a failed precondition.
type Kind int

const (
	ServerDown Kind = iota + 1
	DeckMissing
	NoteTypeMissing
)

func (k Kind) String() string {
	switch k {
	case ServerDown:
		return "server down"
	case DeckMissing:
		return "deck missing"
	case NoteTypeMissing:
		return "note type missing"
	default:
		return "unknown"
	}
}

// PreconditionError reports which precondition failed so callers can show
// actionable guidance.
type PreconditionError struct {
	Kind Kind
	Name string
	Err  error
}

func (e *PreconditionError) Error() string {
	msg := e.Kind.String()
	if e.Name != "" {
		msg += ": " + e.Name
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// Hint returns a short remedy for the failed precondition.
func (e *PreconditionError) Hint() string {
	switch e.Kind {
	case ServerDown:
		return "start Anki with the AnkiConnect add-on installed"
	case DeckMissing:
		return fmt.Sprintf("create the deck %q or run `wordsync init`", e.Name)
	case NoteTypeMissing:
		return fmt.Sprintf("create the note type %q or run `wordsync init`", e.Name)
	default:
		return ""
	}
}

// Anki is the subset of the AnkiConnect client the bootstrapper needs.
type Anki interface {
	Version(ctx context.Context) (int, error)
	DeckNames(ctx context.Context) ([]string, error)
	ModelNames(ctx context.Context) ([]string, error)
	CreateDeck(ctx context.Context, name string) (int64, error)
	CreateModel(ctx context.Context, m ankiconnect.Model) error
	UpdateModelTemplates(ctx context.Context, model string, templates map[string]ankiconnect.TemplateSides) error
}

// Bootstrapper checks and creates the remote deck and note type.
type Bootstrapper struct {
	anki    Anki
	session *schema.Session
	out     io.Writer
	logger  *slog.Logger
}

// New creates a Bootstrapper. session resolves the note type's field names
// after creation; out receives progress lines and may be nil.
func New(anki Anki, session *schema.Session, out io.Writer) *Bootstrapper {
	if out == nil {
		out = io.Discard
	}
	return &Bootstrapper{
		anki:    anki,
		session: session,
		out:     out,
		logger:  slog.Default().With("component", "bootstrap"),
	}
}

// EnsureServerReachable probes the server version. Every later step depends
// on it.
func (b *Bootstrapper) EnsureServerReachable(ctx context.Context) error {
	v, err := b.anki.Version(ctx)
	if err != nil {
		return &PreconditionError{Kind: ServerDown, Err: err}
	}
	b.logger.Debug("server reachable", "version", v)
	return nil
}

// EnsureDeckExists creates the deck if it is absent.
func (b *Bootstrapper) EnsureDeckExists(ctx context.Context, name string) error {
	decks, err := b.anki.DeckNames(ctx)
	if err != nil {
		return fmt.Errorf("listing decks: %w", err)
	}
	if slices.Contains(decks, name) {
		fmt.Fprintf(b.out, "deck %s: ready\n", name)
		return nil
	}

	if _, err := b.anki.CreateDeck(ctx, name); err != nil {
		return fmt.Errorf("creating deck %s: %w", name, err)
	}
	fmt.Fprintf(b.out, "deck %s: created\n", name)
	return nil
}

// EnsureNoteTypeExists creates the note type with the fixed field layout and
// cloze template when it is absent. After creation the field names are
// re-resolved, since the server may localize them, and the templates are
// rewritten from the resolved list. An existing note type is left alone.
func (b *Bootstrapper) EnsureNoteTypeExists(ctx context.Context, name string, fields schema.Fields) error {
	models, err := b.anki.ModelNames(ctx)
	if err != nil {
		return fmt.Errorf("listing note types: %w", err)
	}
	if slices.Contains(models, name) {
		fmt.Fprintf(b.out, "note type %s: ready\n", name)
		return nil
	}

	front, back := schema.CardTemplates(fields)
	err = b.anki.CreateModel(ctx, ankiconnect.Model{
		Name:   name,
		Fields: fields,
		CSS:    schema.CSS,
		CardTemplates: []ankiconnect.CardTemplate{
			{Name: schema.TemplateName, Front: front, Back: back},
		},
	})
	if err != nil {
		return fmt.Errorf("creating note type %s: %w", name, err)
	}
	fmt.Fprintf(b.out, "note type %s: created\n", name)

	if b.session == nil {
		return nil
	}
	resolved, _ := b.session.Refresh(ctx)
	return b.UpdateTemplates(ctx, name, resolved)
}

// UpdateTemplates rewrites the note type's card template from fields.
func (b *Bootstrapper) UpdateTemplates(ctx context.Context, name string, fields schema.Fields) error {
	front, back := schema.CardTemplates(fields)
	err := b.anki.UpdateModelTemplates(ctx, name, map[string]ankiconnect.TemplateSides{
		schema.TemplateName: {Front: front, Back: back},
	})
	if err != nil {
		return fmt.Errorf("updating templates of %s: %w", name, err)
	}
	b.logger.Debug("templates updated", "note_type", name, "fields", []string(fields))
	return nil
}

// Check verifies the preconditions without creating anything.
func (b *Bootstrapper) Check(ctx context.Context, deck, noteType string) error {
	if err := b.EnsureServerReachable(ctx); err != nil {
		return err
	}

	decks, err := b.anki.DeckNames(ctx)
	if err != nil {
		return fmt.Errorf("listing decks: %w", err)
	}
	if !slices.Contains(decks, deck) {
		return &PreconditionError{Kind: DeckMissing, Name: deck}
	}

	models, err := b.anki.ModelNames(ctx)
	if err != nil {
		return fmt.Errorf("listing note types: %w", err)
	}
	if !slices.Contains(models, noteType) {
		return &PreconditionError{Kind: NoteTypeMissing, Name: noteType}
	}
	return nil
}

// Run creates missing deck and note type when create is set, and only
// checks for them otherwise.
func (b *Bootstrapper) Run(ctx context.Context, deck, noteType string, create bool) error {
	if !create {
		return b.Check(ctx, deck, noteType)
	}
	if err := b.EnsureServerReachable(ctx); err != nil {
		return err
	}
	if err := b.EnsureDeckExists(ctx, deck); err != nil {
		return err
	}
	return b.EnsureNoteTypeExists(ctx, noteType, schema.DefaultFields())
}
