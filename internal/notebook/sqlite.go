package notebook

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the SQLite-backed notebook of captured words.
type Store struct {
	db *sql.DB
}

// Open opens notebook.db in dataDir, creating the directory and applying
// pending migrations. dataDir ":memory:" gives a private in-memory store.
func Open(dataDir string) (*Store, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "notebook.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening notebook: %w", err)
	}
	// One connection: :memory: is per-connection, and the server plus the
	// autosync worker must not race for the write lock.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := s.migrate(); err != nil {
		return fmt.Errorf("migrating notebook: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies every embedded NNN_name.sql not yet recorded in
// schema_version, in file name order, each in its own transaction.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return err
	}

	applied, err := s.AppliedMigrations()
	if err != nil {
		return err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	// fs.Glob returns names in lexical order.
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	for _, file := range files {
		var version int
		if _, err := fmt.Sscanf(path.Base(file), "%d_", &version); err != nil {
			return fmt.Errorf("migration %s has no version prefix: %w", file, err)
		}
		if done[version] {
			continue
		}
		if err := s.applyMigration(file, version); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(file string, version int) error {
	ddl, err := migrationsFS.ReadFile(file)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(ddl)); err != nil {
		return fmt.Errorf("applying %s: %w", file, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("recording %s: %w", file, err)
	}
	return tx.Commit()
}

// AppliedMigrations lists applied migration versions, lowest first.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Words ---

// SaveWord stores w, assigning an id when it has none, and returns the id.
// Words are immutable once captured; saving an existing id is an error.
func (s *Store) SaveWord(ctx context.Context, w Word) (string, error) {
	if strings.TrimSpace(w.Text) == "" {
		return "", fmt.Errorf("word text is required")
	}
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.Date == 0 {
		w.Date = time.Now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO words (id, text, context, translation, url, date, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Text, w.Context, w.Translation, w.URL, w.Date, w.Note,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("saving word %q: %w", w.Text, err)
	}
	return w.ID, nil
}

// GetWord returns the word with the given id.
func (s *Store) GetWord(ctx context.Context, id string) (Word, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, context, translation, url, date, note
		FROM words WHERE id = ?`, id)
	w, err := scanWord(row)
	if err == sql.ErrNoRows {
		return Word{}, ErrNotFound
	}
	return w, err
}

// GetWordsByDate returns every word captured at date.
func (s *Store) GetWordsByDate(ctx context.Context, date int64) ([]Word, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, context, translation, url, date, note
		FROM words WHERE date = ? ORDER BY text`, date)
	if err != nil {
		return nil, err
	}
	return collectWords(rows)
}

// ListWords returns words newest first.
func (s *Store) ListWords(ctx context.Context, limit, offset int) ([]Word, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, context, translation, url, date, note
		FROM words ORDER BY date DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectWords(rows)
}

// GetAllCapturedWords returns the whole notebook in capture order.
func (s *Store) GetAllCapturedWords(ctx context.Context) ([]Word, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, context, translation, url, date, note
		FROM words ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing words: %w", err)
	}
	return collectWords(rows)
}

// WordsCapturedAfter returns words with a capture date strictly after
// after, oldest first.
func (s *Store) WordsCapturedAfter(ctx context.Context, after int64) ([]Word, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, context, translation, url, date, note
		FROM words WHERE date > ? ORDER BY date ASC`, after)
	if err != nil {
		return nil, fmt.Errorf("listing words after %d: %w", after, err)
	}
	return collectWords(rows)
}

// LatestCaptureDate returns the newest capture date, or 0 for an empty notebook.
func (s *Store) LatestCaptureDate(ctx context.Context) (int64, error) {
	var date int64
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(date), 0) FROM words").Scan(&date); err != nil {
		return 0, fmt.Errorf("reading latest capture date: %w", err)
	}
	return date, nil
}

// DeleteWord removes a word from the notebook. Remote notes are untouched.
func (s *Store) DeleteWord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM words WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWord(sc scanner) (Word, error) {
	var w Word
	err := sc.Scan(&w.ID, &w.Text, &w.Context, &w.Translation, &w.URL, &w.Date, &w.Note)
	return w, err
}

func collectWords(rows *sql.Rows) ([]Word, error) {
	defer rows.Close()
	var words []Word
	for rows.Next() {
		w, err := scanWord(rows)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

// --- Sync runs ---

// SaveSyncRun records the outcome of a sync pass.
func (s *Store) SaveSyncRun(ctx context.Context, r SyncRun) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, started_at, finished_at, total, created, existing, unenriched, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(runTimeLayout), r.FinishedAt.UTC().Format(runTimeLayout),
		r.Total, r.Created, r.Existing, r.Unenriched, r.Failed, r.Error,
	)
	return err
}

// runTimeLayout keeps every fractional digit so run times sort as text.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecentSyncRuns returns up to limit runs, newest first.
func (s *Store) RecentSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, total, created, existing, unenriched, failed, error
		FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var r SyncRun
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Total, &r.Created, &r.Existing, &r.Unenriched, &r.Failed, &r.Error); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
