package autosync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/wordsync/internal/notebook"
	"github.com/kalambet/wordsync/internal/syncer"
)

// WordSource lists captured words relative to a watermark date.
type WordSource interface {
	WordsCapturedAfter(ctx context.Context, after int64) ([]notebook.Word, error)
	GetWordsByDate(ctx context.Context, date int64) ([]notebook.Word, error)
	LatestCaptureDate(ctx context.Context) (int64, error)
}

// Syncer runs one sync pass over a batch of words.
type Syncer interface {
	Sync(ctx context.Context, words []notebook.Word, opts syncer.Options) (syncer.Report, error)
}

// Worker polls the notebook and syncs words captured since the last pass.
// The watermark lives in memory only; words captured before the server
// started are picked up by an explicit `wordsync sync`.
type Worker struct {
	words  WordSource
	syncer Syncer
	poll   time.Duration
	logger *slog.Logger

	mark int64
	// ids of words dated exactly mark that were already handled
	atMark map[string]bool
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 30s.
func NewWorker(words WordSource, s Syncer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Worker{
		words:  words,
		syncer: s,
		poll:   pollInterval,
		logger: slog.Default().With("component", "autosync"),
		atMark: make(map[string]bool),
	}
}

// Start sets the watermark to the newest word already in the notebook, so
// only words captured from now on are synced automatically.
func (w *Worker) Start(ctx context.Context) error {
	mark, err := w.words.LatestCaptureDate(ctx)
	if err != nil {
		return fmt.Errorf("initializing watermark: %w", err)
	}
	existing, err := w.words.GetWordsByDate(ctx, mark)
	if err != nil {
		return fmt.Errorf("initializing watermark: %w", err)
	}
	w.advance(mark, existing)
	return nil
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Warn("auto sync pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce syncs words captured after the watermark and reports whether a
// pass completed. A pass that fails as a whole (Anki unreachable, protocol
// mismatch) leaves the watermark in place so the words are retried on the
// next poll. Per-word failures are logged and not retried.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	words, err := w.pending(ctx)
	if err != nil {
		return false, err
	}
	if len(words) == 0 {
		return false, nil
	}

	report, err := w.syncer.Sync(ctx, words, syncer.Options{})
	var afe *syncer.AddFailedError
	switch {
	case err == nil:
		w.logger.Info("auto sync pass", "words", len(words), "created", report.Created)
	case errors.As(err, &afe):
		for _, f := range afe.Failures {
			w.logger.Warn("word not synced", "text", f.Word.Text, "date", f.Word.Date, "error", f.Err)
		}
	default:
		return false, fmt.Errorf("syncing %d words: %w", len(words), err)
	}

	w.advance(words[len(words)-1].Date, words)
	return true, nil
}

// pending returns words sharing the watermark date that were captured after
// the previous pass, followed by every newer word in capture order.
func (w *Worker) pending(ctx context.Context) ([]notebook.Word, error) {
	same, err := w.words.GetWordsByDate(ctx, w.mark)
	if err != nil {
		return nil, fmt.Errorf("listing words at watermark: %w", err)
	}
	var words []notebook.Word
	for _, wd := range same {
		if !w.atMark[wd.ID] {
			words = append(words, wd)
		}
	}
	newer, err := w.words.WordsCapturedAfter(ctx, w.mark)
	if err != nil {
		return nil, fmt.Errorf("listing new words: %w", err)
	}
	return append(words, newer...), nil
}

func (w *Worker) advance(mark int64, handled []notebook.Word) {
	if mark != w.mark {
		w.mark = mark
		clear(w.atMark)
	}
	for _, wd := range handled {
		if wd.Date == mark {
			w.atMark[wd.ID] = true
		}
	}
}

// Watermark returns the capture date of the newest word already handled.
func (w *Worker) Watermark() int64 {
	return w.mark
}
