package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/wordsync/internal/ankiconnect"
	"github.com/kalambet/wordsync/internal/enrichment"
	"github.com/kalambet/wordsync/internal/notebook"
	"github.com/kalambet/wordsync/internal/syncer"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Syncer is the orchestrator surface the API exposes.
type Syncer interface {
	Sync(ctx context.Context, words []notebook.Word, opts syncer.Options) (syncer.Report, error)
	FindNote(ctx context.Context, date int64) (int64, bool)
	UpdateWord(ctx context.Context, noteID int64, w notebook.Word) error
}

// WordStore abstracts the notebook for the API layer.
type WordStore interface {
	SaveWord(ctx context.Context, w notebook.Word) (string, error)
	GetWord(ctx context.Context, id string) (notebook.Word, error)
	ListWords(ctx context.Context, limit, offset int) ([]notebook.Word, error)
	DeleteWord(ctx context.Context, id string) error
	RecentSyncRuns(ctx context.Context, limit int) ([]notebook.SyncRun, error)
}

// Enricher looks up dictionary data for a headword.
type Enricher interface {
	Lookup(ctx context.Context, headword string) (*enrichment.Result, error)
}

type Deps struct {
	Syncer   Syncer
	Words    WordStore
	Enricher Enricher
	Fetcher  enrichment.Fetcher // optional; if nil, /broker is not mounted
	Token    string
}

// NewHandler returns the host capability API. /health is public; every
// other route requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/anki/find", handleFindNote(deps))
		r.Post("/anki/update", handleUpdateNote(deps))
		r.Post("/sync", handleSync(deps))
		r.Get("/sync/runs", handleListSyncRuns(deps))
		r.Get("/lookup/{word}", handleLookup(deps))
		r.Post("/words", handleCaptureWord(deps))
		r.Get("/words", handleListWords(deps))
		r.Get("/words/{id}", handleGetWord(deps))
		r.Delete("/words/{id}", handleDeleteWord(deps))
		if deps.Fetcher != nil {
			r.Post("/broker", handleBroker(deps))
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type findNoteRequest struct {
	Date int64 `json:"date"`
}

type findNoteResponse struct {
	NoteID int64 `json:"note_id"`
}

// handleFindNote never fails once the request parses: lookup errors answer
// note_id 0, the same as "no note".
func handleFindNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req findNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		id, _ := deps.Syncer.FindNote(r.Context(), req.Date)
		writeJSON(w, http.StatusOK, findNoteResponse{NoteID: id})
	}
}

type updateNoteRequest struct {
	NoteID int64         `json:"note_id"`
	Word   notebook.Word `json:"word"`
}

func handleUpdateNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req updateNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.NoteID == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "note_id is required")
			return
		}
		if req.Word.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "word.text is required")
			return
		}

		if err := deps.Syncer.UpdateWord(r.Context(), req.NoteID, req.Word); err != nil {
			writeAnkiError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type syncRequest struct {
	Words []notebook.Word `json:"words"`
	Force bool            `json:"force"`
}

type syncResponse struct {
	Report   syncer.Report `json:"report"`
	Failures []syncFailure `json:"failures,omitempty"`
}

type syncFailure struct {
	Text  string `json:"text"`
	Date  int64  `json:"date"`
	Error string `json:"error"`
}

func handleSync(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req syncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		report, err := deps.Syncer.Sync(r.Context(), req.Words, syncer.Options{ForceReload: req.Force})

		var afe *syncer.AddFailedError
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, syncResponse{Report: report})
		case errors.As(err, &afe):
			// Some notes may have been created; report them alongside the failures.
			resp := syncResponse{Report: report}
			for _, f := range afe.Failures {
				resp.Failures = append(resp.Failures, syncFailure{Text: f.Word.Text, Date: f.Word.Date, Error: errString(f.Err)})
			}
			writeJSON(w, http.StatusMultiStatus, resp)
		default:
			writeAnkiError(w, err)
		}
	}
}

func handleListSyncRuns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 10, 100)

		runs, err := deps.Words.RecentSyncRuns(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list sync runs: %v", err)
			return
		}
		if runs == nil {
			runs = []notebook.SyncRun{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func handleLookup(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		word := chi.URLParam(r, "word")

		res, err := deps.Enricher.Lookup(r.Context(), word)
		if errors.Is(err, enrichment.ErrUnavailable) {
			httpError(w, http.StatusNotFound, "not_found", "no dictionary entry for %q", word)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "lookup failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleBroker serves page fetches for clients that cannot reach the
// dictionary site themselves.
func handleBroker(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req enrichment.BrokerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Type != enrichment.BrokerMessageType {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unsupported message type %q", req.Type)
			return
		}
		if req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}

		body, err := deps.Fetcher.Fetch(r.Context(), req.URL)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "fetch failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"body": body})
	}
}

// writeAnkiError maps transport and orchestrator errors onto HTTP statuses.
func writeAnkiError(w http.ResponseWriter, err error) {
	var remote *ankiconnect.RemoteError
	switch {
	case errors.Is(err, ankiconnect.ErrUnreachable):
		httpError(w, http.StatusServiceUnavailable, "server_unreachable", "%v", err)
	case errors.Is(err, ankiconnect.ErrProtocolMismatch):
		httpError(w, http.StatusBadGateway, "protocol_mismatch", "%v", err)
	case errors.As(err, &remote):
		httpError(w, http.StatusBadGateway, "remote_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
