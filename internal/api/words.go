package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/wordsync/internal/notebook"
)

func handleCaptureWord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var word notebook.Word
		if err := json.NewDecoder(r.Body).Decode(&word); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		word.Text = strings.TrimSpace(word.Text)
		if word.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		id, err := deps.Words.SaveWord(r.Context(), word)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save word: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "captured"})
	}
}

func handleListWords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		words, err := deps.Words.ListWords(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list words: %v", err)
			return
		}
		if words == nil {
			words = []notebook.Word{}
		}
		writeJSON(w, http.StatusOK, words)
	}
}

func handleGetWord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		word, err := deps.Words.GetWord(r.Context(), id)
		if errors.Is(err, notebook.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "word not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get word: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, word)
	}
}

func handleDeleteWord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Words.DeleteWord(r.Context(), id)
		if errors.Is(err, notebook.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "word not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete word: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
