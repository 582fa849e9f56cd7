// Package enrichment looks up pronunciation and definition data for a
// headword by scraping the Youdao dictionary page.
package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://dict.youdao.com/w/"

// ErrUnavailable means no page could be retrieved for the headword. Callers
// treat it as "no enrichment" rather than as a failure.
var ErrUnavailable = errors.New("enrichment unavailable")

// Result is the structured data scraped for one headword.
type Result struct {
	Headword                string          `json:"headword"`
	Definitions             []string        `json:"definitions"`
	WebDefinitions          []string        `json:"web_definitions"`
	ProfessionalDefinitions []string        `json:"professional_definitions"`
	Pronunciations          []Pronunciation `json:"pronunciations"`
}

// Pronunciation is one phonetic rendering, e.g. label "英" with its IPA.
type Pronunciation struct {
	Label    string `json:"label"`
	Phonetic string `json:"phonetic"`
	AudioURL string `json:"audio_url,omitempty"`
}

// FirstAudioURL returns the first non-empty audio link, or "".
func (r *Result) FirstAudioURL() string {
	if r == nil {
		return ""
	}
	for _, p := range r.Pronunciations {
		if p.AudioURL != "" {
			return p.AudioURL
		}
	}
	return ""
}

// Client fetches and parses dictionary pages.
type Client struct {
	baseURL string
	fetcher Fetcher
	log     *slog.Logger
}

// NewClient creates a Client that retrieves pages through fetcher.
func NewClient(fetcher Fetcher, logger *slog.Logger) *Client {
	return NewClientWithURL(defaultBaseURL, fetcher, logger)
}

// NewClientWithURL creates a Client with a custom page base URL (for testing).
func NewClientWithURL(baseURL string, fetcher Fetcher, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		fetcher: fetcher,
		log:     logger.With("component", "enrichment"),
	}
}

// PageURL returns the dictionary page URL for headword.
func (c *Client) PageURL(headword string) string {
	return c.baseURL + url.PathEscape(headword)
}

// Lookup fetches and parses the page for headword. Only a failed or empty
// fetch returns ErrUnavailable; a page with unexpected markup yields a
// partial or empty Result.
func (c *Client) Lookup(ctx context.Context, headword string) (*Result, error) {
	headword = strings.TrimSpace(headword)
	if headword == "" {
		return nil, ErrUnavailable
	}

	page, err := c.fetcher.Fetch(ctx, c.PageURL(headword))
	if err != nil {
		c.log.DebugContext(ctx, "page fetch failed", "headword", headword, "error", err)
		return nil, ErrUnavailable
	}
	if strings.TrimSpace(page) == "" {
		c.log.DebugContext(ctx, "empty page", "headword", headword)
		return nil, ErrUnavailable
	}

	res := parsePage(headword, page)
	c.log.DebugContext(ctx, "lookup complete",
		"headword", headword,
		"definitions", len(res.Definitions),
		"pronunciations", len(res.Pronunciations),
	)
	return res, nil
}
