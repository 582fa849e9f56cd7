package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxPageSize = 5 << 20 // 5MB

// BrokerMessageType identifies a page-fetch request sent to a fetch broker.
const BrokerMessageType = "FETCH_ENRICHMENT_PAGE"

// Fetcher retrieves the raw HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// BrokerRequest is the message a privileged fetch broker accepts.
type BrokerRequest struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Broker forwards a fetch request to a process that is allowed to reach the
// dictionary site and returns the page body.
type Broker interface {
	Send(ctx context.Context, req BrokerRequest) (string, error)
}

// BrokerFetcher adapts a Broker to the Fetcher interface.
type BrokerFetcher struct {
	Broker Broker
}

func (f BrokerFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.Broker.Send(ctx, BrokerRequest{Type: BrokerMessageType, URL: url})
}

// HTTPFetcher fetches pages directly over HTTP.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates an HTTPFetcher with the given request timeout.
// A timeout <= 0 defaults to 10s.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) wordsync",
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	return string(body), nil
}
