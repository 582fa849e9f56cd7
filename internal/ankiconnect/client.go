package ankiconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// ProtocolVersion is the AnkiConnect API version every request declares.
const ProtocolVersion = 6

const defaultTimeout = 30 * time.Second

var (
	// ErrUnreachable is returned when the AnkiConnect server cannot be reached
	// (connection refused, timeout, DNS failure).
	ErrUnreachable = errors.New("ankiconnect: server unreachable")

	// ErrProtocolMismatch is returned when the response envelope has no
	// "result" key, which is what legacy or incompatible servers send.
	ErrProtocolMismatch = errors.New("ankiconnect: incompatible or deprecated protocol version")
)

// RemoteError is an application error reported by AnkiConnect in the
// "error" field of the response envelope.
type RemoteError struct {
	Action  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("ankiconnect %s: %s", e.Action, e.Message)
}

// request is the JSON body of every AnkiConnect call. Key is a pointer so an
// empty key encodes as null.
type request struct {
	Key     *string `json:"key"`
	Version int     `json:"version"`
	Action  string  `json:"action"`
	Params  any     `json:"params"`
}

// Client talks to a local AnkiConnect server. One HTTP request per call, no
// batching and no retries.
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client for the server at host:port. key may be empty.
func New(host string, port int, key string) *Client {
	return NewWithURL("http://"+host+":"+strconv.Itoa(port)+"/", key)
}

// NewWithURL creates a Client targeting an explicit base URL (used by tests).
func NewWithURL(baseURL, key string) *Client {
	return &Client{
		baseURL:    baseURL,
		key:        key,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default().With("component", "ankiconnect"),
	}
}

// Call invokes action with params and decodes the "result" value into out.
// out may be nil when the caller does not need the result.
func (c *Client) Call(ctx context.Context, action string, params any, out any) error {
	if params == nil {
		params = struct{}{}
	}
	var key *string
	if c.key != "" {
		k := c.key
		key = &k
	}

	body, err := json.Marshal(request{
		Key:     key,
		Version: ProtocolVersion,
		Action:  action,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshalling %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %v", ErrUnreachable, action, err)
	}

	c.logger.Debug("response", "action", action, "status", resp.StatusCode, "body", string(raw))

	// Decoding into a map keeps "result": null distinguishable from a
	// missing key.
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope == nil {
		return fmt.Errorf("%w: %s returned a non-envelope body", ErrProtocolMismatch, action)
	}
	result, ok := envelope["result"]
	if !ok {
		return fmt.Errorf("%w: %s response has no result", ErrProtocolMismatch, action)
	}

	if rawErr, ok := envelope["error"]; ok {
		var msg *string
		if err := json.Unmarshal(rawErr, &msg); err != nil {
			return &RemoteError{Action: action, Message: string(rawErr)}
		}
		if msg != nil && *msg != "" {
			return &RemoteError{Action: action, Message: *msg}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", action, err)
	}
	return nil
}
