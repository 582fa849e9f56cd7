package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/wordsync/internal/config"
	"github.com/kalambet/wordsync/internal/enrichment"
	"github.com/kalambet/wordsync/internal/notebook"
	"github.com/kalambet/wordsync/internal/syncer"
)

// apiCall is one request seen by fakeAPI.
type apiCall struct {
	method, uri, body, auth string
}

// fakeAPI answers "METHOD /path" routes with canned JSON and records calls.
type fakeAPI struct {
	srv   *httptest.Server
	mu    sync.Mutex
	calls []apiCall
}

func startFakeAPI(t *testing.T, routes map[string]string) (*fakeAPI, *apiClient) {
	t.Helper()
	fa := &fakeAPI{}
	fa.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fa.mu.Lock()
		fa.calls = append(fa.calls, apiCall{r.Method, r.URL.RequestURI(), string(body), r.Header.Get("Authorization")})
		fa.mu.Unlock()

		reply, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.Error(w, `{"error":{"message":"no route","type":"not_found"}}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reply)
	}))
	t.Cleanup(fa.srv.Close)
	return fa, &apiClient{baseURL: fa.srv.URL, token: "tok", httpClient: fa.srv.Client()}
}

func (fa *fakeAPI) only(t *testing.T) apiCall {
	t.Helper()
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.calls) != 1 {
		t.Fatalf("server saw %d calls, want 1", len(fa.calls))
	}
	return fa.calls[0]
}

var ctx = context.Background()

func TestWordsAdd(t *testing.T) {
	fa, c := startFakeAPI(t, map[string]string{"POST /words": `{"id":"w-123","status":"captured"}`})

	resp, err := c.post(ctx, "/words", notebook.Word{Text: "hello", Context: "say hello"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var got map[string]string
	if err := decodeJSON(resp, &got); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	if got["id"] != "w-123" {
		t.Errorf("id = %q", got["id"])
	}

	call := fa.only(t)
	if call.method != http.MethodPost || call.uri != "/words" || call.auth != "Bearer tok" {
		t.Errorf("call = %+v", call)
	}
	var sent notebook.Word
	if err := json.Unmarshal([]byte(call.body), &sent); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if sent.Text != "hello" || sent.Context != "say hello" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestWordsList(t *testing.T) {
	fa, c := startFakeAPI(t, map[string]string{
		"GET /words": `[{"id":"0123456789","text":"hello","context":"say hello","date":1700000000000}]`,
	})

	resp, err := c.get(ctx, "/words?limit=20")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var words []notebook.Word
	if err := decodeJSON(resp, &words); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	if len(words) != 1 || words[0].Text != "hello" || words[0].Date != 1700000000000 {
		t.Fatalf("words = %+v", words)
	}
	if uri := fa.only(t).uri; uri != "/words?limit=20" {
		t.Errorf("uri = %q", uri)
	}
}

func TestWordsDelete(t *testing.T) {
	fa, c := startFakeAPI(t, map[string]string{"DELETE /words/w-1": `{"status":"deleted"}`})

	resp, err := c.delete(ctx, "/words/w-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	var got map[string]string
	if err := decodeJSON(resp, &got); err != nil || got["status"] != "deleted" {
		t.Errorf("got %v, %v", got, err)
	}
	if m := fa.only(t).method; m != http.MethodDelete {
		t.Errorf("method = %s", m)
	}
}

func TestClient_ServerDown(t *testing.T) {
	fa, c := startFakeAPI(t, nil)
	fa.srv.Close()

	_, err := c.get(ctx, "/health")
	if err == nil || !strings.Contains(err.Error(), "wordsync serve") {
		t.Fatalf("err = %v, want a hint to start the server", err)
	}
}

func TestDecodeJSON_ErrorEnvelope(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusUnauthorized,
		Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"invalid or missing bearer token","type":"authentication_error"}}`)),
	}
	err := decodeJSON(resp, new(any))
	if err == nil {
		t.Fatal("expected error for 401")
	}
	for _, want := range []string{"401", "invalid or missing bearer token", "authentication_error"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	resp = &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader("upstream gone\n"))}
	if err := decodeJSON(resp, new(any)); err == nil || !strings.HasSuffix(err.Error(), "upstream gone") {
		t.Errorf("plain body error = %v", err)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "test message"); got != "test message" {
		t.Errorf("result = %q, want %q", got, "test message")
	}

	noColor = false
	if got := colorize(colorGreen, "test message"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}

func TestLookupCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"lookup"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "arg") {
		t.Errorf("error = %q, want it to mention args", err.Error())
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4100
	cfg.Anki.Deck = "英语"

	found := map[string]string{}
	for _, k := range config.ShowAll(cfg) {
		found[k.Key] = k.Value
	}
	if found["server.port"] != "4100" {
		t.Errorf("server.port = %q", found["server.port"])
	}
	if found["anki.deck"] != "英语" {
		t.Errorf("anki.deck = %q", found["anki.deck"])
	}
}

func TestParseWords(t *testing.T) {
	words, err := parseWords([]byte(`[{"text":"a","date":1},{"text":"b","trans":"乙","date":2}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != 2 || words[1].Translation != "乙" {
		t.Errorf("words = %+v", words)
	}

	if _, err := parseWords([]byte(`[{"text":" "}]`)); err == nil {
		t.Error("expected error for empty text")
	}
	if _, err := parseWords([]byte(`{`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestPrintSyncResult(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	report := syncer.Report{Total: 3, Created: 2, Failed: 1, StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond)}

	var buf bytes.Buffer
	if err := printSyncResult(&buf, report, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Total:", "Created:    2", "Took:", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	afe := &syncer.AddFailedError{Total: 3, Failures: []syncer.WordFailure{{Word: notebook.Word{Text: "x"}, Err: errors.New("boom")}}}
	buf.Reset()
	if err := printSyncResult(&buf, report, afe); !errors.Is(err, syncer.ErrAddFailed) {
		t.Errorf("err = %v, want ErrAddFailed", err)
	}
	if !strings.Contains(buf.String(), "Failed:") {
		t.Error("partial failure should still print the report")
	}

	buf.Reset()
	down := errors.New("server unreachable")
	if err := printSyncResult(&buf, syncer.Report{}, down); err != down {
		t.Errorf("err = %v, want %v", err, down)
	}
	if buf.Len() != 0 {
		t.Errorf("hard failure should print nothing, got %q", buf.String())
	}
}

func TestWriteLookup(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	var buf bytes.Buffer
	writeLookup(&buf, &enrichment.Result{
		Headword:       "hello",
		Definitions:    []string{"int. 喂"},
		Pronunciations: []enrichment.Pronunciation{{Label: "英", Phonetic: "[həˈləʊ]"}},
	})
	out := buf.String()
	for _, want := range []string{"hello", "英 [həˈləʊ]", "Definitions", "int. 喂"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Web") {
		t.Error("empty sections should be omitted")
	}
}

func TestFormatWordLine(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	line := formatWordLine(notebook.Word{
		ID:      "0123456789abcdef",
		Text:    "hello",
		Context: strings.Repeat("長", 70),
		Date:    1700000000000,
	})
	if !strings.HasPrefix(line, "01234567  ") {
		t.Errorf("line = %q, want short id prefix", line)
	}
	if !strings.HasSuffix(line, strings.Repeat("長", 60)+"...") {
		t.Errorf("context not truncated by runes: %q", line)
	}
}

func TestCountLabel(t *testing.T) {
	for _, tc := range []struct {
		n    int
		want string
	}{{0, "0"}, {99, "99"}, {100, "100+"}} {
		if got := countLabel(tc.n, 100); got != tc.want {
			t.Errorf("countLabel(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestPIDFile(t *testing.T) {
	pids := pidFilePath(t.TempDir())
	if err := pids.write(); err != nil {
		t.Fatalf("write: %v", err)
	}
	pid, err := pids.read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	pids.remove()
	if _, err := pids.read(); err == nil {
		t.Error("expected error after remove")
	}
}
