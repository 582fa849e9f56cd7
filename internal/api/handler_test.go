package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/wordsync/internal/ankiconnect"
	"github.com/kalambet/wordsync/internal/enrichment"
	"github.com/kalambet/wordsync/internal/notebook"
	"github.com/kalambet/wordsync/internal/syncer"
)

const testToken = "test-token-12345"

// --- mocks ---

type mockSyncer struct {
	mu       sync.Mutex
	notes    map[int64]int64
	updated  map[int64]notebook.Word
	synced   [][]notebook.Word
	forced   bool
	report   syncer.Report
	syncErr  error
	updateFn func(id int64) error
}

func newMockSyncer() *mockSyncer {
	return &mockSyncer{notes: make(map[int64]int64), updated: make(map[int64]notebook.Word)}
}

func (m *mockSyncer) Sync(_ context.Context, words []notebook.Word, opts syncer.Options) (syncer.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = append(m.synced, words)
	m.forced = opts.ForceReload
	return m.report, m.syncErr
}

func (m *mockSyncer) FindNote(_ context.Context, date int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.notes[date]
	return id, ok
}

func (m *mockSyncer) UpdateWord(_ context.Context, id int64, w notebook.Word) error {
	if m.updateFn != nil {
		if err := m.updateFn(id); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated[id] = w
	return nil
}

type mockEnricher struct {
	res *enrichment.Result
	err error
}

func (m *mockEnricher) Lookup(_ context.Context, _ string) (*enrichment.Result, error) {
	return m.res, m.err
}

type mockFetcher struct {
	got string
}

func (m *mockFetcher) Fetch(_ context.Context, url string) (string, error) {
	m.got = url
	return "<html>page</html>", nil
}

// --- helpers ---

func setupHandler(t *testing.T) (http.Handler, *mockSyncer, *notebook.Store) {
	t.Helper()
	store, err := notebook.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s := newMockSyncer()
	h := NewHandler(Deps{
		Syncer:   s,
		Words:    store,
		Enricher: &mockEnricher{res: &enrichment.Result{Headword: "hello", Definitions: []string{"int. 喂"}}},
		Fetcher:  &mockFetcher{},
		Token:    testToken,
	})
	return h, s, store
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error.Type, body.Error.Message
}

// --- tests ---

func TestHealth_NoAuth(t *testing.T) {
	h, _, _ := setupHandler(t)
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAuth_Required(t *testing.T) {
	h, _, _ := setupHandler(t)
	for _, tok := range []string{"", "wrong"} {
		rr := serve(h, authReq(http.MethodPost, "/anki/find", `{"date":1}`, tok))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", tok, rr.Code)
		}
		if typ, _ := decodeError(t, rr); typ != "authentication_error" {
			t.Errorf("error type = %q", typ)
		}
	}
}

func TestBearerAuth_EmptyTokenRejectsAll(t *testing.T) {
	h := BearerAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without a configured token")
	}))
	req := httptest.NewRequest(http.MethodGet, "/words", nil)
	req.Header.Set("Authorization", "Bearer ")
	if rr := serve(h, req); rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestFindNote(t *testing.T) {
	h, s, _ := setupHandler(t)
	s.notes[1700000000000] = 42

	rr := serve(h, authReq(http.MethodPost, "/anki/find", `{"date":1700000000000}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"note_id":42}` {
		t.Errorf("body = %s", got)
	}
}

func TestFindNote_MissingIsZero(t *testing.T) {
	h, _, _ := setupHandler(t)

	rr := serve(h, authReq(http.MethodPost, "/anki/find", `{"date":5}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"note_id":0}` {
		t.Errorf("body = %s", got)
	}
}

func TestFindNote_BadBody(t *testing.T) {
	h, _, _ := setupHandler(t)
	rr := serve(h, authReq(http.MethodPost, "/anki/find", `{`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestUpdateNote(t *testing.T) {
	h, s, _ := setupHandler(t)

	body := `{"note_id":7,"word":{"text":"hello","context":"say hello","trans":"你好","url":"u","date":3}}`
	rr := serve(h, authReq(http.MethodPost, "/anki/update", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	w := s.updated[7]
	if w.Text != "hello" || w.Translation != "你好" || w.Date != 3 {
		t.Errorf("updated word = %+v", w)
	}
}

func TestUpdateNote_Validation(t *testing.T) {
	h, _, _ := setupHandler(t)
	for _, body := range []string{`{"word":{"text":"x"}}`, `{"note_id":1,"word":{}}`} {
		rr := serve(h, authReq(http.MethodPost, "/anki/update", body, testToken))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestUpdateNote_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantType string
	}{
		{fmt.Errorf("x: %w", ankiconnect.ErrUnreachable), http.StatusServiceUnavailable, "server_unreachable"},
		{ankiconnect.ErrProtocolMismatch, http.StatusBadGateway, "protocol_mismatch"},
		{&ankiconnect.RemoteError{Action: "updateNoteFields", Message: "note was not found"}, http.StatusBadGateway, "remote_error"},
		{errors.New("other"), http.StatusInternalServerError, "api_error"},
	}
	for _, tt := range tests {
		t.Run(tt.wantType, func(t *testing.T) {
			h, s, _ := setupHandler(t)
			s.updateFn = func(int64) error { return tt.err }

			rr := serve(h, authReq(http.MethodPost, "/anki/update", `{"note_id":1,"word":{"text":"x"}}`, testToken))
			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if typ, _ := decodeError(t, rr); typ != tt.wantType {
				t.Errorf("type = %q, want %q", typ, tt.wantType)
			}
		})
	}
}

func TestSync(t *testing.T) {
	h, s, _ := setupHandler(t)
	s.report = syncer.Report{Total: 2, Created: 2}

	body := `{"words":[{"text":"a","date":1},{"text":"b","date":2}],"force":false}`
	rr := serve(h, authReq(http.MethodPost, "/sync", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	var resp syncResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Report.Created != 2 {
		t.Errorf("report = %+v", resp.Report)
	}
	if len(s.synced) != 1 || len(s.synced[0]) != 2 || s.forced {
		t.Errorf("synced = %v, forced = %v", s.synced, s.forced)
	}
}

func TestSync_Force(t *testing.T) {
	h, s, _ := setupHandler(t)
	rr := serve(h, authReq(http.MethodPost, "/sync", `{"force":true}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !s.forced {
		t.Error("force flag not passed through")
	}
}

func TestSync_PartialFailure(t *testing.T) {
	h, s, _ := setupHandler(t)
	s.report = syncer.Report{Total: 2, Created: 1, Failed: 1}
	s.syncErr = &syncer.AddFailedError{
		Total:    2,
		Failures: []syncer.WordFailure{{Word: notebook.Word{Text: "bad", Date: 2}, Err: errors.New("cannot create note")}},
	}

	rr := serve(h, authReq(http.MethodPost, "/sync", `{"words":[{"text":"a","date":1},{"text":"bad","date":2}]}`, testToken))
	if rr.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", rr.Code)
	}
	var resp syncResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Report.Created != 1 || len(resp.Failures) != 1 || resp.Failures[0].Text != "bad" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSync_ServerDown(t *testing.T) {
	h, s, _ := setupHandler(t)
	s.syncErr = fmt.Errorf("checking server: %w", ankiconnect.ErrUnreachable)

	rr := serve(h, authReq(http.MethodPost, "/sync", `{"force":true}`, testToken))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestWords_CaptureListGetDelete(t *testing.T) {
	h, _, _ := setupHandler(t)

	rr := serve(h, authReq(http.MethodPost, "/words", `{"text":"  hello ","context":"say hello","date":10}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("capture status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var created map[string]string
	json.NewDecoder(rr.Body).Decode(&created)
	id := created["id"]
	if id == "" {
		t.Fatal("expected id")
	}

	rr = serve(h, authReq(http.MethodGet, "/words?limit=5", "", testToken))
	var words []notebook.Word
	if err := json.NewDecoder(rr.Body).Decode(&words); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(words) != 1 || words[0].Text != "hello" {
		t.Errorf("words = %+v", words)
	}

	rr = serve(h, authReq(http.MethodGet, "/words/"+id, "", testToken))
	if rr.Code != http.StatusOK {
		t.Errorf("get status = %d", rr.Code)
	}

	rr = serve(h, authReq(http.MethodDelete, "/words/"+id, "", testToken))
	if rr.Code != http.StatusOK {
		t.Errorf("delete status = %d", rr.Code)
	}

	rr = serve(h, authReq(http.MethodGet, "/words/"+id, "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
	rr = serve(h, authReq(http.MethodDelete, "/words/"+id, "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestWords_CaptureRequiresText(t *testing.T) {
	h, _, _ := setupHandler(t)
	rr := serve(h, authReq(http.MethodPost, "/words", `{"text":"  "}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestWords_EmptyListIsArray(t *testing.T) {
	h, _, _ := setupHandler(t)
	rr := serve(h, authReq(http.MethodGet, "/words", "", testToken))
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestSyncRuns(t *testing.T) {
	h, _, store := setupHandler(t)
	if err := store.SaveSyncRun(context.Background(), notebook.SyncRun{ID: "r1", Total: 3, Created: 3}); err != nil {
		t.Fatalf("SaveSyncRun: %v", err)
	}

	rr := serve(h, authReq(http.MethodGet, "/sync/runs", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var runs []notebook.SyncRun
	if err := json.NewDecoder(rr.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestLookup(t *testing.T) {
	h, _, _ := setupHandler(t)
	rr := serve(h, authReq(http.MethodGet, "/lookup/hello", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var res enrichment.Result
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Headword != "hello" {
		t.Errorf("res = %+v", res)
	}
}

func TestLookup_Unavailable(t *testing.T) {
	h := NewHandler(Deps{
		Syncer:   newMockSyncer(),
		Enricher: &mockEnricher{err: enrichment.ErrUnavailable},
		Token:    testToken,
	})
	rr := serve(h, authReq(http.MethodGet, "/lookup/zzz", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestBroker(t *testing.T) {
	f := &mockFetcher{}
	h := NewHandler(Deps{Syncer: newMockSyncer(), Fetcher: f, Token: testToken})

	body := fmt.Sprintf(`{"type":%q,"url":"https://dict.youdao.com/w/hello"}`, enrichment.BrokerMessageType)
	rr := serve(h, authReq(http.MethodPost, "/broker", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if f.got != "https://dict.youdao.com/w/hello" {
		t.Errorf("fetched %q", f.got)
	}

	rr = serve(h, authReq(http.MethodPost, "/broker", `{"type":"OTHER","url":"x"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rr.Code)
	}
}

func TestBroker_NotMountedWithoutFetcher(t *testing.T) {
	h := NewHandler(Deps{Syncer: newMockSyncer(), Token: testToken})
	rr := serve(h, authReq(http.MethodPost, "/broker", `{}`, testToken))
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 404/405", rr.Code)
	}
}
