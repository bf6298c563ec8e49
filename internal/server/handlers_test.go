package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fetch"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/storage"
)

type stubGenerator struct {
	calls    int
	contexts []string
	reply    string
}

func (g *stubGenerator) Answer(ctx context.Context, question string, contexts []string) (string, error) {
	g.calls++
	g.contexts = contexts
	return g.reply, nil
}

func (g *stubGenerator) Close() error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *stubGenerator) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Chunking.Size = 5
	cfg.Chunking.Overlap = 2

	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}
	embedder := embedding.NewMockEmbedder(8)
	ingester := ingest.NewIngester(store, embedder, ch, fetch.NewFetcher(5*time.Second, 1<<20), extract.NewExtractor(), zap.NewNop())
	gen := &stubGenerator{reply: "It boils at 100 degrees."}
	engine := rag.NewEngine(store, embedder, gen, cfg.Retrieval.TopK, zap.NewNop())

	srv := NewServer(ingester, engine, store, cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, gen
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestIngestNoteAndListItems(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/ingest", `{"type":"note","content":"water boils at 100 degrees"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var ack map[string]string
	decodeBody(t, resp, &ack)
	if ack["status"] != "ok" {
		t.Errorf("expected ok ack, got %v", ack)
	}

	resp, err := http.Get(ts.URL + "/items")
	if err != nil {
		t.Fatalf("GET /items failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var items []struct {
		ID        int64  `json:"id"`
		Type      string `json:"type"`
		Content   string `json:"content"`
		CreatedAt string `json:"created_at"`
	}
	decodeBody(t, resp, &items)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Type != "note" || items[0].Content != "water boils at 100 degrees" {
		t.Errorf("unexpected item %+v", items[0])
	}
	created, err := time.Parse(time.RFC3339Nano, items[0].CreatedAt)
	if err != nil {
		t.Fatalf("created_at not RFC 3339: %v", err)
	}
	if created.Location() != time.UTC && !strings.HasSuffix(items[0].CreatedAt, "Z") {
		t.Errorf("expected UTC timestamp, got %q", items[0].CreatedAt)
	}
}

func TestItemsNewestFirst(t *testing.T) {
	ts, _ := newTestServer(t)

	postJSON(t, ts.URL+"/ingest", `{"type":"note","content":"first note"}`).Body.Close()
	postJSON(t, ts.URL+"/ingest", `{"type":"note","content":"second note"}`).Body.Close()

	resp, err := http.Get(ts.URL + "/items")
	if err != nil {
		t.Fatalf("GET /items failed: %v", err)
	}
	var items []models.Item
	decodeBody(t, resp, &items)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Content != "second note" || items[1].Content != "first note" {
		t.Errorf("expected newest first, got %q then %q", items[0].Content, items[1].Content)
	}
}

func TestItemsEmptyStoreReturnsArray(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/items")
	if err != nil {
		t.Fatalf("GET /items failed: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	body := strings.TrimSpace(buf.String())
	if body != "[]" {
		t.Errorf("expected empty JSON array, got %q", body)
	}
}

func TestIngestValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"unknown type", `{"type":"tweet","content":"x"}`},
		{"empty content", `{"type":"note","content":""}`},
		{"malformed json", `{"type":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/ingest", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestQueryReturnsRelevantSource(t *testing.T) {
	ts, gen := newTestServer(t)

	postJSON(t, ts.URL+"/ingest", `{"type":"note","content":"the sky is blue on clear days"}`).Body.Close()
	postJSON(t, ts.URL+"/ingest", `{"type":"note","content":"water boils at 100 degrees"}`).Body.Close()

	resp := postJSON(t, ts.URL+"/query", `{"question":"water boils at 100 degrees","top_k":1}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result models.QueryResponse
	decodeBody(t, resp, &result)
	if result.Answer != "It boils at 100 degrees." {
		t.Errorf("unexpected answer %q", result.Answer)
	}
	if len(result.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(result.Sources))
	}
	if result.Sources[0].Text != "water boils at 100 degrees" {
		t.Errorf("expected boiling point chunk, got %q", result.Sources[0].Text)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generator call, got %d", gen.calls)
	}
}

func TestQueryEmptyStore(t *testing.T) {
	ts, gen := newTestServer(t)

	resp := postJSON(t, ts.URL+"/query", `{"question":"anything?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result models.QueryResponse
	decodeBody(t, resp, &result)
	if result.Answer != rag.NoDataAnswer {
		t.Errorf("expected %q, got %q", rag.NoDataAnswer, result.Answer)
	}
	if result.Sources == nil || len(result.Sources) != 0 {
		t.Errorf("expected empty sources, got %#v", result.Sources)
	}
	if gen.calls != 0 {
		t.Errorf("generator should not run on an empty store, got %d calls", gen.calls)
	}
}

func TestQueryEmptyQuestion(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/query", `{"question":""}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestIngestURLFetchFailure(t *testing.T) {
	ts, _ := newTestServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer upstream.Close()

	resp := postJSON(t, ts.URL+"/ingest", `{"type":"url","content":"`+upstream.URL+`/gone"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] == "" {
		t.Error("expected error message in response")
	}

	listResp, err := http.Get(ts.URL + "/items")
	if err != nil {
		t.Fatalf("GET /items failed: %v", err)
	}
	var items []models.Item
	decodeBody(t, listResp, &items)
	if len(items) != 0 {
		t.Errorf("expected no items after failed fetch, got %d", len(items))
	}
}

func TestIngestURLSuccess(t *testing.T) {
	ts, _ := newTestServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>melting point of ice is 0 degrees</p></body></html>"))
	}))
	defer upstream.Close()

	resp := postJSON(t, ts.URL+"/ingest", `{"type":"url","content":"`+upstream.URL+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	listResp, err := http.Get(ts.URL + "/items")
	if err != nil {
		t.Fatalf("GET /items failed: %v", err)
	}
	var items []models.Item
	decodeBody(t, listResp, &items)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Kind != models.KindURL {
		t.Errorf("expected url item, got %s", items[0].Kind)
	}
	if items[0].Content != "melting point of ice is 0 degrees" {
		t.Errorf("unexpected content %q", items[0].Content)
	}
}

func TestHealthAndStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	postJSON(t, ts.URL+"/ingest", `{"type":"note","content":"one two three four five six"}`).Body.Close()

	resp, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	var status struct {
		Items  int `json:"items"`
		Chunks int `json:"chunks"`
		Config struct {
			ChunkSize int `json:"chunk_size"`
		} `json:"config"`
	}
	decodeBody(t, resp, &status)
	if status.Items != 1 {
		t.Errorf("expected 1 item, got %d", status.Items)
	}
	if status.Chunks == 0 {
		t.Error("expected chunks to be counted")
	}
	if status.Config.ChunkSize != 5 {
		t.Errorf("expected chunk_size 5, got %d", status.Config.ChunkSize)
	}
}
