package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func embeddingsServer(t *testing.T, vec []float32, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		if r.URL.Path != "/embeddings" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		var req struct {
			Input string `json:"input"`
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Input == "" || req.Model == "" {
			t.Errorf("request missing fields: %+v", req)
		}
		resp := map[string]any{
			"data": []map[string]any{{"embedding": vec}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var calls int64
	srv := embeddingsServer(t, []float32{0.1, 0.2, 0.3}, &calls)
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "test-model"})
	emb, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != 3 {
		t.Fatalf("got %d dims, want 3", len(emb))
	}
	if e.Dimensions() != 3 {
		t.Errorf("Dimensions: got %d, want 3", e.Dimensions())
	}
}

func TestOpenAIEmbedder_CachesRepeatedText(t *testing.T) {
	var calls int64
	srv := embeddingsServer(t, []float32{1, 0}, &calls)
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL})
	for i := 0; i < 3; i++ {
		if _, err := e.Embed(context.Background(), "same text"); err != nil {
			t.Fatal(err)
		}
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("backend calls: got %d, want 1", n)
	}
}

func TestOpenAIEmbedder_OllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.5, 0.5}})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL})
	emb, err := e.Embed(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != 2 {
		t.Errorf("got %d dims, want 2", len(emb))
	}
}

func TestOpenAIEmbedder_RejectedRequestNotRetried(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("4xx should not be retried: %d calls", n)
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	var calls int64
	srv := embeddingsServer(t, []float32{1, 2}, &calls)
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Dimensions: 4})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("dimension mismatch should fail")
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	a, _ := e.Embed(context.Background(), "water boils at 100 degrees")
	b, _ := e.Embed(context.Background(), "water boils at 100 degrees")
	c, _ := e.Embed(context.Background(), "the sky is blue")
	if len(a) != 8 {
		t.Fatalf("got %d dims, want 8", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same text produced different embeddings at %d", i)
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should produce different embeddings")
	}
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	e := NewMockEmbedder(16)
	emb, _ := e.Embed(context.Background(), "anything")
	var sum float64
	for _, v := range emb {
		sum += float64(v) * float64(v)
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("norm^2: got %v, want ~1", sum)
	}
}
