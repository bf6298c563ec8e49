package ranker

import (
	"math"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

const tolerance = 1e-6

func chunk(itemID int64, text string, emb ...float32) *models.Chunk {
	return &models.Chunk{ItemID: itemID, Text: text, Embedding: emb}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1.0},
		{"zero left", []float32{0, 0}, []float32{1, 2}, 0.0},
		{"zero right", []float32{1, 2}, []float32{0, 0}, 0.0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"empty", nil, nil, 0.0},
	}
	for _, c := range cases {
		if got := CosineSimilarity(c.a, c.b); math.Abs(got-c.want) > tolerance {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestRank_Empty(t *testing.T) {
	if got := Rank([]float32{1, 0}, nil, 3); got != nil {
		t.Errorf("empty chunks: got %v, want nil", got)
	}
	if got := Rank([]float32{1, 0}, []*models.Chunk{chunk(1, "a", 1, 0)}, 0); got != nil {
		t.Errorf("k=0: got %v, want nil", got)
	}
}

func TestRank_OrderAndTruncation(t *testing.T) {
	q := []float32{1, 0}
	chunks := []*models.Chunk{
		chunk(1, "orthogonal", 0, 1),
		chunk(2, "aligned", 2, 0),
		chunk(3, "opposite", -1, 0),
		chunk(4, "diagonal", 1, 1),
	}
	got := Rank(q, chunks, 3)
	if len(got) != 3 {
		t.Fatalf("got %d matches, want 3", len(got))
	}
	wantOrder := []string{"aligned", "diagonal", "orthogonal"}
	for i, w := range wantOrder {
		if got[i].Text != w {
			t.Errorf("rank %d: got %q, want %q", i, got[i].Text, w)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, got[i].Score, got[i-1].Score)
		}
	}
}

func TestRank_ScoresMatchCosine(t *testing.T) {
	q := []float32{0.3, -0.7, 0.2}
	chunks := []*models.Chunk{
		chunk(1, "a", 0.1, 0.4, -0.2),
		chunk(1, "b", -0.6, 0.2, 0.9),
		chunk(2, "c", 0.5, -0.5, 0.5),
	}
	got := Rank(q, chunks, len(chunks))
	if len(got) != len(chunks) {
		t.Fatalf("got %d matches, want %d", len(got), len(chunks))
	}
	for _, m := range got {
		for _, ch := range chunks {
			if ch.Text == m.Text {
				want := CosineSimilarity(q, ch.Embedding)
				if math.Abs(m.Score-want) > tolerance {
					t.Errorf("chunk %q: score %v, want %v", m.Text, m.Score, want)
				}
			}
		}
	}
}

func TestRank_KLargerThanCorpus(t *testing.T) {
	q := []float32{1, 1}
	chunks := []*models.Chunk{chunk(1, "only", 1, 1)}
	got := Rank(q, chunks, 10)
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1", len(got))
	}
}

func TestRank_StableOnTies(t *testing.T) {
	q := []float32{1, 0}
	// All three have identical similarity; scan order must be preserved.
	chunks := []*models.Chunk{
		chunk(1, "first", 3, 0),
		chunk(2, "second", 1, 0),
		chunk(3, "third", 7, 0),
	}
	got := Rank(q, chunks, 3)
	wantOrder := []string{"first", "second", "third"}
	for i, w := range wantOrder {
		if got[i].Text != w {
			t.Errorf("tie order %d: got %q, want %q", i, got[i].Text, w)
		}
	}
}

func TestRank_DegenerateChunkScoresZero(t *testing.T) {
	q := []float32{1, 0}
	chunks := []*models.Chunk{
		chunk(1, "zero", 0, 0),
		chunk(2, "real", 1, 0),
	}
	got := Rank(q, chunks, 2)
	if got[0].Text != "real" || got[1].Text != "zero" {
		t.Fatalf("order: got %q, %q", got[0].Text, got[1].Text)
	}
	if got[1].Score != 0 {
		t.Errorf("degenerate vector score: got %v, want 0", got[1].Score)
	}
}
