// Package ranker selects the stored chunks most similar to a query embedding.
package ranker

import (
	"math"
	"sort"

	"github.com/hyperjump/kotae/internal/models"
)

// Match is one ranked chunk with its cosine similarity to the query.
type Match struct {
	Score  float64 `json:"score"`
	ItemID int64   `json:"item_id"`
	Text   string  `json:"text"`
}

// Rank scores every chunk against the query embedding by cosine similarity
// and returns the top k matches in descending score order. Equal scores keep
// their original scan order (stable sort). This is a linear scan over the
// whole corpus, O(N*D) per query; the intended corpus is small enough that
// no index is kept.
func Rank(query []float32, chunks []*models.Chunk, k int) []Match {
	if k <= 0 || len(chunks) == 0 {
		return nil
	}
	matches := make([]Match, len(chunks))
	for i, ch := range chunks {
		matches[i] = Match{
			Score:  CosineSimilarity(query, ch.Embedding),
			ItemID: ch.ItemID,
			Text:   ch.Text,
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k]
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Mismatched lengths or a zero-magnitude vector score 0; cosine is undefined
// there.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
