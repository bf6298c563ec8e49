// Package rag answers questions by retrieving the most relevant stored
// chunks and handing them to a text generator.
package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/ranker"
	"github.com/hyperjump/kotae/internal/storage"
)

// NoDataAnswer is returned when the store holds no chunks to retrieve from.
const NoDataAnswer = "No data available"

// Engine runs the retrieval and answer pipeline for a question.
type Engine struct {
	storage   storage.Storage
	embedder  embedding.Embedder
	generator answer.Generator
	topK      int
	logger    *zap.Logger
}

// NewEngine creates an Engine. topK bounds the number of chunks handed
// to the generator per question.
func NewEngine(store storage.Storage, embedder embedding.Embedder, generator answer.Generator, topK int, logger *zap.Logger) *Engine {
	return &Engine{
		storage:   store,
		embedder:  embedder,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Query answers req.Question from the stored corpus. With an empty
// corpus it returns NoDataAnswer without touching the embedder or the
// generator. Sources are reported in descending relevance order.
func (e *Engine) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	chunks, err := e.storage.AllChunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return &models.QueryResponse{Answer: NoDataAnswer, Sources: []models.Source{}}, nil
	}

	queryVec, err := e.embedder.Embed(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	topK := e.topK
	if req.TopK > 0 {
		topK = req.TopK
	}
	matches := ranker.Rank(queryVec, chunks, topK)

	contexts := make([]string, len(matches))
	sources := make([]models.Source, len(matches))
	for i, m := range matches {
		contexts[i] = m.Text
		sources[i] = models.Source{ItemID: m.ItemID, Text: m.Text}
	}

	text, err := e.generator.Answer(ctx, req.Question, contexts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	e.logger.Debug("answered question",
		zap.Int("corpus_chunks", len(chunks)),
		zap.Int("retrieved", len(matches)))
	return &models.QueryResponse{Answer: text, Sources: sources}, nil
}
