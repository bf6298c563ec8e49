// Package ingest turns raw content into stored, embedded chunks.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fetch"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

// Ingester coordinates chunking, embedding, and storage for new content.
type Ingester struct {
	storage   storage.Storage
	embedder  embedding.Embedder
	chunker   *chunker.Chunker
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	logger    *zap.Logger
}

// NewIngester creates an Ingester from its dependencies.
func NewIngester(store storage.Storage, embedder embedding.Embedder, ch *chunker.Chunker, fetcher *fetch.Fetcher, extractor *extract.Extractor, logger *zap.Logger) *Ingester {
	return &Ingester{
		storage:   store,
		embedder:  embedder,
		chunker:   ch,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger,
	}
}

// IngestNote stores raw text as a note item with its embedded chunks.
func (i *Ingester) IngestNote(ctx context.Context, content string) (*models.Item, error) {
	return i.ingest(ctx, models.KindNote, content)
}

// IngestURL fetches the page at rawURL and stores its text as a url item.
// The stored content is the extracted page text, not the URL itself.
func (i *Ingester) IngestURL(ctx context.Context, rawURL string) (*models.Item, error) {
	text, err := i.fetcher.FetchText(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return i.ingest(ctx, models.KindURL, text)
}

// IngestFile extracts text from the file at path and stores it as a note.
// Files whose size and mtime match the last ingested state are skipped;
// in that case both return values are nil. Changed files are ingested as
// a new item and the file record is repointed.
func (i *Ingester) IngestFile(ctx context.Context, path string) (*models.Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	record, err := i.storage.GetFileRecord(ctx, abs)
	if err != nil {
		return nil, err
	}
	if record != nil && record.MtimeNS == info.ModTime().UnixNano() && record.Size == info.Size() {
		return nil, nil
	}

	text, err := i.extractor.Extract(abs)
	if err != nil {
		return nil, err
	}

	item, err := i.ingest(ctx, models.KindNote, text)
	if err != nil {
		return nil, err
	}

	err = i.storage.PutFileRecord(ctx, &models.FileRecord{
		Path:    abs,
		ItemID:  item.ID,
		MtimeNS: info.ModTime().UnixNano(),
		Size:    info.Size(),
	})
	if err != nil {
		return nil, err
	}
	i.logger.Info("ingested file",
		zap.String("path", abs),
		zap.Int64("item_id", item.ID))
	return item, nil
}

func (i *Ingester) ingest(ctx context.Context, kind models.ItemKind, content string) (*models.Item, error) {
	texts := i.chunker.Chunk(content)

	embeddings, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}

	chunks := make([]*models.Chunk, len(texts))
	for pos, text := range texts {
		chunks[pos] = &models.Chunk{
			Position:  pos,
			Text:      text,
			Embedding: embeddings[pos],
		}
	}

	item := &models.Item{Kind: kind, Content: content}
	if err := i.storage.CreateItem(ctx, item, chunks); err != nil {
		return nil, err
	}
	i.logger.Info("ingested item",
		zap.Int64("item_id", item.ID),
		zap.String("type", string(kind)),
		zap.Int("chunks", len(chunks)))
	return item, nil
}
