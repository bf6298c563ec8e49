// Package storage defines the persistence interface for items and chunks.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Storage defines item and chunk persistence. Items and chunks are
// append-only; there are no updates or deletes.
type Storage interface {
	// CreateItem stores an item and its chunks as one atomic unit and
	// assigns their ids. A chunk is never visible without its embedding,
	// and a failed ingest leaves no rows behind.
	CreateItem(ctx context.Context, item *models.Item, chunks []*models.Chunk) error

	// ListItems returns all items ordered by id descending (most recent first).
	ListItems(ctx context.Context) ([]*models.Item, error)

	// AllChunks returns every stored chunk with its embedding, in insertion
	// order (item id, then position). Full scan; the ranker consumes it whole.
	AllChunks(ctx context.Context) ([]*models.Chunk, error)

	// Watched-file bookkeeping for incremental directory sync.
	GetFileRecord(ctx context.Context, path string) (*models.FileRecord, error)
	PutFileRecord(ctx context.Context, rec *models.FileRecord) error

	// Stats
	CountItems(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
