// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding TEXT NOT NULL,
		FOREIGN KEY (item_id) REFERENCES items(id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_item_id ON chunks(item_id);

	CREATE TABLE IF NOT EXISTS ingested_files (
		path TEXT PRIMARY KEY,
		item_id INTEGER NOT NULL,
		mtime_ns INTEGER NOT NULL,
		size INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// Databases created before chunk ordering was persisted lack the position
	// column; adding it again is the only migration step, and "duplicate
	// column" means it is already there.
	if _, err := db.Exec(`ALTER TABLE chunks ADD COLUMN position INTEGER NOT NULL DEFAULT 0`); err != nil {
		if !strings.Contains(err.Error(), "duplicate column name") {
			return err
		}
	}
	return nil
}

// itemTimeFormat is RFC3339 with sub-second precision; times are stored in
// UTC so the "Z" designator survives the round trip.
const itemTimeFormat = time.RFC3339Nano

// CreateItem inserts an item and its chunks in one transaction and fills in
// the assigned ids.
func (s *SQLiteStorage) CreateItem(ctx context.Context, item *models.Item, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.CreatedAt = item.CreatedAt.UTC()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO items (kind, content, created_at) VALUES (?, ?, ?)`,
		string(item.Kind), item.Content, item.CreatedAt.Format(itemTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	itemID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("item id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (item_id, position, text, embedding) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		encoded, err := encodeEmbedding(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		res, err := stmt.ExecContext(ctx, itemID, chunk.Position, chunk.Text, encoded)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Position, err)
		}
		chunkID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("chunk id: %w", err)
		}
		chunk.ID = chunkID
		chunk.ItemID = itemID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	item.ID = itemID
	return nil
}

// ListItems returns all items ordered by id descending.
func (s *SQLiteStorage) ListItems(ctx context.Context) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, content, created_at FROM items ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		var item models.Item
		var kind, createdAt string
		if err := rows.Scan(&item.ID, &kind, &item.Content, &createdAt); err != nil {
			return nil, err
		}
		item.Kind = models.ItemKind(kind)
		t, err := time.Parse(itemTimeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for item %d: %w", item.ID, err)
		}
		item.CreatedAt = t.UTC()
		items = append(items, &item)
	}
	return items, rows.Err()
}

// AllChunks returns every chunk with its decoded embedding, in insertion order.
func (s *SQLiteStorage) AllChunks(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, position, text, embedding FROM chunks ORDER BY item_id, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var encoded string
		if err := rows.Scan(&chunk.ID, &chunk.ItemID, &chunk.Position, &chunk.Text, &encoded); err != nil {
			return nil, err
		}
		emb, err := decodeEmbedding(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for chunk %d: %w", chunk.ID, err)
		}
		chunk.Embedding = emb
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// GetFileRecord returns the ingest record for path, or (nil, nil) if the path
// has never been ingested.
func (s *SQLiteStorage) GetFileRecord(ctx context.Context, path string) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT path, item_id, mtime_ns, size FROM ingested_files WHERE path = ?`, path,
	).Scan(&rec.Path, &rec.ItemID, &rec.MtimeNS, &rec.Size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutFileRecord inserts or replaces the ingest record for rec.Path.
func (s *SQLiteStorage) PutFileRecord(ctx context.Context, rec *models.FileRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingested_files (path, item_id, mtime_ns, size) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET item_id = excluded.item_id,
		 mtime_ns = excluded.mtime_ns, size = excluded.size`,
		rec.Path, rec.ItemID, rec.MtimeNS, rec.Size,
	)
	return err
}

// CountItems returns the total number of items.
func (s *SQLiteStorage) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// encodeEmbedding serializes a vector as a JSON array. JSON round-trips
// float32 values exactly, so ranking order is unaffected by storage.
func encodeEmbedding(embedding []float32) (string, error) {
	if embedding == nil {
		embedding = []float32{}
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeEmbedding(encoded string) ([]float32, error) {
	var embedding []float32
	if err := json.Unmarshal([]byte(encoded), &embedding); err != nil {
		return nil, err
	}
	return embedding, nil
}
