// Package models defines core data structures for items, chunks, and the HTTP API.
package models

import "time"

// ItemKind enumerates the supported ingest content types.
type ItemKind string

const (
	// KindNote is free-form text supplied directly in the ingest request.
	KindNote ItemKind = "note"
	// KindURL is a web page; its content is fetched and HTML-stripped at ingest time.
	KindURL ItemKind = "url"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	return k == KindNote || k == KindURL
}

// Item is one ingested unit of content. Items are append-only: created once
// at ingest time, never updated, never deleted.
type Item struct {
	ID        int64     `json:"id" db:"id"`
	Kind      ItemKind  `json:"type" db:"kind"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Chunk is a contiguous word window derived from one item's content.
// Position reflects left-to-right order within the item.
type Chunk struct {
	ID        int64     `json:"id" db:"id"`
	ItemID    int64     `json:"item_id" db:"item_id"`
	Position  int       `json:"position" db:"position"`
	Text      string    `json:"text" db:"text"`
	Embedding []float32 `json:"-" db:"-"`
}

// FileRecord tracks a watched file that has already been ingested, keyed by
// absolute path, so directory sync can skip unchanged files across restarts.
type FileRecord struct {
	Path    string
	ItemID  int64
	MtimeNS int64
	Size    int64
}
