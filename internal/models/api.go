package models

import (
	"errors"
	"fmt"
)

// ErrEmptyQuestion is returned when a query has no question text.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// IngestRequest is the body of POST /ingest.
type IngestRequest struct {
	Type    ItemKind `json:"type"`
	Content string   `json:"content"`
}

// Validate checks the ingest request fields.
// Returns an error for an unknown type or empty content.
func (r *IngestRequest) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("unknown type %q (want %q or %q)", r.Type, KindNote, KindURL)
	}
	if r.Content == "" {
		return fmt.Errorf("content cannot be empty")
	}
	return nil
}

// QueryRequest is the body of POST /query. TopK is optional; when zero or
// negative the server default applies.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate ensures the query has a question.
func (r *QueryRequest) Validate() error {
	if r.Question == "" {
		return ErrEmptyQuestion
	}
	return nil
}

// Source is one cited chunk in a query response, in retrieval order.
type Source struct {
	ItemID int64  `json:"item_id"`
	Text   string `json:"text"`
}

// QueryResponse is the body of a successful POST /query response.
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
