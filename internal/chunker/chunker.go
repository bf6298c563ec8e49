// Package chunker splits raw text into overlapping word windows.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidChunking reports a size/overlap combination that could not make
// forward progress.
var ErrInvalidChunking = errors.New("invalid chunking configuration")

// Chunker splits text into overlapping word-based windows. Size and overlap
// are in words.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Overlap must be smaller than size; otherwise the
// window start would never advance and New fails with ErrInvalidChunking.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d must be positive", ErrInvalidChunking, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunking, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text on whitespace and produces windows of up to size
// consecutive words, advancing the start by size-overlap words each step.
// Words are re-joined with single spaces, so original inter-word formatting
// is not preserved. The final window may be shorter. Empty text yields nil.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	return chunks
}

// Size returns the configured window size in words.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured window overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }
