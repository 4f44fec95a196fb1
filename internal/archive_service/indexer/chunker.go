package indexer

import (
	"fmt"
	"strings"
)

// Chunker splits document text into fixed-size overlapping windows so that
// each window fits within the embedding model's input budget while keeping
// enough surrounding context for retrieval.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. The overlap must be strictly smaller than the
// window size, otherwise splitting would never advance.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Step returns how many characters the window advances between chunks.
func (c *Chunker) Step() int { return c.size - c.overlap }

// Split cuts text into windows of at most c.size characters, each starting
// c.Step() characters after the previous one. Windows that contain only
// whitespace are dropped. Sizes are measured in characters, not bytes, so
// multi-byte runes are never split in half.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []string
	for start := 0; start < len(runes); start += c.Step() {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, window)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
