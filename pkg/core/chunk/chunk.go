// Package chunk packs narrative paragraphs into size-bounded passages for
// embedding.
package chunk

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultSize      = 1000
	DefaultMinLength = 200
	DefaultMaxChunks = 120

	paragraphSeparator = "\n\n"
)

// Options bounds chunk production. Lengths are in characters.
type Options struct {
	Size      int  // budget per chunk
	Overlap   bool // seed each chunk with the last paragraph of the previous one
	MinLength int  // narratives shorter than this produce no chunks
	MaxChunks int  // cap per narrative; 0 means no cap
}

// DefaultOptions returns the production settings: 1000-character chunks with
// one paragraph of overlap, 200-character minimum and at most 120 chunks.
func DefaultOptions() Options {
	return Options{
		Size:      DefaultSize,
		Overlap:   true,
		MinLength: DefaultMinLength,
		MaxChunks: DefaultMaxChunks,
	}
}

// Chunker splits narrative text into passages.
type Chunker struct {
	opts Options
}

// NewChunker creates a chunker. A non-positive Size falls back to DefaultSize.
func NewChunker(opts Options) *Chunker {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	return &Chunker{opts: opts}
}

// Chunk splits text on blank lines and greedily packs paragraphs.
//
// A chunk is emitted when adding the next paragraph would push it past the
// size budget. With overlap on, the next chunk starts with the last paragraph
// of the one just emitted. A single paragraph larger than the budget becomes
// its own chunk. The trailing chunk is always emitted.
func (c *Chunker) Chunk(text string) []string {
	chunks := make([]string, 0)
	var current []string
	length := 0

	for _, raw := range strings.Split(text, paragraphSeparator) {
		para := strings.TrimSpace(raw)
		if para == "" {
			continue
		}
		paraLen := utf8.RuneCountInString(para)

		if length+paraLen > c.opts.Size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, paragraphSeparator))
			if c.opts.Overlap {
				last := current[len(current)-1]
				current = []string{last}
				length = utf8.RuneCountInString(last)
			} else {
				current = nil
				length = 0
			}
		}

		current = append(current, para)
		length += paraLen
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, paragraphSeparator))
	}

	return chunks
}

// ChunkNarrative applies the minimum-length guard and the per-narrative cap
// around Chunk.
func (c *Chunker) ChunkNarrative(narrative string) []string {
	if utf8.RuneCountInString(strings.TrimSpace(narrative)) < c.opts.MinLength {
		return nil
	}

	chunks := c.Chunk(narrative)
	if c.opts.MaxChunks > 0 && len(chunks) > c.opts.MaxChunks {
		chunks = chunks[:c.opts.MaxChunks]
	}
	return chunks
}
