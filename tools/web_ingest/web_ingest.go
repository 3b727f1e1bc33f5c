package web_ingest

import (
	"strings"

	"github.com/mohammad-safakhou/intelliweb/models"
)

const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 10
)

// Chunker splits extracted page text into overlapping whitespace-token windows.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a Chunker, falling back to the defaults for values that
// cannot form a forward-moving window.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = 0
		}
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Chunk splits text into windows of Size tokens, each starting Size-Overlap
// tokens after the previous one. The last window may be shorter. Blank text
// yields no chunks.
func (c Chunker) Chunk(text, sourceURL string) []models.Chunk {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	stride := c.Size - c.Overlap
	var out []models.Chunk
	for start := 0; ; start += stride {
		end := min(start+c.Size, len(tokens))
		out = append(out, models.Chunk{
			Text:      strings.Join(tokens[start:end], " "),
			SourceURL: sourceURL,
			Index:     len(out),
		})
		if end == len(tokens) {
			break
		}
	}
	return out
}

// ChunkPages chunks every page in order.
func (c Chunker) ChunkPages(pages []models.Page) []models.Chunk {
	var out []models.Chunk
	for _, p := range pages {
		out = append(out, c.Chunk(p.Text, p.URL)...)
	}
	return out
}
