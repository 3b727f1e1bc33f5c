package web_ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/intelliweb/models"
)

func words(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d", i)
	}
	return out
}

func TestChunkEmpty(t *testing.T) {
	c := NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	if got := c.Chunk("", "u"); len(got) != 0 {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
	if got := c.Chunk(" \n\t ", "u"); len(got) != 0 {
		t.Fatalf("expected no chunks for blank text, got %d", len(got))
	}
}

func TestChunkShortTextSingleWindow(t *testing.T) {
	c := NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	got := c.Chunk("Paris is   the capital\nof France", "https://a.example")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0].Text != "Paris is the capital of France" || got[0].SourceURL != "https://a.example" {
		t.Fatalf("unexpected chunk %+v", got[0])
	}
}

func TestChunkWindowInvariants(t *testing.T) {
	for _, n := range []int{1024, 1025, 1014 * 2, 3000, 5000} {
		n := n
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			t.Parallel()
			tokens := words(n)
			c := NewChunker(DefaultChunkSize, DefaultChunkOverlap)
			chunks := c.Chunk(strings.Join(tokens, " "), "u")

			var rebuilt []string
			for i, ch := range chunks {
				toks := strings.Fields(ch.Text)
				if ch.Index != i {
					t.Fatalf("chunk %d has index %d", i, ch.Index)
				}
				if i < len(chunks)-1 && len(toks) != 1024 {
					t.Fatalf("chunk %d has %d tokens", i, len(toks))
				}
				if i > 0 {
					prev := strings.Fields(chunks[i-1].Text)
					if strings.Join(prev[len(prev)-10:], " ") != strings.Join(toks[:10], " ") {
						t.Fatalf("chunks %d and %d do not overlap by 10 tokens", i-1, i)
					}
					toks = toks[10:]
				}
				rebuilt = append(rebuilt, toks...)
			}
			if strings.Join(rebuilt, " ") != strings.Join(tokens, " ") {
				t.Fatalf("round trip lost tokens: got %d want %d", len(rebuilt), len(tokens))
			}
		})
	}
}

func TestChunkExactFitHasNoOverlapOnlyTail(t *testing.T) {
	c := NewChunker(1024, 10)
	if got := c.Chunk(strings.Join(words(1024), " "), "u"); len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got := c.Chunk(strings.Join(words(1025), " "), "u"); len(got) != 2 || len(strings.Fields(got[1].Text)) != 11 {
		t.Fatalf("unexpected tail window: %d chunks", len(got))
	}
}

func TestNewChunkerRejectsStalledWindows(t *testing.T) {
	c := NewChunker(5, 5)
	if c.Overlap >= c.Size {
		t.Fatalf("overlap %d must be smaller than size %d", c.Overlap, c.Size)
	}
	c = NewChunker(0, -1)
	if c.Size != DefaultChunkSize || c.Overlap != DefaultChunkOverlap {
		t.Fatalf("unexpected defaults %+v", c)
	}
}

func TestChunkPagesKeepsSourceURL(t *testing.T) {
	c := NewChunker(4, 1)
	got := c.ChunkPages([]models.Page{
		{URL: "https://a.example", Text: "one two three four five"},
		{URL: "https://b.example", Text: ""},
		{URL: "https://c.example", Text: "six"},
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if got[0].SourceURL != "https://a.example" || got[1].Text != "four five" || got[2].SourceURL != "https://c.example" {
		t.Fatalf("unexpected chunks %+v", got)
	}
}
