package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func paragraph(ch string, n int) string {
	return strings.Repeat(ch, n)
}

func TestChunk_FiveParagraphsWithOverlap(t *testing.T) {
	paras := []string{
		paragraph("a", 500),
		paragraph("b", 500),
		paragraph("c", 500),
		paragraph("d", 500),
		paragraph("e", 500),
	}
	text := strings.Join(paras, "\n\n")
	if n := utf8.RuneCountInString(text); n < 2500 {
		t.Fatalf("fixture too short: %d", n)
	}

	c := NewChunker(Options{Size: 1000, Overlap: true})
	chunks := c.Chunk(text)

	want := []string{
		paras[0] + "\n\n" + paras[1],
		paras[1] + "\n\n" + paras[2],
		paras[2] + "\n\n" + paras[3],
		paras[3] + "\n\n" + paras[4],
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d mismatch", i)
		}
	}

	// consecutive chunks share exactly one paragraph
	for i := 1; i < len(chunks); i++ {
		prev := strings.Split(chunks[i-1], "\n\n")
		next := strings.Split(chunks[i], "\n\n")
		if prev[len(prev)-1] != next[0] {
			t.Errorf("chunk %d does not start with the last paragraph of chunk %d", i, i-1)
		}
	}
}

func TestChunk_NoOverlap(t *testing.T) {
	paras := []string{paragraph("a", 600), paragraph("b", 600), paragraph("c", 300)}
	c := NewChunker(Options{Size: 1000})
	chunks := c.Chunk(strings.Join(paras, "\n\n"))

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != paras[0] {
		t.Errorf("chunk 0 should hold only the first paragraph")
	}
	if chunks[1] != paras[1]+"\n\n"+paras[2] {
		t.Errorf("chunk 1 should hold the second and third paragraphs")
	}
}

func TestChunk_BudgetExcludingOverlap(t *testing.T) {
	var paras []string
	for i := 0; i < 40; i++ {
		paras = append(paras, paragraph(string(rune('a'+i%26)), 90+i*7))
	}
	c := NewChunker(Options{Size: 1000, Overlap: true})
	chunks := c.Chunk(strings.Join(paras, "\n\n"))

	for i, chunk := range chunks {
		parts := strings.Split(chunk, "\n\n")
		if i > 0 {
			parts = parts[1:]
		}
		total := 0
		for _, p := range parts {
			total += utf8.RuneCountInString(p)
		}
		if total > 1000 {
			t.Errorf("chunk %d carries %d new characters, over budget", i, total)
		}
	}
}

func TestChunk_OversizedParagraph(t *testing.T) {
	c := NewChunker(Options{Size: 100})
	chunks := c.Chunk(paragraph("x", 250))
	if len(chunks) != 1 || utf8.RuneCountInString(chunks[0]) != 250 {
		t.Errorf("oversized paragraph should be emitted whole, got %d chunks", len(chunks))
	}
}

func TestChunk_SkipsBlankParagraphs(t *testing.T) {
	c := NewChunker(Options{Size: 1000})
	chunks := c.Chunk("first\n\n   \n\n\n\nsecond")
	if len(chunks) != 1 || chunks[0] != "first\n\nsecond" {
		t.Errorf("unexpected chunks %q", chunks)
	}
}

func TestChunkNarrative_MinLength(t *testing.T) {
	c := NewChunker(DefaultOptions())
	if chunks := c.ChunkNarrative(paragraph("a", 199)); chunks != nil {
		t.Errorf("expected no chunks below minimum length, got %d", len(chunks))
	}
	if chunks := c.ChunkNarrative(paragraph("a", 200)); len(chunks) != 1 {
		t.Errorf("expected 1 chunk at minimum length, got %d", len(chunks))
	}
}

func TestChunkNarrative_Cap(t *testing.T) {
	var paras []string
	for i := 0; i < 300; i++ {
		paras = append(paras, paragraph("p", 900))
	}
	c := NewChunker(DefaultOptions())
	chunks := c.ChunkNarrative(strings.Join(paras, "\n\n"))
	if len(chunks) != DefaultMaxChunks {
		t.Errorf("expected %d chunks, got %d", DefaultMaxChunks, len(chunks))
	}
}
